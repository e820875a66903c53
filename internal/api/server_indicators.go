package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tv_strategist/internal/indicators"
	"github.com/dgnsrekt/tv_strategist/internal/strategist"
)

func registerIndicatorHandlers(api huma.API, svc Service) {
	type listOutput struct {
		Body struct {
			Indicators []indicators.Definition `json:"indicators"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "list-indicators", Method: http.MethodGet, Path: "/api/v1/indicators", Summary: "List known indicators", Tags: []string{"Indicators"}},
		func(ctx context.Context, input *struct{}) (*listOutput, error) {
			out := &listOutput{}
			out.Body.Indicators = svc.Indicators()
			return out, nil
		})

	type normalizeOutput struct {
		Body indicators.Options
	}
	huma.Register(api, huma.Operation{OperationID: "normalize-indicator", Method: http.MethodPost, Path: "/api/v1/indicators/normalize", Summary: "Resolve indicator params and line styles", Tags: []string{"Indicators"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Name    string              `json:"name" minLength:"1" doc:"Indicator name or alias"`
				Options *indicators.Options `json:"options,omitempty"`
				Profile string              `json:"profile,omitempty" doc:"Trading profile, e.g. day_trade"`
			}
		}) (*normalizeOutput, error) {
			opts, err := svc.NormalizeIndicator(input.Body.Name, input.Body.Options, input.Body.Profile)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &normalizeOutput{}
			out.Body = opts
			return out, nil
		})

	type vocabularyOutput struct {
		Body strategist.Vocabulary
	}
	huma.Register(api, huma.Operation{OperationID: "get-vocabulary", Method: http.MethodGet, Path: "/api/v1/vocabulary", Summary: "Closed vocabulary accepted by tool calls", Tags: []string{"Indicators"}},
		func(ctx context.Context, input *struct{}) (*vocabularyOutput, error) {
			out := &vocabularyOutput{}
			out.Body = svc.Vocabulary()
			return out, nil
		})
}
