package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tv_strategist/internal/chartctl"
	"github.com/dgnsrekt/tv_strategist/internal/controller"
)

func registerChartHandlers(api huma.API, svc Service) {
	type stateOutput struct {
		Body controller.ChartState
	}
	huma.Register(api, huma.Operation{OperationID: "get-chart-state", Method: http.MethodGet, Path: "/api/v1/chart/state", Summary: "Get chart state snapshot", Tags: []string{"Chart"}},
		func(ctx context.Context, input *struct{}) (*stateOutput, error) {
			out := &stateOutput{}
			out.Body = svc.State()
			return out, nil
		})

	type actionOutput struct {
		Body controller.ActionResult
	}
	huma.Register(api, huma.Operation{OperationID: "execute-action", Method: http.MethodPost, Path: "/api/v1/chart/actions", Summary: "Execute one chart action", Description: "Without an attached chart view the action is dropped and reported as such.", Tags: []string{"Chart"}},
		func(ctx context.Context, input *struct {
			Body chartctl.Action
		}) (*actionOutput, error) {
			res, err := svc.ExecuteAction(ctx, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &actionOutput{}
			out.Body = res
			return out, nil
		})

	type batchOutput struct {
		Body chartctl.BatchResult
	}
	huma.Register(api, huma.Operation{OperationID: "execute-batch", Method: http.MethodPost, Path: "/api/v1/chart/actions/batch", Summary: "Execute a batch of chart actions", Tags: []string{"Chart"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Actions []chartctl.Action `json:"actions" minItems:"1"`
				Ordered bool              `json:"ordered,omitempty" doc:"Run one at a time in order instead of concurrently"`
			}
		}) (*batchOutput, error) {
			res, err := svc.ExecuteBatch(ctx, input.Body.Actions, input.Body.Ordered)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &batchOutput{}
			out.Body = res
			return out, nil
		})
}
