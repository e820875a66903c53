package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tv_strategist/internal/strategist"
	"github.com/dgnsrekt/tv_strategist/internal/tradeplan"
)

type planOutput struct {
	Body tradeplan.Plan
}

func registerTradePlanHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "constrain-plan", Method: http.MethodPost, Path: "/api/v1/tradeplan/constrain", Summary: "Fit a trade plan to a complexity tier", Tags: []string{"Trade plans"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Plan       tradeplan.Plan       `json:"plan"`
				Complexity tradeplan.Complexity `json:"complexity,omitempty" enum:"simple,partial,advanced" doc:"Defaults to the plan's own complexity"`
			}
		}) (*planOutput, error) {
			out := &planOutput{}
			out.Body = svc.ConstrainPlan(input.Body.Plan, input.Body.Complexity)
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "derive-plan", Method: http.MethodPost, Path: "/api/v1/tradeplan/derive", Summary: "Derive a plan from entry and stop", Tags: []string{"Trade plans"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Side       tradeplan.Side       `json:"side,omitempty" enum:"long,short" doc:"Inferred from entry and stop when omitted"`
				Entry      float64              `json:"entry" exclusiveMinimum:"0"`
				Stop       float64              `json:"stop,omitempty" minimum:"0" doc:"Zero derives a default stop"`
				Complexity tradeplan.Complexity `json:"complexity,omitempty" enum:"simple,partial,advanced"`
			}
		}) (*planOutput, error) {
			plan, err := svc.DerivePlan(input.Body.Side, input.Body.Entry, input.Body.Stop, input.Body.Complexity)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &planOutput{}
			out.Body = plan
			return out, nil
		})
}

func registerStrategistHandlers(api huma.API, svc Service) {
	type chatOutput struct {
		Body *strategist.Response
	}
	huma.Register(api, huma.Operation{OperationID: "strategist-chat", Method: http.MethodPost, Path: "/api/v1/strategist/chat", Summary: "Handle one conversational turn", Description: "Turns the message into chart actions. A trade plan is produced only when the turn asks for analysis.", Tags: []string{"Strategist"}},
		func(ctx context.Context, input *struct {
			Body strategist.Request
		}) (*chatOutput, error) {
			res, err := svc.Chat(ctx, input.Body)
			if err != nil {
				return nil, mapErr(err)
			}
			return &chatOutput{Body: res}, nil
		})
}
