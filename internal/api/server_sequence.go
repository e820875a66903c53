package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/tv_strategist/internal/controller"
	"github.com/dgnsrekt/tv_strategist/internal/sequence"
)

func registerSequenceHandlers(api huma.API, svc Service) {
	type runOutput struct {
		Body sequence.Result
	}
	huma.Register(api, huma.Operation{OperationID: "run-sequence", Method: http.MethodPost, Path: "/api/v1/sequences/run", Summary: "Run a step sequence", Description: "Blocks until the run finishes or is cancelled. Only one sequence runs at a time.", Tags: []string{"Sequences"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Steps           []sequence.Step `json:"steps" minItems:"1"`
				Narrate         bool            `json:"narrate,omitempty" doc:"Show step messages on the overlay"`
				StepDelayMS     *int            `json:"step_delay_ms,omitempty" doc:"Pause before each step; defaults to the configured delay"`
				RequireContinue bool            `json:"require_continue,omitempty" doc:"Wait for a continue signal before each step"`
				Profile         string          `json:"profile,omitempty" doc:"Trading profile for indicator defaults"`
			}
		}) (*runOutput, error) {
			res, err := svc.RunSequence(ctx, controller.SequenceRequest{
				Steps:           input.Body.Steps,
				Narrate:         input.Body.Narrate,
				StepDelayMS:     input.Body.StepDelayMS,
				RequireContinue: input.Body.RequireContinue,
				Profile:         input.Body.Profile,
			})
			if err != nil {
				return nil, mapErr(err)
			}
			out := &runOutput{}
			out.Body = res
			return out, nil
		})

	type continueOutput struct {
		Body struct {
			Released bool `json:"released" doc:"False when no step was waiting"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "continue-sequence", Method: http.MethodPost, Path: "/api/v1/sequences/continue", Summary: "Release the waiting step", Tags: []string{"Sequences"}},
		func(ctx context.Context, input *struct{}) (*continueOutput, error) {
			out := &continueOutput{}
			out.Body.Released = svc.Continue()
			return out, nil
		})

	type cancelOutput struct {
		Body struct {
			Notified int `json:"notified" doc:"Running sequences that received the signal"`
		}
	}
	huma.Register(api, huma.Operation{OperationID: "cancel-sequence", Method: http.MethodPost, Path: "/api/v1/sequences/cancel", Summary: "Cancel running sequences", Tags: []string{"Sequences"}},
		func(ctx context.Context, input *struct{}) (*cancelOutput, error) {
			out := &cancelOutput{}
			out.Body.Notified = svc.Cancel()
			return out, nil
		})
}
