// Package api serves the strategist's HTTP control surface.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/tv_strategist/internal/cdpcontrol"
	"github.com/dgnsrekt/tv_strategist/internal/chartctl"
	"github.com/dgnsrekt/tv_strategist/internal/controller"
	"github.com/dgnsrekt/tv_strategist/internal/indicators"
	"github.com/dgnsrekt/tv_strategist/internal/overlay"
	"github.com/dgnsrekt/tv_strategist/internal/sequence"
	"github.com/dgnsrekt/tv_strategist/internal/snapshot"
	"github.com/dgnsrekt/tv_strategist/internal/strategist"
	"github.com/dgnsrekt/tv_strategist/internal/tradeplan"
)

type Service interface {
	State() controller.ChartState
	ExecuteAction(ctx context.Context, a chartctl.Action) (controller.ActionResult, error)
	ExecuteBatch(ctx context.Context, actions []chartctl.Action, ordered bool) (chartctl.BatchResult, error)
	RunSequence(ctx context.Context, req controller.SequenceRequest) (sequence.Result, error)
	Continue() bool
	Cancel() int
	Bus() *overlay.Bus
	Indicators() []indicators.Definition
	NormalizeIndicator(name string, opts *indicators.Options, profile string) (indicators.Options, error)
	Vocabulary() strategist.Vocabulary
	ConstrainPlan(plan tradeplan.Plan, tier tradeplan.Complexity) tradeplan.Plan
	DerivePlan(side tradeplan.Side, entry, stop float64, tier tradeplan.Complexity) (tradeplan.Plan, error)
	Chat(ctx context.Context, req strategist.Request) (*strategist.Response, error)
	ListSnapshots() ([]snapshot.Meta, error)
	GetSnapshot(id string) (snapshot.Meta, error)
	SnapshotImage(id string) ([]byte, string, error)
}

// NewServer builds the HTTP handler. mcp, when non-nil, is mounted at /mcp.
func NewServer(svc Service, mcp http.Handler) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("TV Strategist API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/api/v1/overlay/stream", overlay.SSEHandler(svc.Bus()))
	if mcp != nil {
		router.Handle("/mcp", mcp)
		router.Handle("/mcp/*", mcp)
	}

	registerChartHandlers(api, svc)
	registerSequenceHandlers(api, svc)
	registerIndicatorHandlers(api, svc)
	registerTradePlanHandlers(api, svc)
	registerStrategistHandlers(api, svc)
	registerSnapshotHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, chartctl.ErrRunInProgress) {
		return huma.Error409Conflict(err.Error())
	}
	var coded *cdpcontrol.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case cdpcontrol.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case cdpcontrol.CodeChartNotFound, cdpcontrol.CodeSnapshotNotFound:
			return huma.Error404NotFound(coded.Message)
		case cdpcontrol.CodeEvalTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case cdpcontrol.CodeAPIUnavailable, cdpcontrol.CodeCDPUnavailable:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
