// Package mcptools exposes chart control as MCP tools.
package mcptools

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dgnsrekt/tv_strategist/internal/chartctl"
	"github.com/dgnsrekt/tv_strategist/internal/controller"
	"github.com/dgnsrekt/tv_strategist/internal/indicators"
	"github.com/dgnsrekt/tv_strategist/internal/tradeplan"
)

const defaultRequestTimeout = 30 * time.Second

// Service is the subset of the controller the tools drive.
type Service interface {
	State() controller.ChartState
	ExecuteAction(ctx context.Context, a chartctl.Action) (controller.ActionResult, error)
	NormalizeIndicator(name string, opts *indicators.Options, profile string) (indicators.Options, error)
	ConstrainPlan(plan tradeplan.Plan, tier tradeplan.Complexity) tradeplan.Plan
}

type ServerConfig struct {
	RequestTimeout time.Duration
	Version        string
}

func NewServer(svc Service, cfg ServerConfig) *sdkmcp.Server {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	version := cfg.Version
	if version == "" {
		version = "1.0.0"
	}

	srv := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "tv-strategist",
		Version: version,
	}, &sdkmcp.ServerOptions{
		Instructions: "Drive the attached TradingView chart: timeframe, chart type, indicators, navigation and display options.",
		Logger:       slog.Default(),
	})
	srv.AddReceivingMiddleware(timeoutMiddleware(timeout))

	registerTools(srv, svc)
	return srv
}

// NewHTTPHandler serves srv over the streamable HTTP transport.
func NewHTTPHandler(srv *sdkmcp.Server) http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server {
		return srv
	}, &sdkmcp.StreamableHTTPOptions{})
}

func timeoutMiddleware(timeout time.Duration) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, method, req)
		}
	}
}
