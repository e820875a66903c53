package mcptools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dgnsrekt/tv_strategist/internal/chartctl"
	"github.com/dgnsrekt/tv_strategist/internal/controller"
	"github.com/dgnsrekt/tv_strategist/internal/indicators"
	"github.com/dgnsrekt/tv_strategist/internal/tradeplan"
)

func registerTools(server *mcp.Server, svc Service) {
	run := func(ctx context.Context, a chartctl.Action) (*mcp.CallToolResult, controller.ActionResult, error) {
		if svc == nil {
			return nil, controller.ActionResult{}, fmt.Errorf("chart service unavailable")
		}
		res, err := svc.ExecuteAction(ctx, a)
		if err != nil {
			slog.Debug("mcp chart action failed", "type", a.Type, "error", err)
			return nil, controller.ActionResult{}, err
		}
		return nil, res, nil
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "chart_set_timeframe",
		Description: "Change the chart resolution",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in timeframeInput) (*mcp.CallToolResult, controller.ActionResult, error) {
		return run(ctx, chartctl.SetTimeframe(strings.TrimSpace(in.Timeframe)))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "chart_set_chart_type",
		Description: "Change how price is drawn",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in chartTypeInput) (*mcp.CallToolResult, controller.ActionResult, error) {
		return run(ctx, chartctl.SetChartType(strings.TrimSpace(in.ChartType)))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "chart_add_indicator",
		Description: "Add an indicator. Missing parameters and colors are filled from the registry defaults",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in addIndicatorInput) (*mcp.CallToolResult, controller.ActionResult, error) {
		if svc == nil {
			return nil, controller.ActionResult{}, fmt.Errorf("chart service unavailable")
		}
		name := strings.ToUpper(strings.TrimSpace(in.Indicator))
		opts, err := svc.NormalizeIndicator(name, requestedOptions(in), in.Profile)
		if err != nil {
			return nil, controller.ActionResult{}, err
		}
		return run(ctx, chartctl.AddIndicator(name, &opts))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "chart_remove_indicator",
		Description: "Remove every instance of an indicator",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in removeIndicatorInput) (*mcp.CallToolResult, controller.ActionResult, error) {
		return run(ctx, chartctl.RemoveIndicator(strings.ToUpper(strings.TrimSpace(in.Indicator))))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "chart_navigate",
		Description: "Scroll, zoom or reset the chart view",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in navigateInput) (*mcp.CallToolResult, controller.ActionResult, error) {
		a := chartctl.Navigate(strings.TrimSpace(in.Direction))
		a.Bars = in.Bars
		return run(ctx, a)
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "chart_toggle_option",
		Description: "Show or hide a chart display option",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in toggleInput) (*mcp.CallToolResult, controller.ActionResult, error) {
		return run(ctx, chartctl.ToggleDisplayOption(strings.TrimSpace(in.Option), in.Enabled))
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "chart_state",
		Description: "Get the current timeframe, chart type and indicators",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ chartStateInput) (*mcp.CallToolResult, controller.ChartState, error) {
		if svc == nil {
			return nil, controller.ChartState{}, fmt.Errorf("chart service unavailable")
		}
		return nil, svc.State(), nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "tradeplan_constrain",
		Description: "Fit a trade plan to a complexity tier",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in constrainInput) (*mcp.CallToolResult, tradeplan.Plan, error) {
		if svc == nil {
			return nil, tradeplan.Plan{}, fmt.Errorf("chart service unavailable")
		}
		tier := tradeplan.Complexity("")
		if c := strings.TrimSpace(in.Complexity); c != "" {
			tier = tradeplan.ParseComplexity(c)
		}
		return nil, svc.ConstrainPlan(in.Plan, tier), nil
	})
}

// requestedOptions returns nil when the caller supplied nothing, so the
// registry applies every default.
func requestedOptions(in addIndicatorInput) *indicators.Options {
	if len(in.Params) == 0 && len(in.Colors) == 0 {
		return nil
	}
	opts := &indicators.Options{}
	if len(in.Params) > 0 {
		opts.CalcParams = append([]float64(nil), in.Params...)
	}
	if len(in.Colors) > 0 {
		opts.Styles = &indicators.Styles{}
		for _, c := range in.Colors {
			opts.Styles.Lines = append(opts.Styles.Lines, indicators.LineStyle{Color: c})
		}
	}
	return opts
}
