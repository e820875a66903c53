package mcptools

import (
	"github.com/dgnsrekt/tv_strategist/internal/tradeplan"
)

type timeframeInput struct {
	Timeframe string `json:"timeframe" jsonschema:"resolution: 1m, 3m, 5m, 15m, 30m, 1h, 2h, 4h, 1D, 1W or 1M"`
}

type chartTypeInput struct {
	ChartType string `json:"chart_type" jsonschema:"candles, hollow_candles, heikin_ashi, bars, line, area or baseline"`
}

type addIndicatorInput struct {
	Indicator string    `json:"indicator" jsonschema:"indicator name, e.g. EMA, BOLL, RSI"`
	Params    []float64 `json:"params,omitempty" jsonschema:"optional calculation parameters, e.g. periods"`
	Colors    []string  `json:"colors,omitempty" jsonschema:"optional hex colors, one per line"`
	Profile   string    `json:"profile,omitempty" jsonschema:"optional trading profile: day, scalp, swing or position"`
}

type removeIndicatorInput struct {
	Indicator string `json:"indicator" jsonschema:"indicator name to remove"`
}

type navigateInput struct {
	Direction string `json:"direction" jsonschema:"left, right, zoom_in, zoom_out, reset or realtime"`
	Bars      int    `json:"bars,omitempty" jsonschema:"bars to scroll for left and right, default 10"`
}

type toggleInput struct {
	Option  string `json:"option" jsonschema:"display option: log_scale, auto_scale or extended_hours"`
	Enabled bool   `json:"enabled" jsonschema:"true to show, false to hide"`
}

type chartStateInput struct{}

type constrainInput struct {
	Plan       tradeplan.Plan `json:"plan" jsonschema:"trade plan to fit"`
	Complexity string         `json:"complexity,omitempty" jsonschema:"simple, partial or advanced; defaults to the plan's own"`
}
