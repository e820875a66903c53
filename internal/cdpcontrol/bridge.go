package cdpcontrol

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dgnsrekt/tv_strategist/internal/chartctl"
	"github.com/dgnsrekt/tv_strategist/internal/indicators"
)

const defaultScrollBars = 10

// resolutions maps chart timeframes onto TradingView resolution strings.
var resolutions = map[string]string{
	"1m":  "1",
	"3m":  "3",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"2h":  "120",
	"4h":  "240",
	"1D":  "1D",
	"1W":  "1W",
	"1M":  "1M",
}

// chartTypeIDs are TradingView's numeric chart style ids.
var chartTypeIDs = map[string]int{
	"bars":           0,
	"candles":        1,
	"line":           2,
	"area":           3,
	"heikin_ashi":    8,
	"hollow_candles": 9,
	"baseline":       10,
}

// studyNames maps registry indicator names onto TradingView study titles.
var studyNames = map[string]string{
	"MA":   "Moving Average",
	"EMA":  "Moving Average Exponential",
	"BOLL": "Bollinger Bands",
	"VWAP": "VWAP",
	"SAR":  "Parabolic SAR",
	"RSI":  "Relative Strength Index",
	"MACD": "MACD",
	"VOL":  "Volume",
	"KDJ":  "Stochastic",
	"ATR":  "Average True Range",
	"OBV":  "On Balance Volume",
	"CCI":  "Commodity Channel Index",
	"WR":   "Williams %R",
	"DMI":  "Directional Movement Index",
}

// perPeriod indicators take a single length; each calc param becomes its
// own study.
var perPeriod = map[string]bool{"MA": true, "EMA": true}

// driver is the subset of Client the bridge needs.
type driver interface {
	ResolveChart(ctx context.Context, chartID string) (ChartInfo, error)
	SetResolution(ctx context.Context, chartID, resolution string) error
	SetChartType(ctx context.Context, chartID string, typeID int) error
	ListStudies(ctx context.Context, chartID string) ([]Study, error)
	AddStudy(ctx context.Context, chartID, name string, overlay bool, inputs []float64, colors []string) (Study, error)
	RemoveStudy(ctx context.Context, chartID, studyID string) error
	Zoom(ctx context.Context, chartID string, in bool) error
	Scroll(ctx context.Context, chartID string, bars int) error
	ScrollToRealtime(ctx context.Context, chartID string) error
	ResetScales(ctx context.Context, chartID string) error
	SetToggle(ctx context.Context, chartID, option string, enabled bool) error
	OpenNews(ctx context.Context, chartID string) error
}

// ChartBridge performs chart actions on a TradingView tab.
type ChartBridge struct {
	drv      driver
	chartID  string
	registry *indicators.Registry
}

// NewChartBridge returns a bridge for chartID, or for the first chart tab
// when chartID is empty.
func NewChartBridge(client *Client, chartID string, registry *indicators.Registry) *ChartBridge {
	return newChartBridge(client, chartID, registry)
}

func newChartBridge(drv driver, chartID string, registry *indicators.Registry) *ChartBridge {
	if registry == nil {
		registry = indicators.DefaultRegistry()
	}
	return &ChartBridge{drv: drv, chartID: strings.TrimSpace(chartID), registry: registry}
}

// Perform implements chartctl.Bridge.
func (b *ChartBridge) Perform(ctx context.Context, a chartctl.Action) error {
	if !a.IsChartAction() {
		return nil
	}
	if err := a.Validate(); err != nil {
		return NewError(CodeValidation, err.Error(), nil)
	}
	chart, err := b.drv.ResolveChart(ctx, b.chartID)
	if err != nil {
		return err
	}
	id := chart.ChartID
	slog.Debug("chart bridge perform", "chart_id", id, "action", a.Type)

	switch a.Type {
	case chartctl.ActionSetTimeframe:
		res, ok := resolutions[a.Timeframe]
		if !ok {
			return NewError(CodeValidation, "unsupported timeframe: "+a.Timeframe, nil)
		}
		return b.drv.SetResolution(ctx, id, res)
	case chartctl.ActionSetChartType:
		typeID, ok := chartTypeIDs[strings.ToLower(a.ChartType)]
		if !ok {
			return NewError(CodeValidation, "unsupported chart type: "+a.ChartType, nil)
		}
		return b.drv.SetChartType(ctx, id, typeID)
	case chartctl.ActionAddIndicator:
		return b.addIndicator(ctx, id, a)
	case chartctl.ActionRemoveIndicator:
		return b.removeIndicator(ctx, id, a.Indicator)
	case chartctl.ActionNavigate:
		return b.navigate(ctx, id, a)
	case chartctl.ActionToggleDisplayOption:
		return b.drv.SetToggle(ctx, id, a.Option, a.Enabled)
	case chartctl.ActionCheckNews:
		return b.drv.OpenNews(ctx, id)
	}
	return nil
}

func (b *ChartBridge) addIndicator(ctx context.Context, chartID string, a chartctl.Action) error {
	def, ok := b.registry.Lookup(a.Indicator)
	if !ok {
		return NewError(CodeValidation, "unknown indicator: "+a.Indicator, nil)
	}
	study, ok := studyNames[def.Name]
	if !ok {
		return NewError(CodeValidation, "indicator has no chart study: "+def.Name, nil)
	}

	params := def.Params
	var colors []string
	if a.Options != nil {
		if a.Options.CalcParams != nil {
			params = a.Options.CalcParams
		}
		if a.Options.Styles != nil {
			for _, line := range a.Options.Styles.Lines {
				colors = append(colors, line.Color)
			}
		}
	}

	if !perPeriod[def.Name] || len(params) <= 1 {
		_, err := b.drv.AddStudy(ctx, chartID, study, def.Overlay, params, colors)
		return err
	}
	for i, p := range params {
		var color []string
		if i < len(colors) {
			color = colors[i : i+1]
		}
		if _, err := b.drv.AddStudy(ctx, chartID, study, def.Overlay, []float64{p}, color); err != nil {
			return err
		}
	}
	return nil
}

// removeIndicator removes every study instance of the indicator.
func (b *ChartBridge) removeIndicator(ctx context.Context, chartID, name string) error {
	def, ok := b.registry.Lookup(name)
	if !ok {
		return NewError(CodeValidation, "unknown indicator: "+name, nil)
	}
	study := strings.ToLower(studyNames[def.Name])

	studies, err := b.drv.ListStudies(ctx, chartID)
	if err != nil {
		return err
	}
	removed := 0
	for _, s := range studies {
		if strings.ToLower(strings.TrimSpace(s.Name)) != study {
			continue
		}
		if err := b.drv.RemoveStudy(ctx, chartID, s.ID); err != nil {
			return err
		}
		removed++
	}
	if removed == 0 {
		return NewError(CodeValidation, def.Name+" is not on the chart", nil)
	}
	return nil
}

func (b *ChartBridge) navigate(ctx context.Context, chartID string, a chartctl.Action) error {
	bars := a.Bars
	if bars <= 0 {
		bars = defaultScrollBars
	}
	switch a.Direction {
	case chartctl.NavigateLeft:
		return b.drv.Scroll(ctx, chartID, -bars)
	case chartctl.NavigateRight:
		return b.drv.Scroll(ctx, chartID, bars)
	case chartctl.NavigateZoomIn:
		return b.drv.Zoom(ctx, chartID, true)
	case chartctl.NavigateZoomOut:
		return b.drv.Zoom(ctx, chartID, false)
	case chartctl.NavigateReset:
		return b.drv.ResetScales(ctx, chartID)
	case chartctl.NavigateRealtime:
		return b.drv.ScrollToRealtime(ctx, chartID)
	}
	return NewError(CodeValidation, "unsupported direction: "+a.Direction, nil)
}
