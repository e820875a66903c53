package cdpcontrol

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/dgnsrekt/tv_strategist/internal/chartctl"
	"github.com/dgnsrekt/tv_strategist/internal/indicators"
)

type fakeDriver struct {
	calls   []string
	studies []Study
	fail    error
	charts  []ChartInfo
}

func (f *fakeDriver) record(format string, args ...any) error {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.fail
}

func (f *fakeDriver) ResolveChart(_ context.Context, chartID string) (ChartInfo, error) {
	for _, c := range f.charts {
		if chartID == "" || c.ChartID == chartID {
			return c, nil
		}
	}
	return ChartInfo{}, NewError(CodeChartNotFound, "chart not found: "+chartID, nil)
}

func (f *fakeDriver) SetResolution(_ context.Context, chartID, res string) error {
	return f.record("resolution %s %s", chartID, res)
}

func (f *fakeDriver) SetChartType(_ context.Context, chartID string, id int) error {
	return f.record("chart_type %s %d", chartID, id)
}

func (f *fakeDriver) ListStudies(context.Context, string) ([]Study, error) {
	return f.studies, nil
}

func (f *fakeDriver) AddStudy(_ context.Context, chartID, name string, overlay bool, inputs []float64, colors []string) (Study, error) {
	return Study{ID: "s1", Name: name}, f.record("add %s %s %t %v %v", chartID, name, overlay, inputs, colors)
}

func (f *fakeDriver) RemoveStudy(_ context.Context, chartID, studyID string) error {
	return f.record("remove %s %s", chartID, studyID)
}

func (f *fakeDriver) Zoom(_ context.Context, chartID string, in bool) error {
	return f.record("zoom %s %t", chartID, in)
}

func (f *fakeDriver) Scroll(_ context.Context, chartID string, bars int) error {
	return f.record("scroll %s %d", chartID, bars)
}

func (f *fakeDriver) ScrollToRealtime(_ context.Context, chartID string) error {
	return f.record("realtime %s", chartID)
}

func (f *fakeDriver) ResetScales(_ context.Context, chartID string) error {
	return f.record("reset %s", chartID)
}

func (f *fakeDriver) SetToggle(_ context.Context, chartID, option string, enabled bool) error {
	return f.record("toggle %s %s %t", chartID, option, enabled)
}

func (f *fakeDriver) OpenNews(_ context.Context, chartID string) error {
	return f.record("news %s", chartID)
}

func newFakeBridge() (*ChartBridge, *fakeDriver) {
	drv := &fakeDriver{charts: []ChartInfo{{ChartID: "c1", TargetID: "T1"}}}
	return newChartBridge(drv, "", indicators.DefaultRegistry()), drv
}

func TestChartBridgeMapsActions(t *testing.T) {
	styles := &indicators.Styles{Lines: []indicators.LineStyle{{Color: "#111111"}, {Color: "#222222"}}}
	tests := []struct {
		name   string
		action chartctl.Action
		want   []string
	}{
		{"timeframe", chartctl.SetTimeframe("4h"), []string{"resolution c1 240"}},
		{"daily", chartctl.SetTimeframe("1D"), []string{"resolution c1 1D"}},
		{"chart type", chartctl.SetChartType("Heikin_Ashi"), []string{"chart_type c1 8"}},
		{"oscillator", chartctl.AddIndicator("rsi", &indicators.Options{CalcParams: []float64{9}}),
			[]string{"add c1 Relative Strength Index false [9] []"}},
		{"per period", chartctl.AddIndicator("EMA", &indicators.Options{CalcParams: []float64{9, 21}, Styles: styles}),
			[]string{
				"add c1 Moving Average Exponential true [9] [#111111]",
				"add c1 Moving Average Exponential true [21] [#222222]",
			}},
		{"registry params", chartctl.AddIndicator("MACD", nil), []string{"add c1 MACD false [12 26 9] []"}},
		{"left", chartctl.Action{Type: chartctl.ActionNavigate, Direction: chartctl.NavigateLeft, Bars: 30}, []string{"scroll c1 -30"}},
		{"right default", chartctl.Navigate(chartctl.NavigateRight), []string{"scroll c1 10"}},
		{"zoom in", chartctl.Navigate(chartctl.NavigateZoomIn), []string{"zoom c1 true"}},
		{"zoom out", chartctl.Navigate(chartctl.NavigateZoomOut), []string{"zoom c1 false"}},
		{"reset", chartctl.Navigate(chartctl.NavigateReset), []string{"reset c1"}},
		{"realtime", chartctl.Navigate(chartctl.NavigateRealtime), []string{"realtime c1"}},
		{"toggle", chartctl.ToggleDisplayOption("log_scale", true), []string{"toggle c1 log_scale true"}},
		{"news", chartctl.CheckNews(), []string{"news c1"}},
		{"analysis", chartctl.RunAnalysis("scalp"), nil},
		{"noop", chartctl.NoOp("nothing"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, drv := newFakeBridge()
			if err := b.Perform(context.Background(), tt.action); err != nil {
				t.Fatalf("Perform() error: %v", err)
			}
			if !reflect.DeepEqual(drv.calls, tt.want) {
				t.Fatalf("calls = %q, want %q", drv.calls, tt.want)
			}
		})
	}
}

func TestChartBridgeRejectsUnsupportedValues(t *testing.T) {
	tests := []struct {
		name   string
		action chartctl.Action
	}{
		{"timeframe", chartctl.SetTimeframe("7m")},
		{"chart type", chartctl.SetChartType("renko")},
		{"indicator", chartctl.AddIndicator("NOPE", nil)},
		{"missing field", chartctl.Action{Type: chartctl.ActionSetTimeframe}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, drv := newFakeBridge()
			err := b.Perform(context.Background(), tt.action)
			if !hasCode(err, CodeValidation) {
				t.Fatalf("Perform() error = %v, want %s", err, CodeValidation)
			}
			if len(drv.calls) != 0 {
				t.Fatalf("driver called: %q", drv.calls)
			}
		})
	}
}

func TestChartBridgeRemovesEveryInstance(t *testing.T) {
	b, drv := newFakeBridge()
	drv.studies = []Study{
		{ID: "a", Name: "Moving Average Exponential"},
		{ID: "b", Name: "Volume"},
		{ID: "c", Name: "moving average exponential"},
	}
	if err := b.Perform(context.Background(), chartctl.RemoveIndicator("ema")); err != nil {
		t.Fatalf("Perform() error: %v", err)
	}
	if got, want := drv.calls, []string{"remove c1 a", "remove c1 c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %q, want %q", got, want)
	}

	err := b.Perform(context.Background(), chartctl.RemoveIndicator("RSI"))
	if err == nil || !strings.Contains(err.Error(), "not on the chart") {
		t.Fatalf("remove absent error = %v", err)
	}
}

func TestChartBridgeUsesConfiguredChart(t *testing.T) {
	drv := &fakeDriver{charts: []ChartInfo{{ChartID: "c1"}, {ChartID: "c2"}}}
	b := newChartBridge(drv, "c2", nil)
	if err := b.Perform(context.Background(), chartctl.CheckNews()); err != nil {
		t.Fatalf("Perform() error: %v", err)
	}
	if got, want := drv.calls, []string{"news c2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %q, want %q", got, want)
	}

	b = newChartBridge(drv, "gone", nil)
	if err := b.Perform(context.Background(), chartctl.CheckNews()); !hasCode(err, CodeChartNotFound) {
		t.Fatalf("Perform() error = %v, want %s", err, CodeChartNotFound)
	}
}

func TestChartBridgePropagatesDriverErrors(t *testing.T) {
	b, drv := newFakeBridge()
	drv.fail = NewError(CodeEvalTimeout, "evaluation timed out", context.DeadlineExceeded)
	err := b.Perform(context.Background(), chartctl.SetTimeframe("1h"))
	if !errors.Is(err, context.DeadlineExceeded) || !hasCode(err, CodeEvalTimeout) {
		t.Fatalf("Perform() error = %v", err)
	}
}

func TestChartBridgeThroughSession(t *testing.T) {
	b, drv := newFakeBridge()
	session := chartctl.NewSession()
	session.Register(b)

	res := session.ExecuteSequentially(context.Background(), []chartctl.Action{
		chartctl.SetTimeframe("1D"),
		chartctl.SetTimeframe("9m"),
		chartctl.CheckNews(),
	})
	if got, want := len(res.Succeeded), 2; got != want {
		t.Fatalf("succeeded = %d, want %d", got, want)
	}
	if got, want := len(res.Failed), 1; got != want || res.Failed[0].Index != 1 {
		t.Fatalf("failed = %+v", res.Failed)
	}
	if got, want := session.State().Snapshot().Timeframe, "1D"; got != want {
		t.Fatalf("state timeframe = %q, want %q", got, want)
	}
	if got, want := len(drv.calls), 2; got != want {
		t.Fatalf("driver calls = %q", drv.calls)
	}
}
