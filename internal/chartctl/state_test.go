package chartctl

import (
	"strings"
	"testing"

	"github.com/dgnsrekt/tv_strategist/internal/indicators"
)

func TestMergeReplacesScalarsWhenPresent(t *testing.T) {
	s := NewState()
	tf, ct := "1D", "candles"
	s.Merge(Update{Timeframe: &tf, ChartType: &ct})

	other := "1h"
	s.Merge(Update{Timeframe: &other})

	snap := s.Snapshot()
	if snap.Timeframe != "1h" || snap.ChartType != "candles" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestMergeReplacesIndicatorListWholesale(t *testing.T) {
	s := NewState()
	s.Merge(Update{Indicators: []IndicatorEntry{{Indicator: "RSI"}, {Indicator: "MACD"}}})
	s.Merge(Update{Indicators: []IndicatorEntry{{Indicator: "EMA"}}})

	snap := s.Snapshot()
	if len(snap.Indicators) != 1 || snap.Indicators[0].Indicator != "EMA" {
		t.Fatalf("indicators = %+v, want [EMA]", snap.Indicators)
	}

	s.Merge(Update{})
	if len(s.Snapshot().Indicators) != 1 {
		t.Fatal("nil indicator list must leave the list untouched")
	}

	s.Merge(Update{Indicators: []IndicatorEntry{}})
	if len(s.Snapshot().Indicators) != 0 {
		t.Fatal("empty indicator list must clear")
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := NewState()
	s.Apply(AddIndicator("EMA", &indicators.Options{CalcParams: []float64{9, 21}}))

	snap := s.Snapshot()
	snap.Indicators[0].Options.CalcParams[0] = 100
	snap.Indicators[0].Indicator = "MUTATED"

	again := s.Snapshot()
	if again.Indicators[0].Indicator != "EMA" || again.Indicators[0].Options.CalcParams[0] != 9 {
		t.Fatalf("state was mutated through snapshot: %+v", again.Indicators[0])
	}
}

func TestApplyIndicatorLifecycle(t *testing.T) {
	s := NewState()
	s.Apply(AddIndicator("RSI", nil))
	s.Apply(AddIndicator("EMA", nil))
	s.Apply(AddIndicator("rsi", &indicators.Options{CalcParams: []float64{9}}))

	snap := s.Snapshot()
	if len(snap.Indicators) != 2 {
		t.Fatalf("indicators = %+v, want re-add to replace", snap.Indicators)
	}
	s.Apply(RemoveIndicator("EMA"))
	snap = s.Snapshot()
	if len(snap.Indicators) != 1 || !strings.EqualFold(snap.Indicators[0].Indicator, "rsi") {
		t.Fatalf("indicators = %+v", snap.Indicators)
	}

	s.Apply(CheckNews())
	s.Apply(Navigate(NavigateLeft))
	if len(s.Snapshot().Indicators) != 1 {
		t.Fatal("non-configuration actions must not change state")
	}
}

func TestActionValidateAndDescribe(t *testing.T) {
	if err := Navigate("up").Validate(); err == nil {
		t.Fatal("expected invalid direction")
	}
	if err := SetTimeframe(" ").Validate(); err == nil {
		t.Fatal("expected missing timeframe")
	}
	if err := (Action{Type: "bogus"}).Validate(); err == nil {
		t.Fatal("expected unknown type")
	}
	if err := NoOp("x").Validate(); err != nil {
		t.Fatal(err)
	}

	got := Summarize([]Action{
		SetTimeframe("1D"),
		AddIndicator("ema", &indicators.Options{CalcParams: []float64{9, 21, 50}}),
		NoOp("unknown tool"),
	})
	if want := "Timeframe set to 1D. Added EMA(9,21,50)."; got != want {
		t.Fatalf("summary = %q, want %q", got, want)
	}
	if got := Summarize(nil); got != "No chart changes were made." {
		t.Fatalf("empty summary = %q", got)
	}
}
