package tradeplan

import (
	"math"
	"reflect"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func sum(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}

func samplePlans() []Plan {
	return []Plan{
		{},
		{Side: SideLong, Entries: []float64{100, 102, 104}, Exits: []float64{95, 93, 90}, Targets: []float64{120, 110, 105, 130}},
		{Side: SideShort, Entries: []float64{50}, Exits: []float64{52, 54}, Targets: []float64{45, 40, 48, 35}},
		{Entries: []float64{20}, Exits: []float64{21}},
		{Side: SideLong, Entries: []float64{100}, Exits: []float64{105}, Targets: []float64{90}},
		{ReferencePrice: 0.4567891},
		{Entries: []float64{math.NaN(), -5, 0, 10}, Targets: []float64{math.Inf(1), 12}},
		{Side: SideLong, Entries: []float64{100}, Exits: []float64{95}, LateEntry: ptr(103), LateExit: ptr(92)},
		{Exits: []float64{10}, Targets: []float64{12, 14}},
		{Side: SideLong, Entries: []float64{100.004}, Exits: []float64{99.999}},
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	for _, tier := range []Complexity{Simple, Partial, Advanced} {
		for i, p := range samplePlans() {
			once := Apply(p, tier, cfg)
			twice := Apply(once, tier, cfg)
			if !reflect.DeepEqual(once, twice) {
				t.Fatalf("%s plan %d not idempotent:\nonce  %+v\ntwice %+v", tier, i, once, twice)
			}
		}
	}
}

func TestApplyTierLimits(t *testing.T) {
	cfg := DefaultConfig()
	limits := map[Complexity][3]int{
		Simple:   {1, 1, 1},
		Partial:  {1, 1, 2},
		Advanced: {2, 2, 3},
	}
	for tier, lim := range limits {
		for i, p := range samplePlans() {
			got := Apply(p, tier, cfg)
			if len(got.Entries) > lim[0] || len(got.Exits) > lim[1] || len(got.Targets) > lim[2] {
				t.Fatalf("%s plan %d exceeds limits: %+v", tier, i, got)
			}
			if got.LateEntry != nil || got.LateExit != nil {
				t.Fatalf("%s plan %d kept loose late levels", tier, i)
			}
			if got.PositionSizing == nil {
				t.Fatalf("%s plan %d missing sizing", tier, i)
			}
			if s := sum(got.PositionSizing.Entries); s != 100 {
				t.Fatalf("%s entry sizing sums to %v", tier, s)
			}
			if s := sum(got.PositionSizing.Targets); s != 100 {
				t.Fatalf("%s target sizing sums to %v", tier, s)
			}
		}
	}
}

func TestApplySimpleAlwaysOneEntryOneExit(t *testing.T) {
	got := Apply(Plan{
		Side:    SideLong,
		Entries: []float64{100, 101, 102},
		Exits:   []float64{98, 97, 96},
		Targets: []float64{105, 110, 115},
	}, Simple, DefaultConfig())

	if len(got.Entries) != 1 || len(got.Exits) != 1 || len(got.Targets) != 1 {
		t.Fatalf("plan = %+v", got)
	}
	if got.Targets[0] != 105 {
		t.Fatalf("target = %v, want nearest 105", got.Targets[0])
	}
	if got.RiskReward == nil || *got.RiskReward != 2.5 {
		t.Fatalf("risk reward = %v, want 2.5", got.RiskReward)
	}
}

func TestApplyPartialDropsSecondaryEntry(t *testing.T) {
	got := Apply(Plan{
		Side:      SideLong,
		Entries:   []float64{100, 103},
		Exits:     []float64{96},
		Targets:   []float64{106, 112, 118},
		LateEntry: ptr(104),
	}, Partial, DefaultConfig())

	if !reflect.DeepEqual(got.Entries, []float64{100}) {
		t.Fatalf("entries = %v", got.Entries)
	}
	if !reflect.DeepEqual(got.Targets, []float64{106, 112}) {
		t.Fatalf("targets = %v", got.Targets)
	}
	if !reflect.DeepEqual(got.PositionSizing.Targets, []float64{50, 50}) {
		t.Fatalf("sizing = %+v", got.PositionSizing)
	}
}

func TestApplyAdvancedFoldsLateLevels(t *testing.T) {
	got := Apply(Plan{
		Side:      SideLong,
		Entries:   []float64{100},
		Exits:     []float64{95},
		LateEntry: ptr(103),
		LateExit:  ptr(92),
	}, Advanced, DefaultConfig())

	if !reflect.DeepEqual(got.Entries, []float64{100, 103}) || !reflect.DeepEqual(got.Exits, []float64{95, 92}) {
		t.Fatalf("plan = %+v", got)
	}
	if !reflect.DeepEqual(got.Targets, []float64{107.5, 112.5, 117.5}) {
		t.Fatalf("targets = %v", got.Targets)
	}
}

func TestApplyDropsStopsOnWrongSide(t *testing.T) {
	got := Apply(Plan{Side: SideLong, Entries: []float64{100}, Exits: []float64{105}, Targets: []float64{90, 110}}, Partial, DefaultConfig())
	if !reflect.DeepEqual(got.Exits, []float64{98}) {
		t.Fatalf("exits = %v, want default stop 98", got.Exits)
	}
	if !reflect.DeepEqual(got.Targets, []float64{110}) {
		t.Fatalf("targets = %v, want only profit-side target", got.Targets)
	}
}

func TestApplyInfersShortSide(t *testing.T) {
	got := Apply(Plan{Entries: []float64{20}, Exits: []float64{21}}, Partial, DefaultConfig())
	if got.Side != SideShort {
		t.Fatalf("side = %q, want short", got.Side)
	}
	if !reflect.DeepEqual(got.Targets, []float64{18.5, 17.5}) {
		t.Fatalf("targets = %v", got.Targets)
	}
}

func TestApplyUsesReferencePrice(t *testing.T) {
	got := Apply(Plan{ReferencePrice: 50}, Simple, DefaultConfig())
	if !reflect.DeepEqual(got.Entries, []float64{50}) || !reflect.DeepEqual(got.Exits, []float64{49}) {
		t.Fatalf("plan = %+v", got)
	}
	if !reflect.DeepEqual(got.Targets, []float64{52}) {
		t.Fatalf("targets = %v", got.Targets)
	}
}

func TestApplyEmptyPlanNeverPanics(t *testing.T) {
	got := Apply(Plan{}, "", Config{})
	if got.Complexity != Simple || got.Side != SideLong {
		t.Fatalf("plan = %+v", got)
	}
	if len(got.Targets) != 0 || got.RiskReward != nil {
		t.Fatalf("nothing derivable, got %+v", got)
	}
}

func TestApplyWithoutEntryDropsTargets(t *testing.T) {
	got := Apply(Plan{Side: SideLong, Exits: []float64{95}, Targets: []float64{110}}, Simple, DefaultConfig())
	if len(got.Entries) != 0 {
		t.Fatalf("entries = %v, want none", got.Entries)
	}
	if len(got.Targets) != 0 || got.RiskReward != nil {
		t.Fatalf("targets = %v, want none without an entry", got.Targets)
	}
	if got, want := got.Exits, []float64{95}; !reflect.DeepEqual(got, want) {
		t.Fatalf("exits = %v, want %v", got, want)
	}
}

func TestApplyFallsBackToPlanComplexity(t *testing.T) {
	got := Apply(Plan{Complexity: Advanced, Side: SideLong, Entries: []float64{10, 11}, Exits: []float64{9}}, "", DefaultConfig())
	if got.Complexity != Advanced || len(got.Entries) != 2 || len(got.Targets) != 3 {
		t.Fatalf("plan = %+v", got)
	}
}

func TestDeriveAdvancedLong(t *testing.T) {
	got := Derive(SideLong, 100, 95, Advanced, DefaultConfig())

	if len(got.Entries) != 2 || got.Entries[1] <= 100 {
		t.Fatalf("entries = %v, want secondary above 100", got.Entries)
	}
	if len(got.Exits) != 2 || got.Exits[1] >= 95 {
		t.Fatalf("exits = %v, want extended stop below 95", got.Exits)
	}
	if got.Exits[1] != 93.5 {
		t.Fatalf("extended stop = %v, want 93.5", got.Exits[1])
	}
	if !reflect.DeepEqual(got.PositionSizing.Entries, []float64{70, 30}) ||
		!reflect.DeepEqual(got.PositionSizing.Targets, []float64{40, 35, 25}) {
		t.Fatalf("sizing = %+v", got.PositionSizing)
	}
	if got.RiskReward == nil || *got.RiskReward != 1.5 {
		t.Fatalf("risk reward = %v", got.RiskReward)
	}
}

func TestDeriveAdvancedShort(t *testing.T) {
	got := Derive(SideShort, 100, 105, Advanced, DefaultConfig())
	if got.Entries[1] >= 100 {
		t.Fatalf("entries = %v, want secondary below 100", got.Entries)
	}
	if got.Exits[1] <= 105 {
		t.Fatalf("exits = %v, want extended stop above 105", got.Exits)
	}
	for _, tg := range got.Targets {
		if tg >= 100 {
			t.Fatalf("targets = %v, want below entry", got.Targets)
		}
	}
}

func TestDeriveAdvancedWithBadStop(t *testing.T) {
	got := Derive(SideLong, 100, 0, Advanced, DefaultConfig())
	if !reflect.DeepEqual(got.Exits, []float64{98, 97.4}) {
		t.Fatalf("exits = %v", got.Exits)
	}
	if !reflect.DeepEqual(got.Entries, []float64{100, 101}) {
		t.Fatalf("entries = %v", got.Entries)
	}
}

func TestDeriveHonorsConfiguredMultipliers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExtendedStopMultiplier = 2
	cfg.TargetMultiples = map[Complexity][]float64{Advanced: {1, 2, 3}}

	got := Derive(SideLong, 100, 95, Advanced, cfg)
	if got.Exits[1] != 90 {
		t.Fatalf("extended stop = %v, want 90", got.Exits[1])
	}
	if !reflect.DeepEqual(got.Targets, []float64{105, 110, 115}) {
		t.Fatalf("targets = %v", got.Targets)
	}
}

func TestDeriveSimple(t *testing.T) {
	got := Derive(SideLong, 100, 95, Simple, DefaultConfig())
	if len(got.Entries) != 1 || len(got.Exits) != 1 || !reflect.DeepEqual(got.Targets, []float64{110}) {
		t.Fatalf("plan = %+v", got)
	}
}

func TestParseComplexity(t *testing.T) {
	cases := map[string]Complexity{"Advanced": Advanced, " partial ": Partial, "": Simple, "expert": Simple}
	for in, want := range cases {
		if got := ParseComplexity(in); got != want {
			t.Fatalf("ParseComplexity(%q) = %q, want %q", in, got, want)
		}
	}
}
