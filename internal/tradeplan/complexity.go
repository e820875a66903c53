package tradeplan

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// Config holds the multipliers used when levels have to be derived.
type Config struct {
	// ExtendedStopMultiplier places the advanced extended stop at this many
	// times the primary risk from the entry.
	ExtendedStopMultiplier float64
	// SecondaryEntryFraction places the advanced breakout entry this
	// fraction of the risk beyond the primary entry.
	SecondaryEntryFraction float64
	// DefaultStopPct is the stop distance, in percent of entry, used when a
	// plan has an entry but no valid stop.
	DefaultStopPct float64
	// TargetMultiples are the R multiples of derived targets per tier.
	TargetMultiples map[Complexity][]float64
}

// DefaultConfig returns the standard multipliers.
func DefaultConfig() Config {
	return Config{
		ExtendedStopMultiplier: 1.3,
		SecondaryEntryFraction: 0.5,
		DefaultStopPct:         2,
		TargetMultiples: map[Complexity][]float64{
			Simple:   {2},
			Partial:  {1.5, 2.5},
			Advanced: {1.5, 2.5, 3.5},
		},
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ExtendedStopMultiplier <= 1 {
		c.ExtendedStopMultiplier = d.ExtendedStopMultiplier
	}
	if c.SecondaryEntryFraction <= 0 {
		c.SecondaryEntryFraction = d.SecondaryEntryFraction
	}
	if c.DefaultStopPct <= 0 || c.DefaultStopPct >= 100 {
		c.DefaultStopPct = d.DefaultStopPct
	}
	if c.TargetMultiples == nil {
		c.TargetMultiples = d.TargetMultiples
	}
	return c
}

// Apply projects plan onto the structure allowed by tier. An empty tier
// falls back to the plan's own complexity. Apply never fails and is
// idempotent: applying its output again with the same tier changes nothing.
//
// Prices are rounded, non-positive levels are dropped, stops must sit on the
// loss side of the primary entry and targets on the profit side. A missing
// stop or missing targets are derived from whatever entry remains. Targets
// are left empty only when no entry can be determined.
func Apply(plan Plan, tier Complexity, cfg Config) Plan {
	cfg = cfg.withDefaults()
	if tier == "" {
		tier = plan.Complexity
	}
	t := tierFor(ParseComplexity(string(tier)))

	out := plan.Clone()
	out.Complexity = t.Name
	out.Entries = cleanLevels(out.Entries)
	out.Exits = cleanLevels(out.Exits)
	out.Targets = cleanLevels(out.Targets)
	out.ReferencePrice = roundPrice(out.ReferencePrice)

	if t.SecondaryEntry && out.LateEntry != nil && len(out.Entries) == 1 {
		out.Entries = append(out.Entries, cleanLevels([]float64{*out.LateEntry})...)
	}
	if t.ExtendedStop && out.LateExit != nil && len(out.Exits) == 1 {
		out.Exits = append(out.Exits, cleanLevels([]float64{*out.LateExit})...)
	}
	out.LateEntry, out.LateExit = nil, nil

	if len(out.Entries) == 0 && out.ReferencePrice > 0 {
		out.Entries = []float64{out.ReferencePrice}
	}

	if len(out.Entries) > 0 {
		entry := out.Entries[0]
		out.Side = resolveSide(out.Side, entry, out.Exits)
		dir := out.Side.sign()

		out.Entries = keep(out.Entries, func(i int, v float64) bool { return i == 0 || v != entry })
		out.Exits = keep(out.Exits, func(_ int, v float64) bool { return dir*(entry-v) > 0 })
		if len(out.Exits) > 0 {
			stop := out.Exits[0]
			out.Exits = keep(out.Exits, func(i int, v float64) bool { return i == 0 || dir*(stop-v) > 0 })
		}
		out.Targets = keep(out.Targets, func(_ int, v float64) bool { return dir*(v-entry) > 0 })

		if len(out.Exits) == 0 {
			stop := roundPrice(entry * (1 - dir*cfg.DefaultStopPct/100))
			if dir*(entry-stop) > 0 {
				out.Exits = []float64{stop}
			}
		}
	} else {
		if out.Side != SideShort {
			out.Side = SideLong
		}
		// Without an entry no target can be placed on the profit side.
		out.Targets = []float64{}
	}

	out.Targets = sortTargets(out.Targets, out.Side)
	out.Entries = truncate(out.Entries, t.MaxEntries)
	out.Exits = truncate(out.Exits, t.MaxExits)
	out.Targets = truncate(out.Targets, t.MaxTargets)

	if len(out.Targets) == 0 && len(out.Entries) > 0 && len(out.Exits) > 0 {
		multiples := cfg.TargetMultiples[t.Name]
		if len(multiples) == 0 {
			multiples = DefaultConfig().TargetMultiples[t.Name]
		}
		out.Targets = deriveTargets(out.Side, out.Entries[0], out.Exits[0], multiples, t.MaxTargets)
	}

	out.RiskReward = nil
	if len(out.Entries) > 0 && len(out.Exits) > 0 && len(out.Targets) > 0 {
		risk := math.Abs(out.Entries[0] - out.Exits[0])
		if risk > 0 {
			rr := roundRatio(math.Abs(out.Targets[0]-out.Entries[0]) / risk)
			out.RiskReward = &rr
		}
	}

	sizing := t.DefaultSizing
	out.PositionSizing = &sizing
	return out
}

// Derive builds a plan for tier from a raw entry and stop. For the advanced
// tier it adds a breakout entry beyond the entry, away from the stop, and an
// extended stop further out than the primary stop.
func Derive(side Side, entry, stop float64, tier Complexity, cfg Config) Plan {
	cfg = cfg.withDefaults()
	t := tierFor(ParseComplexity(string(tier)))

	plan := Plan{Side: side, Complexity: t.Name}
	entry, stop = roundPrice(entry), roundPrice(stop)
	if entry > 0 {
		plan.Entries = []float64{entry}
	}
	if stop > 0 {
		plan.Exits = []float64{stop}
	}

	if t.Name == Advanced && entry > 0 {
		if side != SideLong && side != SideShort {
			side = resolveSide("", entry, plan.Exits)
			plan.Side = side
		}
		dir := side.sign()
		risk := entry - stop
		if stop <= 0 || dir*risk <= 0 {
			risk = dir * entry * cfg.DefaultStopPct / 100
			plan.Exits = []float64{roundPrice(entry - risk)}
		}
		plan.Entries = append(plan.Entries, roundPrice(entry+risk*cfg.SecondaryEntryFraction))
		plan.Exits = append(plan.Exits, roundPrice(entry-risk*cfg.ExtendedStopMultiplier))
	}
	return Apply(plan, t.Name, cfg)
}

// sign is +1 for long and -1 for short.
func (s Side) sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

func resolveSide(side Side, entry float64, exits []float64) Side {
	if side == SideLong || side == SideShort {
		return side
	}
	if len(exits) > 0 && exits[0] > entry {
		return SideShort
	}
	return SideLong
}

func deriveTargets(side Side, entry, stop float64, multiples []float64, limit int) []float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return []float64{}
	}
	dir := side.sign()
	var out []float64
	for _, m := range multiples {
		if len(out) == limit {
			break
		}
		v := roundPrice(entry + dir*m*risk)
		if v > 0 && dir*(v-entry) > 0 {
			out = append(out, v)
		}
	}
	return sortTargets(out, side)
}

func cleanLevels(in []float64) []float64 {
	out := make([]float64, 0, len(in))
	for _, v := range in {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		v = roundPrice(v)
		if v > 0 {
			out = append(out, v)
		}
	}
	return out
}

func keep(in []float64, fn func(i int, v float64) bool) []float64 {
	out := make([]float64, 0, len(in))
	for i, v := range in {
		if fn(i, v) {
			out = append(out, v)
		}
	}
	return out
}

// sortTargets orders targets nearest first and removes duplicates.
func sortTargets(in []float64, side Side) []float64 {
	out := append([]float64{}, in...)
	if side == SideShort {
		sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	} else {
		sort.Float64s(out)
	}
	dedup := make([]float64, 0, len(out))
	for _, v := range out {
		if n := len(dedup); n > 0 && dedup[n-1] == v {
			continue
		}
		dedup = append(dedup, v)
	}
	return dedup
}

func truncate(in []float64, n int) []float64 {
	if len(in) > n {
		return in[:n]
	}
	return in
}

// roundPrice keeps two decimals for prices of one or more and six below.
func roundPrice(v float64) float64 {
	places := int32(2)
	if math.Abs(v) < 1 {
		places = 6
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

func roundRatio(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
