// Package tradeplan shapes raw trade levels into plans whose structure is
// bounded by a complexity tier.
package tradeplan

import (
	"strings"
)

// Side is the trade direction.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Complexity selects how many levels a plan may carry.
type Complexity string

const (
	Simple   Complexity = "simple"
	Partial  Complexity = "partial"
	Advanced Complexity = "advanced"
)

// ParseComplexity maps free text onto a tier. Unknown values yield Simple.
func ParseComplexity(s string) Complexity {
	switch Complexity(strings.ToLower(strings.TrimSpace(s))) {
	case Partial:
		return Partial
	case Advanced:
		return Advanced
	}
	return Simple
}

// PositionSizing holds allocation percentages; each list sums to 100.
type PositionSizing struct {
	Entries []float64 `json:"entries"`
	Targets []float64 `json:"targets"`
}

// Plan is a trade plan. Entries[1] is the secondary entry and Exits[1] the
// extended stop. LateEntry and LateExit are loose secondary levels some
// generators emit; Apply folds or drops them.
type Plan struct {
	Side           Side            `json:"side,omitempty" enum:"long,short"`
	Complexity     Complexity      `json:"complexity,omitempty" enum:"simple,partial,advanced"`
	Entries        []float64       `json:"entries" required:"false"`
	Exits          []float64       `json:"exits" required:"false"`
	Targets        []float64       `json:"targets" required:"false"`
	LateEntry      *float64        `json:"late_entry,omitempty"`
	LateExit       *float64        `json:"late_exit,omitempty"`
	ReferencePrice float64         `json:"reference_price,omitempty" doc:"Last price, used when no entry is given"`
	RiskReward     *float64        `json:"risk_reward,omitempty"`
	PositionSizing *PositionSizing `json:"position_sizing,omitempty"`
}

// Clone returns a deep copy.
func (p Plan) Clone() Plan {
	out := p
	out.Entries = cloneFloats(p.Entries)
	out.Exits = cloneFloats(p.Exits)
	out.Targets = cloneFloats(p.Targets)
	out.LateEntry = clonePtr(p.LateEntry)
	out.LateExit = clonePtr(p.LateExit)
	out.RiskReward = clonePtr(p.RiskReward)
	if p.PositionSizing != nil {
		out.PositionSizing = &PositionSizing{
			Entries: cloneFloats(p.PositionSizing.Entries),
			Targets: cloneFloats(p.PositionSizing.Targets),
		}
	}
	return out
}

// Tier describes the structural limits of a complexity level.
type Tier struct {
	Name           Complexity     `json:"name"`
	Description    string         `json:"description"`
	MaxEntries     int            `json:"max_entries"`
	MaxExits       int            `json:"max_exits"`
	MaxTargets     int            `json:"max_targets"`
	SecondaryEntry bool           `json:"secondary_entry"`
	ExtendedStop   bool           `json:"extended_stop"`
	DefaultSizing  PositionSizing `json:"default_sizing"`
}

var tiers = []Tier{
	{
		Name:          Simple,
		Description:   "One entry, one stop and a single target. Full size in and out.",
		MaxEntries:    1,
		MaxExits:      1,
		MaxTargets:    1,
		DefaultSizing: PositionSizing{Entries: []float64{100}, Targets: []float64{100}},
	},
	{
		Name:          Partial,
		Description:   "One entry and one stop with two targets for scaling out.",
		MaxEntries:    1,
		MaxExits:      1,
		MaxTargets:    2,
		DefaultSizing: PositionSizing{Entries: []float64{100}, Targets: []float64{50, 50}},
	},
	{
		Name:           Advanced,
		Description:    "Primary and breakout entries, primary and extended stops, three targets.",
		MaxEntries:     2,
		MaxExits:       2,
		MaxTargets:     3,
		SecondaryEntry: true,
		ExtendedStop:   true,
		DefaultSizing:  PositionSizing{Entries: []float64{70, 30}, Targets: []float64{40, 35, 25}},
	},
}

// Tiers lists the complexity tiers from simplest to most detailed.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	for i, t := range tiers {
		out[i] = t
		out[i].DefaultSizing = PositionSizing{
			Entries: cloneFloats(t.DefaultSizing.Entries),
			Targets: cloneFloats(t.DefaultSizing.Targets),
		}
	}
	return out
}

func tierFor(c Complexity) Tier {
	for _, t := range Tiers() {
		if t.Name == c {
			return t
		}
	}
	return Tiers()[0]
}

func cloneFloats(in []float64) []float64 {
	if in == nil {
		return nil
	}
	return append([]float64(nil), in...)
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
