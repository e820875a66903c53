package chartctl

import (
	"strings"
	"sync"

	"github.com/dgnsrekt/tv_strategist/internal/indicators"
)

// IndicatorEntry is one indicator currently on the chart.
type IndicatorEntry struct {
	Indicator string              `json:"indicator"`
	Options   *indicators.Options `json:"options,omitempty"`
}

// Snapshot is a point-in-time copy of the chart configuration.
type Snapshot struct {
	Timeframe  string           `json:"timeframe,omitempty"`
	ChartType  string           `json:"chart_type,omitempty"`
	Indicators []IndicatorEntry `json:"indicators"`
}

// Update carries the fields to merge. Nil scalars are left untouched; a
// non-nil Indicators slice replaces the whole list (empty clears it).
type Update struct {
	Timeframe  *string
	ChartType  *string
	Indicators []IndicatorEntry
}

// State is the last-known chart configuration. It is changed only via Merge.
type State struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewState returns an empty state.
func NewState() *State {
	return &State{snap: Snapshot{Indicators: []IndicatorEntry{}}}
}

// Merge applies u.
func (s *State) Merge(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mergeLocked(u)
}

func (s *State) mergeLocked(u Update) {
	if u.Timeframe != nil {
		s.snap.Timeframe = *u.Timeframe
	}
	if u.ChartType != nil {
		s.snap.ChartType = *u.ChartType
	}
	if u.Indicators != nil {
		s.snap.Indicators = cloneEntries(u.Indicators)
	}
}

// Snapshot returns a deep copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Timeframe:  s.snap.Timeframe,
		ChartType:  s.snap.ChartType,
		Indicators: cloneEntries(s.snap.Indicators),
	}
}

// Apply records a successfully performed action by merging the resulting
// configuration. Actions that do not change configuration are ignored.
func (s *State) Apply(a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch a.Type {
	case ActionSetTimeframe:
		tf := a.Timeframe
		s.mergeLocked(Update{Timeframe: &tf})
	case ActionSetChartType:
		ct := a.ChartType
		s.mergeLocked(Update{ChartType: &ct})
	case ActionAddIndicator:
		list := withoutIndicator(s.snap.Indicators, a.Indicator)
		list = append(list, IndicatorEntry{Indicator: a.Indicator, Options: a.Options.Clone()})
		s.mergeLocked(Update{Indicators: list})
	case ActionRemoveIndicator:
		s.mergeLocked(Update{Indicators: withoutIndicator(s.snap.Indicators, a.Indicator)})
	}
}

func withoutIndicator(list []IndicatorEntry, name string) []IndicatorEntry {
	out := make([]IndicatorEntry, 0, len(list))
	for _, e := range list {
		if !strings.EqualFold(e.Indicator, name) {
			out = append(out, e)
		}
	}
	return out
}

func cloneEntries(in []IndicatorEntry) []IndicatorEntry {
	out := make([]IndicatorEntry, len(in))
	for i, e := range in {
		out[i] = IndicatorEntry{Indicator: e.Indicator, Options: e.Options.Clone()}
	}
	return out
}
