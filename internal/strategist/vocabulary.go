// Package strategist turns a conversational request into chart actions and,
// when explicitly asked for, a complexity-bounded trade plan.
package strategist

import (
	"strings"

	"github.com/dgnsrekt/tv_strategist/internal/chartctl"
	"github.com/dgnsrekt/tv_strategist/internal/indicators"
	"github.com/dgnsrekt/tv_strategist/internal/tradeplan"
)

// Timeframes accepted by set_timeframe. Minutes are lower case, months are
// upper case, so matching is case-sensitive.
var Timeframes = []string{"1m", "3m", "5m", "15m", "30m", "1h", "2h", "4h", "1D", "1W", "1M"}

// ChartTypes accepted by set_chart_type.
var ChartTypes = []string{"candles", "bars", "line", "area", "heikin_ashi", "hollow_candles", "baseline"}

// DisplayOptions accepted by toggle_display_option.
var DisplayOptions = []string{"log_scale", "auto_scale", "extended_hours"}

// Vocabulary is the closed set of values a tool call may use.
type Vocabulary struct {
	Timeframes     []string         `json:"timeframes"`
	ChartTypes     []string         `json:"chart_types"`
	Indicators     []string         `json:"indicators"`
	Colors         []string         `json:"colors"`
	Strategies     []string         `json:"strategies"`
	Tiers          []tradeplan.Tier `json:"tiers"`
	DisplayOptions []string         `json:"display_options"`
	Directions     []string         `json:"directions"`
}

// BuildVocabulary collects every choice available to the agent.
func BuildVocabulary(reg *indicators.Registry) Vocabulary {
	return Vocabulary{
		Timeframes:     append([]string(nil), Timeframes...),
		ChartTypes:     append([]string(nil), ChartTypes...),
		Indicators:     reg.Names(),
		Colors:         reg.Colors(),
		Strategies:     reg.Profiles(),
		Tiers:          tradeplan.Tiers(),
		DisplayOptions: append([]string(nil), DisplayOptions...),
		Directions:     append([]string(nil), chartctl.NavigateDirections...),
	}
}

func (v Vocabulary) tierNames() []string {
	out := make([]string, 0, len(v.Tiers))
	for _, t := range v.Tiers {
		out = append(out, string(t.Name))
	}
	return out
}

// prompt renders the vocabulary for the system prompt.
func (v Vocabulary) prompt() string {
	var b strings.Builder
	line := func(label string, values []string) {
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(strings.Join(values, ", "))
		b.WriteString("\n")
	}
	line("Timeframes", v.Timeframes)
	line("Chart types", v.ChartTypes)
	line("Indicators", v.Indicators)
	line("Colors", v.Colors)
	line("Strategies", v.Strategies)
	line("Complexity tiers", v.tierNames())
	line("Display options", v.DisplayOptions)
	line("Navigate directions", v.Directions)
	return b.String()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
