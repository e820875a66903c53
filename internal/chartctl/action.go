// Package chartctl defines the chart action vocabulary, the session that
// routes actions to the registered chart bridge, and the chart state
// snapshot maintained from successful actions.
package chartctl

import (
	"fmt"
	"strings"

	"github.com/dgnsrekt/tv_strategist/internal/indicators"
)

// ActionType discriminates the Action variants.
type ActionType string

const (
	ActionSetTimeframe        ActionType = "set_timeframe"
	ActionSetChartType        ActionType = "set_chart_type"
	ActionAddIndicator        ActionType = "add_indicator"
	ActionRemoveIndicator     ActionType = "remove_indicator"
	ActionNavigate            ActionType = "navigate"
	ActionToggleDisplayOption ActionType = "toggle_display_option"
	ActionCheckNews           ActionType = "check_news"
	ActionRunAnalysis         ActionType = "run_analysis"
	ActionNoOp                ActionType = "noop"
)

// Navigation directions.
const (
	NavigateLeft     = "left"
	NavigateRight    = "right"
	NavigateZoomIn   = "zoom_in"
	NavigateZoomOut  = "zoom_out"
	NavigateReset    = "reset"
	NavigateRealtime = "realtime"
)

// NavigateDirections lists every accepted navigate direction.
var NavigateDirections = []string{
	NavigateLeft, NavigateRight, NavigateZoomIn, NavigateZoomOut, NavigateReset, NavigateRealtime,
}

// Action is one chart command. Only the fields of the variant named by Type
// are meaningful.
type Action struct {
	Type      ActionType          `json:"type" enum:"set_timeframe,set_chart_type,add_indicator,remove_indicator,navigate,toggle_display_option,check_news,run_analysis,noop"`
	Timeframe string              `json:"timeframe,omitempty"`
	ChartType string              `json:"chart_type,omitempty"`
	Indicator string              `json:"indicator,omitempty"`
	Options   *indicators.Options `json:"options,omitempty"`
	Direction string              `json:"direction,omitempty"`
	Bars      int                 `json:"bars,omitempty"`
	Option    string              `json:"option,omitempty"`
	Enabled   bool                `json:"enabled,omitempty"`
	Strategy  string              `json:"strategy,omitempty"`
	Reason    string              `json:"reason,omitempty"`
}

func SetTimeframe(tf string) Action { return Action{Type: ActionSetTimeframe, Timeframe: tf} }

func SetChartType(ct string) Action { return Action{Type: ActionSetChartType, ChartType: ct} }

func AddIndicator(name string, opts *indicators.Options) Action {
	return Action{Type: ActionAddIndicator, Indicator: name, Options: opts}
}

func RemoveIndicator(name string) Action {
	return Action{Type: ActionRemoveIndicator, Indicator: name}
}

func Navigate(direction string) Action { return Action{Type: ActionNavigate, Direction: direction} }

func ToggleDisplayOption(option string, enabled bool) Action {
	return Action{Type: ActionToggleDisplayOption, Option: option, Enabled: enabled}
}

func CheckNews() Action { return Action{Type: ActionCheckNews} }

func RunAnalysis(strategy string) Action { return Action{Type: ActionRunAnalysis, Strategy: strategy} }

func NoOp(reason string) Action { return Action{Type: ActionNoOp, Reason: reason} }

// IsChartAction reports whether the action is forwarded to the chart bridge.
// Analysis requests and no-ops are handled outside the chart.
func (a Action) IsChartAction() bool {
	switch a.Type {
	case ActionRunAnalysis, ActionNoOp, "":
		return false
	}
	return true
}

// Validate checks that the fields required by the variant are present.
func (a Action) Validate() error {
	switch a.Type {
	case ActionSetTimeframe:
		if strings.TrimSpace(a.Timeframe) == "" {
			return fmt.Errorf("timeframe is required")
		}
	case ActionSetChartType:
		if strings.TrimSpace(a.ChartType) == "" {
			return fmt.Errorf("chart_type is required")
		}
	case ActionAddIndicator, ActionRemoveIndicator:
		if strings.TrimSpace(a.Indicator) == "" {
			return fmt.Errorf("indicator is required")
		}
	case ActionNavigate:
		for _, d := range NavigateDirections {
			if a.Direction == d {
				return nil
			}
		}
		return fmt.Errorf("direction must be one of %s", strings.Join(NavigateDirections, ", "))
	case ActionToggleDisplayOption:
		if strings.TrimSpace(a.Option) == "" {
			return fmt.Errorf("option is required")
		}
	case ActionCheckNews, ActionRunAnalysis, ActionNoOp:
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}

// Describe renders a one-sentence summary of the action.
func (a Action) Describe() string {
	switch a.Type {
	case ActionSetTimeframe:
		return fmt.Sprintf("Timeframe set to %s.", a.Timeframe)
	case ActionSetChartType:
		return fmt.Sprintf("Chart type set to %s.", a.ChartType)
	case ActionAddIndicator:
		var params []float64
		if a.Options != nil {
			params = a.Options.CalcParams
		}
		return fmt.Sprintf("Added %s.", indicators.Label(strings.ToUpper(a.Indicator), params))
	case ActionRemoveIndicator:
		return fmt.Sprintf("Removed %s.", strings.ToUpper(a.Indicator))
	case ActionNavigate:
		return fmt.Sprintf("Moved chart %s.", strings.ReplaceAll(a.Direction, "_", " "))
	case ActionToggleDisplayOption:
		state := "off"
		if a.Enabled {
			state = "on"
		}
		return fmt.Sprintf("Turned %s %s.", strings.ReplaceAll(a.Option, "_", " "), state)
	case ActionCheckNews:
		return "Opened the news panel."
	case ActionRunAnalysis:
		if a.Strategy != "" {
			return fmt.Sprintf("Ran %s analysis.", strings.ReplaceAll(a.Strategy, "_", " "))
		}
		return "Ran analysis."
	}
	return ""
}

// Summarize joins the descriptions of actions into a reply.
func Summarize(actions []Action) string {
	var parts []string
	for _, a := range actions {
		if d := a.Describe(); d != "" {
			parts = append(parts, d)
		}
	}
	if len(parts) == 0 {
		return "No chart changes were made."
	}
	return strings.Join(parts, " ")
}
