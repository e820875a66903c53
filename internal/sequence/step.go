// Package sequence runs scripted chart walkthroughs: ordered steps with
// pacing, narration, optional continue gates, screenshots and cooperative
// cancellation.
package sequence

import (
	"fmt"
	"strings"

	"github.com/dgnsrekt/tv_strategist/internal/chartctl"
	"github.com/dgnsrekt/tv_strategist/internal/indicators"
)

// StepKind names a step.
type StepKind string

const (
	KindTimeframe    StepKind = "timeframe"
	KindChartType    StepKind = "chart_type"
	KindIndicator    StepKind = "indicator"
	KindNavigate     StepKind = "navigate"
	KindToggleOption StepKind = "toggle_option"
	KindScreenshot   StepKind = "screenshot"
	KindDelay        StepKind = "delay"

	KindRemoveIndicator StepKind = "remove_indicator"
	KindNews            StepKind = "news"

	// Accepted but not yet executed.
	KindLayout StepKind = "layout"
	KindLine   StepKind = "line"
	KindLabel  StepKind = "label"
)

// Step is one scripted instruction.
type Step struct {
	Kind      StepKind            `json:"kind" enum:"timeframe,chart_type,indicator,remove_indicator,navigate,toggle_option,news,screenshot,delay,layout,line,label"`
	Message   string              `json:"message,omitempty" doc:"Narration shown while the step runs"`
	Timeframe string              `json:"timeframe,omitempty"`
	ChartType string              `json:"chart_type,omitempty"`
	Indicator string              `json:"indicator,omitempty"`
	Options   *indicators.Options `json:"options,omitempty"`
	Direction string              `json:"direction,omitempty"`
	Bars      int                 `json:"bars,omitempty"`
	Option    string              `json:"option,omitempty"`
	Enabled   bool                `json:"enabled,omitempty"`
	DelayMS   int                 `json:"delay_ms,omitempty" doc:"Wait for delay steps; pacing override for others"`
}

// Validate checks the fields the step kind needs.
func (s Step) Validate() error {
	switch s.Kind {
	case KindTimeframe:
		if strings.TrimSpace(s.Timeframe) == "" {
			return fmt.Errorf("timeframe step requires timeframe")
		}
	case KindChartType:
		if strings.TrimSpace(s.ChartType) == "" {
			return fmt.Errorf("chart_type step requires chart_type")
		}
	case KindIndicator, KindRemoveIndicator:
		if strings.TrimSpace(s.Indicator) == "" {
			return fmt.Errorf("%s step requires indicator", s.Kind)
		}
	case KindNavigate:
		return chartctl.Navigate(s.Direction).Validate()
	case KindToggleOption:
		if strings.TrimSpace(s.Option) == "" {
			return fmt.Errorf("toggle_option step requires option")
		}
	case KindDelay:
		if s.DelayMS < 0 {
			return fmt.Errorf("delay_ms must not be negative")
		}
	case KindScreenshot, KindNews, KindLayout, KindLine, KindLabel:
	default:
		return fmt.Errorf("unknown step kind %q", s.Kind)
	}
	return nil
}

// actions translates the step into chart actions. Indicator options are
// normalized for profile.
func (s Step) actions(reg *indicators.Registry, profile string) []chartctl.Action {
	switch s.Kind {
	case KindTimeframe:
		return []chartctl.Action{chartctl.SetTimeframe(s.Timeframe)}
	case KindChartType:
		return []chartctl.Action{chartctl.SetChartType(s.ChartType)}
	case KindIndicator:
		opts := reg.Normalize(s.Indicator, s.Options, profile)
		return []chartctl.Action{chartctl.AddIndicator(s.Indicator, &opts)}
	case KindRemoveIndicator:
		return []chartctl.Action{chartctl.RemoveIndicator(s.Indicator)}
	case KindNews:
		return []chartctl.Action{chartctl.CheckNews()}
	case KindNavigate:
		a := chartctl.Navigate(s.Direction)
		a.Bars = s.Bars
		return []chartctl.Action{a}
	case KindToggleOption:
		return []chartctl.Action{chartctl.ToggleDisplayOption(s.Option, s.Enabled)}
	}
	return nil
}

// StepsFromActions turns chart actions into narrated steps. Actions that
// never reach the chart are skipped.
func StepsFromActions(actions []chartctl.Action) []Step {
	var steps []Step
	for _, a := range actions {
		step := Step{Message: a.Describe()}
		switch a.Type {
		case chartctl.ActionSetTimeframe:
			step.Kind, step.Timeframe = KindTimeframe, a.Timeframe
		case chartctl.ActionSetChartType:
			step.Kind, step.ChartType = KindChartType, a.ChartType
		case chartctl.ActionAddIndicator:
			step.Kind, step.Indicator, step.Options = KindIndicator, a.Indicator, a.Options.Clone()
		case chartctl.ActionRemoveIndicator:
			step.Kind, step.Indicator = KindRemoveIndicator, a.Indicator
		case chartctl.ActionCheckNews:
			step.Kind = KindNews
		case chartctl.ActionNavigate:
			step.Kind, step.Direction, step.Bars = KindNavigate, a.Direction, a.Bars
		case chartctl.ActionToggleDisplayOption:
			step.Kind, step.Option, step.Enabled = KindToggleOption, a.Option, a.Enabled
		default:
			continue
		}
		steps = append(steps, step)
	}
	return steps
}
