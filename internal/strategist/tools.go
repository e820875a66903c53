package strategist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/dgnsrekt/tv_strategist/internal/chartctl"
	"github.com/dgnsrekt/tv_strategist/internal/indicators"
	"github.com/dgnsrekt/tv_strategist/internal/llm"
)

// Tool names offered to the model.
const (
	ToolSetTimeframe        = "set_timeframe"
	ToolSetChartType        = "set_chart_type"
	ToolAddIndicator        = "add_indicator"
	ToolRemoveIndicator     = "remove_indicator"
	ToolNavigate            = "navigate"
	ToolToggleDisplayOption = "toggle_display_option"
	ToolCheckNews           = "check_news"
	ToolRunAnalysis         = "run_analysis"
)

type timeframeArgs struct {
	Timeframe string `json:"timeframe" validate:"required,timeframe"`
}

type chartTypeArgs struct {
	ChartType string `json:"chart_type" validate:"required,chart_type"`
}

type addIndicatorArgs struct {
	Indicator string    `json:"indicator" validate:"required,indicator"`
	Params    []float64 `json:"params" validate:"omitempty,max=8,dive,gt=0"`
	Colors    []string  `json:"colors" validate:"omitempty,max=8,dive,hexcolor"`
}

type removeIndicatorArgs struct {
	Indicator string `json:"indicator" validate:"required,indicator"`
}

type navigateArgs struct {
	Direction string `json:"direction" validate:"required,direction"`
	Bars      int    `json:"bars" default:"10" validate:"gte=1,lte=500"`
}

type toggleArgs struct {
	Option  string `json:"option" validate:"required,display_option"`
	Enabled *bool  `json:"enabled" default:"true" validate:"required"`
}

type analysisArgs struct {
	Strategy string `json:"strategy" validate:"omitempty,strategy"`
}

type emptyArgs struct{}

// Toolset holds the tool schemas for a vocabulary and maps the model's tool
// calls back onto actions.
type Toolset struct {
	vocab    Vocabulary
	registry *indicators.Registry
	validate *validator.Validate
}

// NewToolset builds the schemas and validator for reg.
func NewToolset(reg *indicators.Registry) *Toolset {
	t := &Toolset{vocab: BuildVocabulary(reg), registry: reg, validate: validator.New()}
	t.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	t.register("timeframe", func(s string) bool { return contains(t.vocab.Timeframes, s) })
	t.register("chart_type", func(s string) bool { return contains(t.vocab.ChartTypes, strings.ToLower(s)) })
	t.register("display_option", func(s string) bool { return contains(t.vocab.DisplayOptions, strings.ToLower(s)) })
	t.register("direction", func(s string) bool { return contains(t.vocab.Directions, strings.ToLower(s)) })
	t.register("strategy", reg.HasProfile)
	t.register("indicator", func(s string) bool {
		_, ok := reg.Lookup(s)
		return ok
	})
	return t
}

func (t *Toolset) register(tag string, fn func(string) bool) {
	// Only fails for an empty tag or nil func.
	_ = t.validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return fn(fl.Field().String())
	})
}

// Vocabulary returns the closed vocabulary the tools validate against.
func (t *Toolset) Vocabulary() Vocabulary { return t.vocab }

// Tools returns the tool definitions offered to the model.
func (t *Toolset) Tools() []llm.Tool {
	v := t.vocab
	return []llm.Tool{
		{
			Name:        ToolSetTimeframe,
			Description: "Change the chart timeframe.",
			Parameters: llm.ObjectSchema("", map[string]*llm.JSONSchema{
				"timeframe": llm.EnumProp("Bar interval", v.Timeframes...),
			}, "timeframe"),
		},
		{
			Name:        ToolSetChartType,
			Description: "Change how price bars are drawn.",
			Parameters: llm.ObjectSchema("", map[string]*llm.JSONSchema{
				"chart_type": llm.EnumProp("Chart style", v.ChartTypes...),
			}, "chart_type"),
		},
		{
			Name:        ToolAddIndicator,
			Description: "Add a technical indicator. Omit params to use the trading profile defaults.",
			Parameters: llm.ObjectSchema("", map[string]*llm.JSONSchema{
				"indicator": llm.EnumProp("Indicator name", v.Indicators...),
				"params":    llm.ArrayProp("Calculation parameters, one line per value", llm.NumberProp("")),
				"colors":    llm.ArrayProp("Line colors as #RRGGBB, by line", llm.StringProp("")),
			}, "indicator"),
		},
		{
			Name:        ToolRemoveIndicator,
			Description: "Remove an indicator from the chart.",
			Parameters: llm.ObjectSchema("", map[string]*llm.JSONSchema{
				"indicator": llm.EnumProp("Indicator name", v.Indicators...),
			}, "indicator"),
		},
		{
			Name:        ToolNavigate,
			Description: "Scroll or zoom the chart.",
			Parameters: llm.ObjectSchema("", map[string]*llm.JSONSchema{
				"direction": llm.EnumProp("Where to move", v.Directions...),
				"bars":      llm.IntProp("Bars to scroll for left/right, default 10"),
			}, "direction"),
		},
		{
			Name:        ToolToggleDisplayOption,
			Description: "Turn a chart display option on or off.",
			Parameters: llm.ObjectSchema("", map[string]*llm.JSONSchema{
				"option":  llm.EnumProp("Display option", v.DisplayOptions...),
				"enabled": llm.BoolProp("Desired state, default true"),
			}, "option"),
		},
		{
			Name:        ToolCheckNews,
			Description: "Open the news panel for the current symbol.",
			Parameters:  llm.ObjectSchema("", nil),
		},
		{
			Name:        ToolRunAnalysis,
			Description: "Produce a trade plan. Only call this when the user asks for analysis or a plan.",
			Parameters: llm.ObjectSchema("", map[string]*llm.JSONSchema{
				"strategy": llm.EnumProp("Trading style", v.Strategies...),
			}),
		},
	}
}

// ToolCallToAction maps one tool call onto an action. Unknown tools and
// arguments that fail the schema become NoOp with the reason attached.
// Indicator options are normalized for profile.
func (t *Toolset) ToolCallToAction(call llm.ToolCall, profile string) chartctl.Action {
	a, err := t.toAction(call, profile)
	if err != nil {
		slog.Warn("tool call rejected", "tool", call.Name, "call_id", call.ID, "error", err)
		return chartctl.NoOp(err.Error())
	}
	return a
}

func (t *Toolset) toAction(call llm.ToolCall, profile string) (chartctl.Action, error) {
	switch call.Name {
	case ToolSetTimeframe:
		var args timeframeArgs
		if err := t.decode(call.Arguments, &args); err != nil {
			return chartctl.Action{}, err
		}
		return chartctl.SetTimeframe(args.Timeframe), nil
	case ToolSetChartType:
		var args chartTypeArgs
		if err := t.decode(call.Arguments, &args); err != nil {
			return chartctl.Action{}, err
		}
		return chartctl.SetChartType(strings.ToLower(args.ChartType)), nil
	case ToolAddIndicator:
		var args addIndicatorArgs
		if err := t.decode(call.Arguments, &args); err != nil {
			return chartctl.Action{}, err
		}
		def, _ := t.registry.Lookup(args.Indicator)
		opts := t.registry.Normalize(def.Name, args.options(), profile)
		return chartctl.AddIndicator(def.Name, &opts), nil
	case ToolRemoveIndicator:
		var args removeIndicatorArgs
		if err := t.decode(call.Arguments, &args); err != nil {
			return chartctl.Action{}, err
		}
		def, _ := t.registry.Lookup(args.Indicator)
		return chartctl.RemoveIndicator(def.Name), nil
	case ToolNavigate:
		var args navigateArgs
		if err := t.decode(call.Arguments, &args); err != nil {
			return chartctl.Action{}, err
		}
		a := chartctl.Navigate(strings.ToLower(args.Direction))
		if a.Direction == chartctl.NavigateLeft || a.Direction == chartctl.NavigateRight {
			a.Bars = args.Bars
		}
		return a, nil
	case ToolToggleDisplayOption:
		var args toggleArgs
		if err := t.decode(call.Arguments, &args); err != nil {
			return chartctl.Action{}, err
		}
		return chartctl.ToggleDisplayOption(strings.ToLower(args.Option), *args.Enabled), nil
	case ToolCheckNews:
		if err := t.decode(call.Arguments, &emptyArgs{}); err != nil {
			return chartctl.Action{}, err
		}
		return chartctl.CheckNews(), nil
	case ToolRunAnalysis:
		var args analysisArgs
		if err := t.decode(call.Arguments, &args); err != nil {
			return chartctl.Action{}, err
		}
		return chartctl.RunAnalysis(strings.ToLower(args.Strategy)), nil
	}
	return chartctl.Action{}, fmt.Errorf("unknown tool %q", call.Name)
}

// decode reads raw into dst, rejecting unknown fields, then applies defaults
// and validates.
func (t *Toolset) decode(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := defaults.Set(dst); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	if err := t.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must have at most %s values", fe.Field(), fe.Param()))
		case "gt", "gte", "lte":
			msgs = append(msgs, fmt.Sprintf("%s is out of range", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s %v is not a valid %s", fe.Field(), fe.Value(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

func (a addIndicatorArgs) options() *indicators.Options {
	if a.Params == nil && len(a.Colors) == 0 {
		return nil
	}
	opts := &indicators.Options{CalcParams: a.Params}
	if len(a.Colors) > 0 {
		opts.Styles = &indicators.Styles{}
		for _, c := range a.Colors {
			opts.Styles.Lines = append(opts.Styles.Lines, indicators.LineStyle{Color: c})
		}
	}
	return opts
}
