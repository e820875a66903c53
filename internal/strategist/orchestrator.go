package strategist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgnsrekt/tv_strategist/internal/chartctl"
	"github.com/dgnsrekt/tv_strategist/internal/llm"
	"github.com/dgnsrekt/tv_strategist/internal/sequence"
	"github.com/dgnsrekt/tv_strategist/internal/tradeplan"
)

const defaultSequenceThreshold = 2

// Replies used when the model or analysis cannot be reached.
const (
	unavailableReply      = "I couldn't reach the assistant right now."
	analysisUnavailable   = "Analysis is unavailable right now."
	sequenceCancelledNote = "The sequence was cancelled."
)

// Config tunes the orchestrator.
type Config struct {
	// SequenceThreshold is the number of chart actions above which the
	// actions run as a narrated sequence instead of directly.
	SequenceThreshold int
	DefaultProfile    string
	StepDelay         time.Duration
	BridgeWait        time.Duration
}

// Request is one conversational turn.
type Request struct {
	Message    string               `json:"message" minLength:"1"`
	History    []llm.Message        `json:"history,omitempty"`
	Symbol     string               `json:"symbol,omitempty"`
	Complexity tradeplan.Complexity `json:"complexity,omitempty" enum:"simple,partial,advanced"`
	Profile    string               `json:"profile,omitempty"`
	Narrate    bool                 `json:"narrate,omitempty"`
}

// Response is the outcome of a turn. Batch is set when actions ran
// directly, Sequence when they ran through the sequence engine.
type Response struct {
	Reply    string                `json:"reply"`
	Analysis *Analysis             `json:"analysis"`
	Actions  []chartctl.Action     `json:"actions"`
	Batch    *chartctl.BatchResult `json:"batch,omitempty"`
	Sequence *sequence.Result      `json:"sequence,omitempty"`
}

// Orchestrator handles conversational requests.
type Orchestrator struct {
	session  *chartctl.Session
	engine   *sequence.Engine
	reasoner llm.Reasoner
	analyzer Analyzer
	tools    *Toolset
	cfg      Config
}

// New wires an orchestrator. reasoner and analyzer may be nil.
func New(session *chartctl.Session, engine *sequence.Engine, reasoner llm.Reasoner, analyzer Analyzer, tools *Toolset, cfg Config) *Orchestrator {
	if cfg.SequenceThreshold <= 0 {
		cfg.SequenceThreshold = defaultSequenceThreshold
	}
	if cfg.DefaultProfile == "" {
		cfg.DefaultProfile = "day_trade"
	}
	return &Orchestrator{
		session:  session,
		engine:   engine,
		reasoner: reasoner,
		analyzer: analyzer,
		tools:    tools,
		cfg:      cfg,
	}
}

// Handle processes one turn. Model and analysis failures are folded into
// the reply; an error is returned only for an empty message.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Response, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, fmt.Errorf("message is required")
	}
	if IsDecline(msg) {
		slog.Info("strategist decline short-circuit")
		return &Response{Reply: DeclineReply, Actions: []chartctl.Action{}}, nil
	}

	profile := req.Profile
	if profile == "" || !o.tools.registry.HasProfile(profile) {
		profile = o.cfg.DefaultProfile
	}
	tier := tradeplan.ParseComplexity(string(req.Complexity))

	out := &Response{Actions: []chartctl.Action{}}
	if o.reasoner == nil {
		out.Reply = unavailableReply + " " + chartctl.Summarize(nil)
		return out, nil
	}

	start := time.Now()
	resp, err := o.reasoner.Chat(ctx, o.messages(req, msg, profile, tier), o.tools.Tools())
	if err != nil {
		slog.Warn("strategist reasoner failed", "error", err, "elapsed", time.Since(start))
		out.Reply = unavailableReply + " " + chartctl.Summarize(nil)
		return out, nil
	}

	var chart []chartctl.Action
	analysis := -1
	for _, call := range resp.ToolCalls {
		a := o.tools.ToolCallToAction(call, profile)
		switch {
		case a.Type == chartctl.ActionRunAnalysis:
			if analysis >= 0 {
				continue
			}
			if a.Strategy == "" {
				a.Strategy = profile
			}
			analysis = len(out.Actions)
		case a.IsChartAction():
			chart = append(chart, a)
		}
		out.Actions = append(out.Actions, a)
	}
	slog.Info("strategist tool calls mapped", "calls", len(resp.ToolCalls), "chart_actions", len(chart),
		"analysis", analysis >= 0)

	executed := o.execute(ctx, req, profile, chart, out)

	var notes []string
	if analysis >= 0 {
		a := out.Actions[analysis]
		if res, err := o.analyze(ctx, req, msg, a.Strategy, tier); err != nil {
			slog.Warn("strategist analysis failed", "error", err)
			notes = append(notes, analysisUnavailable)
		} else {
			out.Analysis = res
			executed = append(executed, a)
		}
	}
	if out.Sequence != nil && out.Sequence.Cancelled {
		notes = append(notes, sequenceCancelledNote)
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		reply = chartctl.Summarize(executed)
	}
	if len(notes) > 0 {
		reply = reply + " " + strings.Join(notes, " ")
	}
	out.Reply = reply
	return out, nil
}

// execute runs chart actions and returns those that took effect. Beyond the
// threshold the actions become a narrated sequence. Otherwise they run
// directly, in order when a timeframe or chart type change is involved.
func (o *Orchestrator) execute(ctx context.Context, req Request, profile string, chart []chartctl.Action, out *Response) []chartctl.Action {
	if len(chart) == 0 {
		return nil
	}

	if len(chart) > o.cfg.SequenceThreshold && o.engine != nil {
		res := o.engine.Run(ctx, sequence.StepsFromActions(chart), sequence.Options{
			Narrate:    req.Narrate,
			StepDelay:  o.cfg.StepDelay,
			Profile:    profile,
			BridgeWait: o.cfg.BridgeWait,
		})
		out.Sequence = &res
		skipped := make(map[int]bool, len(res.Failed)+len(res.Dropped))
		for _, f := range res.Failed {
			skipped[f.Index] = true
		}
		for _, i := range res.Dropped {
			skipped[i] = true
		}
		var done []chartctl.Action
		for i := 0; i < res.Executed && i < len(chart); i++ {
			if !skipped[i] {
				done = append(done, chart[i])
			}
		}
		return done
	}

	var batch chartctl.BatchResult
	if ordered(chart) {
		batch = o.session.ExecuteSequentially(ctx, chart)
	} else {
		batch = o.session.ExecuteAll(ctx, chart)
	}
	out.Batch = &batch
	return batch.Succeeded
}

func ordered(actions []chartctl.Action) bool {
	for _, a := range actions {
		if a.Type == chartctl.ActionSetTimeframe || a.Type == chartctl.ActionSetChartType {
			return true
		}
	}
	return false
}

func (o *Orchestrator) analyze(ctx context.Context, req Request, msg, strategy string, tier tradeplan.Complexity) (*Analysis, error) {
	if o.analyzer == nil {
		return nil, fmt.Errorf("no analyzer configured")
	}
	return o.analyzer.Analyze(ctx, AnalysisRequest{
		Symbol:     req.Symbol,
		Strategy:   strategy,
		Complexity: tier,
		Chart:      o.session.State().Snapshot(),
		Message:    msg,
	})
}

const systemPrompt = `You control a trading chart for the user. Use the tools to change the chart.
Only use values from the lists below. Only call run_analysis when the user explicitly asks for analysis or a trade plan.
Reply briefly in plain language.

%s
Symbol: %s
Trading profile: %s
Plan complexity: %s
Current chart: %s`

func (o *Orchestrator) messages(req Request, msg, profile string, tier tradeplan.Complexity) []llm.Message {
	state, _ := json.Marshal(o.session.State().Snapshot())
	symbol := req.Symbol
	if symbol == "" {
		symbol = "unknown"
	}
	msgs := make([]llm.Message, 0, len(req.History)+2)
	msgs = append(msgs, llm.SystemMessage(fmt.Sprintf(systemPrompt,
		o.tools.Vocabulary().prompt(), symbol, profile, tier, state)))
	msgs = append(msgs, req.History...)
	msgs = append(msgs, llm.UserMessage(msg))
	return msgs
}
