package strategist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgnsrekt/tv_strategist/internal/chartctl"
	"github.com/dgnsrekt/tv_strategist/internal/llm"
	"github.com/dgnsrekt/tv_strategist/internal/tradeplan"
)

var ErrNoProposal = errors.New("strategist: model returned no usable price levels")

// AnalysisRequest is the input to an Analyzer.
type AnalysisRequest struct {
	Symbol     string
	Strategy   string
	Complexity tradeplan.Complexity
	Chart      chartctl.Snapshot
	Message    string
}

// Analysis is the result of an explicit analysis request.
type Analysis struct {
	Symbol     string               `json:"symbol,omitempty"`
	Strategy   string               `json:"strategy,omitempty"`
	Complexity tradeplan.Complexity `json:"complexity"`
	Summary    string               `json:"summary,omitempty"`
	Plan       tradeplan.Plan       `json:"plan"`
}

// Analyzer produces a trade plan on demand.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalysisRequest) (*Analysis, error)
}

// AnalyzerFunc adapts a function to Analyzer.
type AnalyzerFunc func(ctx context.Context, req AnalysisRequest) (*Analysis, error)

func (f AnalyzerFunc) Analyze(ctx context.Context, req AnalysisRequest) (*Analysis, error) {
	return f(ctx, req)
}

// proposal is the JSON shape the model is asked to return.
type proposal struct {
	Side           string    `json:"side"`
	Entry          float64   `json:"entry"`
	Stop           float64   `json:"stop"`
	Targets        []float64 `json:"targets"`
	LateEntry      *float64  `json:"late_entry"`
	LateExit       *float64  `json:"late_exit"`
	ReferencePrice float64   `json:"reference_price"`
	Summary        string    `json:"summary"`
}

// ModelAnalyzer asks the reasoner for raw levels and shapes them with the
// complexity engine.
type ModelAnalyzer struct {
	reasoner llm.Reasoner
	cfg      tradeplan.Config
}

func NewModelAnalyzer(reasoner llm.Reasoner, cfg tradeplan.Config) *ModelAnalyzer {
	return &ModelAnalyzer{reasoner: reasoner, cfg: cfg}
}

const analysisPrompt = `You are a trading assistant. Propose one trade for the symbol using the %s style.
Reply with a single JSON object and nothing else:
{"side":"long|short","entry":number,"stop":number,"targets":[number],"late_entry":number|null,"late_exit":number|null,"reference_price":number,"summary":"one or two sentences"}
The plan will be shaped to the %s tier: %s`

func (m *ModelAnalyzer) Analyze(ctx context.Context, req AnalysisRequest) (*Analysis, error) {
	tier := tradeplan.ParseComplexity(string(req.Complexity))
	strategy := req.Strategy
	if strategy == "" {
		strategy = "day_trade"
	}
	var tierDesc string
	for _, t := range tradeplan.Tiers() {
		if t.Name == tier {
			tierDesc = t.Description
		}
	}

	chart, _ := json.Marshal(req.Chart)
	user := fmt.Sprintf("Symbol: %s\nChart: %s\nRequest: %s", req.Symbol, chart, req.Message)
	resp, err := m.reasoner.Chat(ctx, []llm.Message{
		llm.SystemMessage(fmt.Sprintf(analysisPrompt, strings.ReplaceAll(strategy, "_", " "), tier, tierDesc)),
		llm.UserMessage(user),
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("analysis request: %w", err)
	}

	p, err := parseProposal(resp.Content)
	if err != nil {
		return nil, err
	}
	return &Analysis{
		Symbol:     req.Symbol,
		Strategy:   strategy,
		Complexity: tier,
		Summary:    strings.TrimSpace(p.Summary),
		Plan:       p.plan(tier, m.cfg),
	}, nil
}

// plan builds the constrained plan. With only an entry and a stop the plan
// is derived so advanced tiers get their breakout entry and extended stop.
func (p proposal) plan(tier tradeplan.Complexity, cfg tradeplan.Config) tradeplan.Plan {
	side := tradeplan.Side(strings.ToLower(strings.TrimSpace(p.Side)))
	if len(p.Targets) == 0 && p.Entry > 0 && p.LateEntry == nil && p.LateExit == nil {
		return tradeplan.Derive(side, p.Entry, p.Stop, tier, cfg)
	}
	raw := tradeplan.Plan{
		Side:           side,
		Targets:        p.Targets,
		LateEntry:      p.LateEntry,
		LateExit:       p.LateExit,
		ReferencePrice: p.ReferencePrice,
	}
	if p.Entry > 0 {
		raw.Entries = []float64{p.Entry}
	}
	if p.Stop > 0 {
		raw.Exits = []float64{p.Stop}
	}
	return tradeplan.Apply(raw, tier, cfg)
}

// parseProposal extracts the first JSON object from text, tolerating code
// fences and surrounding prose.
func parseProposal(text string) (proposal, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return proposal{}, ErrNoProposal
	}
	var p proposal
	if err := json.Unmarshal([]byte(text[start:end+1]), &p); err != nil {
		return proposal{}, fmt.Errorf("%w: %v", ErrNoProposal, err)
	}
	if p.Entry <= 0 && p.ReferencePrice <= 0 {
		return proposal{}, ErrNoProposal
	}
	return p, nil
}
