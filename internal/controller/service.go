// Package controller is the facade the HTTP and MCP surfaces call. It owns
// request validation and maps domain failures onto coded errors.
package controller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/tv_strategist/internal/cdpcontrol"
	"github.com/dgnsrekt/tv_strategist/internal/chartctl"
	"github.com/dgnsrekt/tv_strategist/internal/indicators"
	"github.com/dgnsrekt/tv_strategist/internal/overlay"
	"github.com/dgnsrekt/tv_strategist/internal/sequence"
	"github.com/dgnsrekt/tv_strategist/internal/snapshot"
	"github.com/dgnsrekt/tv_strategist/internal/strategist"
	"github.com/dgnsrekt/tv_strategist/internal/tradeplan"
)

// Deps are the collaborators a Service routes to. Snapshots and Strategist
// may be nil; their operations then report API_UNAVAILABLE.
type Deps struct {
	Session    *chartctl.Session
	Engine     *sequence.Engine
	Bus        *overlay.Bus
	Registry   *indicators.Registry
	Tools      *strategist.Toolset
	Strategist *strategist.Orchestrator
	Snapshots  *snapshot.Store
	TradePlan  tradeplan.Config
	StepDelay  time.Duration
	BridgeWait time.Duration
	Profile    string
}

// Service wraps chart control, sequencing and trade-plan operations.
type Service struct {
	d Deps
}

func NewService(d Deps) *Service {
	if d.Registry == nil {
		d.Registry = indicators.DefaultRegistry()
	}
	if d.Tools == nil {
		d.Tools = strategist.NewToolset(d.Registry)
	}
	if d.Profile == "" {
		d.Profile = "day_trade"
	}
	return &Service{d: d}
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return &cdpcontrol.CodedError{Code: cdpcontrol.CodeValidation, Message: fieldName + " is required"}
	}
	return nil
}

func validation(format string, args ...any) error {
	return &cdpcontrol.CodedError{Code: cdpcontrol.CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func unavailable(what string) error {
	return &cdpcontrol.CodedError{Code: cdpcontrol.CodeAPIUnavailable, Message: what + " is not configured"}
}

// ChartState is the chart snapshot plus whether a chart view is attached.
type ChartState struct {
	Chart            chartctl.Snapshot `json:"chart"`
	BridgeRegistered bool              `json:"bridge_registered"`
	RunInProgress    bool              `json:"run_in_progress"`
}

func (s *Service) State() ChartState {
	return ChartState{
		Chart:            s.d.Session.State().Snapshot(),
		BridgeRegistered: s.d.Session.Bridge() != nil,
		RunInProgress:    s.d.Session.Running(),
	}
}

// ActionResult reports a single action. Dropped is set when no chart view
// was attached and the action was discarded.
type ActionResult struct {
	Action  chartctl.Action `json:"action"`
	Dropped bool            `json:"dropped"`
}

func (s *Service) ExecuteAction(ctx context.Context, a chartctl.Action) (ActionResult, error) {
	if err := a.Validate(); err != nil {
		return ActionResult{}, validation("%v", err)
	}
	dropped := a.IsChartAction() && s.d.Session.Bridge() == nil
	if err := s.d.Session.Execute(ctx, a); err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Action: a, Dropped: dropped}, nil
}

// ExecuteBatch runs actions sequentially when ordered is set, concurrently
// otherwise. Individual failures are reported in the result, not as an error.
func (s *Service) ExecuteBatch(ctx context.Context, actions []chartctl.Action, ordered bool) (chartctl.BatchResult, error) {
	if len(actions) == 0 {
		return chartctl.BatchResult{}, validation("actions must not be empty")
	}
	for i, a := range actions {
		if err := a.Validate(); err != nil {
			return chartctl.BatchResult{}, validation("actions[%d]: %v", i, err)
		}
	}
	if ordered {
		return s.d.Session.ExecuteSequentially(ctx, actions), nil
	}
	return s.d.Session.ExecuteAll(ctx, actions), nil
}

// SequenceRequest describes a scripted run.
type SequenceRequest struct {
	Steps           []sequence.Step
	Narrate         bool
	StepDelayMS     *int
	RequireContinue bool
	Profile         string
}

func (s *Service) RunSequence(ctx context.Context, req SequenceRequest) (sequence.Result, error) {
	if s.d.Engine == nil {
		return sequence.Result{}, unavailable("sequence engine")
	}
	if len(req.Steps) == 0 {
		return sequence.Result{}, validation("steps must not be empty")
	}
	for i, step := range req.Steps {
		if err := step.Validate(); err != nil {
			return sequence.Result{}, validation("steps[%d]: %v", i, err)
		}
	}
	profile := req.Profile
	if profile == "" || !s.d.Registry.HasProfile(profile) {
		profile = s.d.Profile
	}
	delay := s.d.StepDelay
	if req.StepDelayMS != nil {
		if *req.StepDelayMS < 0 {
			return sequence.Result{}, validation("step_delay_ms must not be negative")
		}
		delay = time.Duration(*req.StepDelayMS) * time.Millisecond
	}
	return s.d.Engine.Run(ctx, req.Steps, sequence.Options{
		Narrate:         req.Narrate,
		StepDelay:       delay,
		RequireContinue: req.RequireContinue,
		Profile:         profile,
		BridgeWait:      s.d.BridgeWait,
	}), nil
}

// Continue releases the oldest waiting step gate.
func (s *Service) Continue() bool { return s.d.Bus.Continue() }

// Cancel signals every running sequence and returns the number notified.
func (s *Service) Cancel() int { return s.d.Bus.Cancel() }

func (s *Service) Bus() *overlay.Bus { return s.d.Bus }

func (s *Service) Indicators() []indicators.Definition {
	names := s.d.Registry.Names()
	out := make([]indicators.Definition, 0, len(names))
	for _, n := range names {
		if def, ok := s.d.Registry.Lookup(n); ok {
			out = append(out, def)
		}
	}
	return out
}

func (s *Service) NormalizeIndicator(name string, opts *indicators.Options, profile string) (indicators.Options, error) {
	if err := s.requireNonEmpty(name, "name"); err != nil {
		return indicators.Options{}, err
	}
	if profile == "" {
		profile = s.d.Profile
	}
	return s.d.Registry.Normalize(name, opts, profile), nil
}

func (s *Service) Vocabulary() strategist.Vocabulary { return s.d.Tools.Vocabulary() }

func (s *Service) ConstrainPlan(plan tradeplan.Plan, tier tradeplan.Complexity) tradeplan.Plan {
	return tradeplan.Apply(plan, tier, s.d.TradePlan)
}

func (s *Service) DerivePlan(side tradeplan.Side, entry, stop float64, tier tradeplan.Complexity) (tradeplan.Plan, error) {
	if entry <= 0 {
		return tradeplan.Plan{}, validation("entry must be positive")
	}
	if stop < 0 {
		return tradeplan.Plan{}, validation("stop must not be negative")
	}
	if stop == entry {
		return tradeplan.Plan{}, validation("stop must differ from entry")
	}
	return tradeplan.Derive(side, entry, stop, tier, s.d.TradePlan), nil
}

func (s *Service) Chat(ctx context.Context, req strategist.Request) (*strategist.Response, error) {
	if s.d.Strategist == nil {
		return nil, unavailable("strategist")
	}
	if err := s.requireNonEmpty(req.Message, "message"); err != nil {
		return nil, err
	}
	return s.d.Strategist.Handle(ctx, req)
}

func (s *Service) ListSnapshots() ([]snapshot.Meta, error) {
	if s.d.Snapshots == nil {
		return nil, unavailable("snapshot store")
	}
	return s.d.Snapshots.List()
}

func (s *Service) GetSnapshot(id string) (snapshot.Meta, error) {
	if s.d.Snapshots == nil {
		return snapshot.Meta{}, unavailable("snapshot store")
	}
	meta, err := s.d.Snapshots.Get(strings.TrimSpace(id))
	return meta, snapshotErr(err)
}

func (s *Service) SnapshotImage(id string) ([]byte, string, error) {
	if s.d.Snapshots == nil {
		return nil, "", unavailable("snapshot store")
	}
	data, format, err := s.d.Snapshots.ReadImage(strings.TrimSpace(id))
	return data, format, snapshotErr(err)
}

func snapshotErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, snapshot.ErrNotFound):
		return &cdpcontrol.CodedError{Code: cdpcontrol.CodeSnapshotNotFound, Message: err.Error(), Cause: err}
	case strings.Contains(err.Error(), "invalid snapshot id"):
		return &cdpcontrol.CodedError{Code: cdpcontrol.CodeValidation, Message: err.Error(), Cause: err}
	}
	return err
}
