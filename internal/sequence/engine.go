package sequence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/tv_strategist/internal/chartctl"
	"github.com/dgnsrekt/tv_strategist/internal/indicators"
	"github.com/dgnsrekt/tv_strategist/internal/overlay"
)

const (
	defaultBridgeWait = 3 * time.Second
	bridgePoll        = 100 * time.Millisecond
)

// Screenshotter captures the chart and returns an opaque image reference.
type Screenshotter interface {
	CaptureChartScreenshot(ctx context.Context) (string, error)
}

// Options tune one run. The func variants take precedence over the static
// values when set.
type Options struct {
	Narrate             bool
	StepDelay           time.Duration
	StepDelayFunc       func(i int, s Step) time.Duration
	RequireContinue     bool
	RequireContinueFunc func(i int, s Step) bool
	OnStep              func(i int, s Step)
	Profile             string
	BridgeWait          time.Duration
}

func (o Options) delayFor(i int, s Step) time.Duration {
	if o.StepDelayFunc != nil {
		return o.StepDelayFunc(i, s)
	}
	if s.Kind != KindDelay && s.DelayMS > 0 {
		return time.Duration(s.DelayMS) * time.Millisecond
	}
	return o.StepDelay
}

func (o Options) continueFor(i int, s Step) bool {
	if o.RequireContinueFunc != nil {
		return o.RequireContinueFunc(i, s)
	}
	return o.RequireContinue
}

// Result reports how a run ended.
type Result struct {
	RunID       string                   `json:"run_id"`
	OK          bool                     `json:"ok"`
	Cancelled   bool                     `json:"cancelled"`
	Executed    int                      `json:"executed"`
	Screenshots []string                 `json:"screenshots"`
	Failed      []chartctl.ActionFailure `json:"failed,omitempty"`
	// Dropped lists the steps whose actions were discarded for lack of a
	// chart bridge.
	Dropped []int `json:"dropped,omitempty"`
}

// Engine runs step sequences against a session.
type Engine struct {
	session  *chartctl.Session
	bus      *overlay.Bus
	registry *indicators.Registry
	shots    Screenshotter
}

// NewEngine wires an engine. shots may be nil; screenshot steps are then
// skipped with a warning.
func NewEngine(session *chartctl.Session, bus *overlay.Bus, registry *indicators.Registry, shots Screenshotter) *Engine {
	return &Engine{session: session, bus: bus, registry: registry, shots: shots}
}

// Run executes steps in order. Cancellation, from the overlay bus or ctx, is
// checked between steps and while waiting; a step already dispatched runs to
// completion. Run never fails: a cancelled run reports Cancelled.
func (e *Engine) Run(ctx context.Context, steps []Step, opts Options) Result {
	res := Result{RunID: uuid.NewString(), Screenshots: []string{}}
	log := slog.With("run_id", res.RunID)

	release, err := e.session.AcquireRun(ctx)
	if err != nil {
		log.Warn("sequence not started", "error", err)
		res.Cancelled = true
		return res
	}

	stop := make(chan struct{})
	var once sync.Once
	unsubscribe := e.bus.OnCancel(func() { once.Do(func() { close(stop) }) })
	narrated := false
	defer func() {
		unsubscribe()
		if narrated {
			e.bus.HideMessage()
		}
		release()
		log.Info("sequence finished", "ok", res.OK, "cancelled", res.Cancelled,
			"executed", res.Executed, "screenshots", len(res.Screenshots))
	}()

	cancelled := func() bool {
		select {
		case <-stop:
			return true
		case <-ctx.Done():
			return true
		default:
			return false
		}
	}

	wait := opts.BridgeWait
	if wait <= 0 {
		wait = defaultBridgeWait
	}
	if !e.session.WaitForBridge(ctx, wait, bridgePoll) {
		log.Warn("chart bridge not ready, actions will be dropped", "waited", wait)
	}

	log.Info("sequence started", "steps", len(steps))
	for i, step := range steps {
		if cancelled() {
			res.Cancelled = true
			return res
		}

		gate := opts.continueFor(i, step)
		if opts.Narrate && step.Message != "" {
			e.bus.ShowMessage(step.Message, gate)
			narrated = true
		}
		if opts.OnStep != nil {
			opts.OnStep(i, step)
		}

		if d := opts.delayFor(i, step); d > 0 && !sleep(ctx, d, stop) {
			res.Cancelled = true
			return res
		}
		if cancelled() {
			res.Cancelled = true
			return res
		}

		if gate {
			if err := e.bus.WaitContinue(ctx, stop); err != nil {
				res.Cancelled = true
				return res
			}
			if cancelled() {
				res.Cancelled = true
				return res
			}
		}

		if !e.dispatch(ctx, log, i, step, opts.Profile, stop, &res) {
			res.Cancelled = true
			return res
		}
		res.Executed++
	}

	res.OK = true
	return res
}

// dispatch runs one step. It reports false only when a delay step was
// interrupted by cancellation.
func (e *Engine) dispatch(ctx context.Context, log *slog.Logger, i int, step Step, profile string, stop <-chan struct{}, res *Result) bool {
	switch step.Kind {
	case KindScreenshot:
		if e.shots == nil {
			log.Warn("screenshot step skipped, no screenshot service", "step", i)
			return true
		}
		ref, err := e.shots.CaptureChartScreenshot(ctx)
		if err != nil {
			log.Warn("screenshot failed", "step", i, "error", err)
			return true
		}
		res.Screenshots = append(res.Screenshots, ref)
		return true
	case KindDelay:
		if step.DelayMS > 0 {
			return sleep(ctx, time.Duration(step.DelayMS)*time.Millisecond, stop)
		}
		return true
	case KindLayout, KindLine, KindLabel:
		log.Debug("step kind not supported yet, skipped", "step", i, "kind", step.Kind)
		return true
	}

	actions := step.actions(e.registry, profile)
	if len(actions) == 0 {
		log.Warn("unknown step kind skipped", "step", i, "kind", step.Kind)
		return true
	}
	batch := e.session.ExecuteSequentially(ctx, actions)
	for _, f := range batch.Failed {
		f.Index = i
		res.Failed = append(res.Failed, f)
	}
	if batch.Dropped > 0 {
		res.Dropped = append(res.Dropped, i)
	}
	return true
}

// sleep waits d and reports false if stop or ctx fired first.
func sleep(ctx context.Context, d time.Duration, stop <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-stop:
		return false
	case <-ctx.Done():
		return false
	}
}
