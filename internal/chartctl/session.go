package chartctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrRunInProgress is returned by TryAcquireRun when a sequence already
// holds the session.
var ErrRunInProgress = errors.New("chartctl: a sequence is already running")

// Bridge performs actions against a live chart view.
type Bridge interface {
	Perform(ctx context.Context, action Action) error
}

// BridgeFunc adapts a function to Bridge.
type BridgeFunc func(ctx context.Context, action Action) error

func (f BridgeFunc) Perform(ctx context.Context, action Action) error { return f(ctx, action) }

// ActionFailure records one action that the bridge rejected.
type ActionFailure struct {
	Index  int    `json:"index"`
	Action Action `json:"action"`
	Error  string `json:"error"`
}

// BatchResult summarizes a batch. Dropped counts actions discarded because
// no bridge was registered.
type BatchResult struct {
	Succeeded []Action        `json:"succeeded"`
	Failed    []ActionFailure `json:"failed"`
	Dropped   int             `json:"dropped"`
}

// Session owns the registered chart bridge and the chart state for one
// chart surface. A nil bridge means actions are logged and dropped.
type Session struct {
	mu     sync.RWMutex
	bridge Bridge
	state  *State
	run    chan struct{}
}

// NewSession returns a session with no bridge registered.
func NewSession() *Session {
	return &Session{
		state: NewState(),
		run:   make(chan struct{}, 1),
	}
}

// Register installs b as the chart bridge, replacing any previous one.
func (s *Session) Register(b Bridge) {
	s.mu.Lock()
	replaced := s.bridge != nil
	s.bridge = b
	s.mu.Unlock()
	slog.Debug("chart bridge registered", "replaced", replaced)
}

// Unregister clears the bridge.
func (s *Session) Unregister() {
	s.mu.Lock()
	s.bridge = nil
	s.mu.Unlock()
	slog.Debug("chart bridge unregistered")
}

// Bridge returns the registered bridge or nil.
func (s *Session) Bridge() Bridge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bridge
}

// State returns the chart state tracked by this session.
func (s *Session) State() *State { return s.state }

// errDropped marks an action discarded for lack of a bridge.
var errDropped = errors.New("no chart bridge registered")

// Execute performs a single action. Without a registered bridge the action
// is logged and dropped and Execute returns nil.
func (s *Session) Execute(ctx context.Context, a Action) error {
	err := s.perform(ctx, a)
	if errors.Is(err, errDropped) {
		return nil
	}
	return err
}

func (s *Session) perform(ctx context.Context, a Action) error {
	b := s.Bridge()
	if b == nil {
		slog.Warn("chart action dropped", "type", a.Type, "reason", errDropped.Error())
		return errDropped
	}
	if err := b.Perform(ctx, a); err != nil {
		return fmt.Errorf("perform %s: %w", a.Type, err)
	}
	s.state.Apply(a)
	return nil
}

// ExecuteAll performs actions concurrently. Every action is attempted; a
// failure is logged and recorded without affecting its siblings.
func (s *Session) ExecuteAll(ctx context.Context, actions []Action) BatchResult {
	errs := make([]error, len(actions))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range actions {
		g.Go(func() error {
			errs[i] = s.perform(gctx, a)
			return nil
		})
	}
	_ = g.Wait()

	return s.collect(actions, errs)
}

// ExecuteSequentially performs actions in order, awaiting each before the
// next. Failures are recorded and later actions still run. Once ctx is done
// the remaining actions are recorded as failed.
func (s *Session) ExecuteSequentially(ctx context.Context, actions []Action) BatchResult {
	errs := make([]error, len(actions))
	for i, a := range actions {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		errs[i] = s.perform(ctx, a)
	}
	return s.collect(actions, errs)
}

func (s *Session) collect(actions []Action, errs []error) BatchResult {
	res := BatchResult{Succeeded: []Action{}, Failed: []ActionFailure{}}
	for i, err := range errs {
		switch {
		case err == nil:
			res.Succeeded = append(res.Succeeded, actions[i])
		case errors.Is(err, errDropped):
			res.Dropped++
		default:
			slog.Warn("chart action failed", "index", i, "type", actions[i].Type, "error", err)
			res.Failed = append(res.Failed, ActionFailure{Index: i, Action: actions[i], Error: err.Error()})
		}
	}
	return res
}

// WaitForBridge polls until a bridge is registered, timeout elapses, or ctx
// is done. It reports whether a bridge is available.
func (s *Session) WaitForBridge(ctx context.Context, timeout, poll time.Duration) bool {
	if s.Bridge() != nil {
		return true
	}
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return s.Bridge() != nil
		case <-ticker.C:
			if s.Bridge() != nil {
				return true
			}
		}
	}
}

// AcquireRun claims the session's single sequence slot, blocking until it
// is free or ctx is done. Call release exactly once.
func (s *Session) AcquireRun(ctx context.Context) (release func(), err error) {
	select {
	case s.run <- struct{}{}:
		return s.releaseRun(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquireRun claims the sequence slot without waiting.
func (s *Session) TryAcquireRun() (release func(), err error) {
	select {
	case s.run <- struct{}{}:
		return s.releaseRun(), nil
	default:
		return nil, ErrRunInProgress
	}
}

func (s *Session) releaseRun() func() {
	var once sync.Once
	return func() { once.Do(func() { <-s.run }) }
}

// Running reports whether a sequence currently holds the run slot.
func (s *Session) Running() bool { return len(s.run) > 0 }
