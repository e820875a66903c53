// Package overlay carries narration for running sequences to viewers and
// carries cancel/continue signals from viewers back to the sequence engine.
package overlay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const subscriberBufSize = 64

// Kind names an overlay event.
type Kind string

const (
	KindShow     Kind = "show"
	KindHide     Kind = "hide"
	KindCancel   Kind = "cancel"
	KindContinue Kind = "continue"
)

// Event is one overlay notification fanned out to subscribers.
type Event struct {
	Kind               Kind      `json:"kind"`
	Text               string    `json:"text,omitempty"`
	WaitingForContinue bool      `json:"waiting_for_continue,omitempty"`
	At                 time.Time `json:"at"`
}

// Bus is the narration overlay. Publishing never blocks; slow subscribers
// miss events.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int64]chan Event
	nextID      atomic.Int64

	current *Event

	sigMu     sync.Mutex
	cancelFns map[int64]func()
	waiters   []*waiter
	nextSigID int64
}

type waiter struct {
	id   int64
	done chan struct{}
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[int64]chan Event),
		cancelFns:   make(map[int64]func()),
	}
}

// Subscribe registers an event consumer.
func (b *Bus) Subscribe() (int64, <-chan Event) {
	id := b.nextID.Add(1)
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

// Unsubscribe removes a consumer and closes its channel.
func (b *Bus) Unsubscribe(id int64) {
	b.mu.Lock()
	ch, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(ch)
	}
	b.mu.Unlock()
}

// ClientCount returns the number of active subscribers.
func (b *Bus) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// ShowMessage displays narration text.
func (b *Bus) ShowMessage(text string, waitingForContinue bool) {
	evt := Event{Kind: KindShow, Text: text, WaitingForContinue: waitingForContinue, At: time.Now()}
	b.mu.Lock()
	b.current = &evt
	b.mu.Unlock()
	b.publish(evt)
}

// HideMessage clears the narration overlay.
func (b *Bus) HideMessage() {
	b.mu.Lock()
	b.current = nil
	b.mu.Unlock()
	b.publish(Event{Kind: KindHide, At: time.Now()})
}

// Current returns the message on screen, if any.
func (b *Bus) Current() (Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.current == nil {
		return Event{}, false
	}
	return *b.current, true
}

func (b *Bus) publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// OnCancel registers fn to run on every cancel signal until the returned
// function is called.
func (b *Bus) OnCancel(fn func()) (unsubscribe func()) {
	b.sigMu.Lock()
	b.nextSigID++
	id := b.nextSigID
	b.cancelFns[id] = fn
	b.sigMu.Unlock()

	return func() {
		b.sigMu.Lock()
		delete(b.cancelFns, id)
		b.sigMu.Unlock()
	}
}

// Cancel signals every cancel listener. It returns the number notified.
func (b *Bus) Cancel() int {
	b.sigMu.Lock()
	fns := make([]func(), 0, len(b.cancelFns))
	for _, fn := range b.cancelFns {
		fns = append(fns, fn)
	}
	b.sigMu.Unlock()

	for _, fn := range fns {
		fn()
	}
	b.publish(Event{Kind: KindCancel, At: time.Now()})
	return len(fns)
}

// WaitContinue blocks until a continue signal is delivered to this caller,
// ctx is done, or stop is closed. Waiters are served first come first served.
func (b *Bus) WaitContinue(ctx context.Context, stop <-chan struct{}) error {
	w := b.enqueue()
	defer b.dequeue(w.id)

	select {
	case <-w.done:
		return nil
	case <-stop:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Continue wakes the oldest waiter. It reports whether one was waiting;
// a continue with no waiter is discarded.
func (b *Bus) Continue() bool {
	b.sigMu.Lock()
	if len(b.waiters) == 0 {
		b.sigMu.Unlock()
		return false
	}
	w := b.waiters[0]
	b.waiters = b.waiters[1:]
	close(w.done)
	b.sigMu.Unlock()

	b.publish(Event{Kind: KindContinue, At: time.Now()})
	return true
}

// Listeners reports the number of registered cancel listeners and pending
// continue waiters.
func (b *Bus) Listeners() (cancel, continueWaiters int) {
	b.sigMu.Lock()
	defer b.sigMu.Unlock()
	return len(b.cancelFns), len(b.waiters)
}

func (b *Bus) enqueue() *waiter {
	b.sigMu.Lock()
	defer b.sigMu.Unlock()
	b.nextSigID++
	w := &waiter{id: b.nextSigID, done: make(chan struct{})}
	b.waiters = append(b.waiters, w)
	return w
}

func (b *Bus) dequeue(id int64) {
	b.sigMu.Lock()
	defer b.sigMu.Unlock()
	for i, w := range b.waiters {
		if w.id == id {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			return
		}
	}
}
