// Package playback drives an event sequence at whatever pace a consumer
// wants: one event at a time, in fixed-size batches, all at once, or on a
// ticker that can be paused and resumed.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lawnchairsociety/mazestep/internal/event"
)

// ErrNotStarted is returned when playback is requested before Start.
var ErrNotStarted = errors.New("playback not started")

// State is the lifecycle position of a Controller.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// Factory builds a fresh sequence. Validation errors surface here, before any
// event exists.
type Factory func() (event.Sequence, error)

// Pace controls ticker-driven playback.
type Pace struct {
	Interval time.Duration // zero plays without waiting
	PerTick  int           // events pulled per tick, at least 1
}

// Sink receives events during Play. A non-nil error stops playback.
type Sink func(event.Event) error

// Controller wraps one sequence at a time. Step, Batch, Drain and Play belong
// to a single driver goroutine; Pause, Resume and the accessors may be called
// from anywhere.
type Controller struct {
	factory Factory

	mu      sync.Mutex
	seq     event.Sequence
	state   State
	emitted int
	last    event.Event
}

// New creates an idle controller.
func New(factory Factory) *Controller {
	return &Controller{factory: factory}
}

// Start builds the sequence. Calling Start on a started controller does
// nothing.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seq != nil {
		return nil
	}
	return c.startLocked()
}

func (c *Controller) startLocked() error {
	seq, err := c.factory()
	if err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	c.seq = seq
	c.state = StateRunning
	c.emitted = 0
	c.last = nil
	return nil
}

// Reset discards the current sequence and starts a fresh one from the
// factory.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq = nil
	c.state = StateIdle
	c.emitted = 0
	c.last = nil
	return c.startLocked()
}

// Step pulls exactly one event. It works while paused. The second result is
// false when there is nothing to pull.
func (c *Controller) Step() (event.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextLocked()
}

func (c *Controller) nextLocked() (event.Event, bool) {
	if c.seq == nil || c.state == StateDone {
		return nil, false
	}
	e, ok := c.seq.Next()
	if !ok {
		c.state = StateDone
		return nil, false
	}
	c.emitted++
	c.last = e
	if e.Kind().Terminal() {
		c.state = StateDone
	}
	return e, true
}

// Batch pulls up to k events, stopping early when the sequence ends. The
// second result reports whether the sequence is complete.
func (c *Controller) Batch(k int) ([]event.Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var events []event.Event
	for i := 0; i < k; i++ {
		e, ok := c.nextLocked()
		if !ok {
			break
		}
		events = append(events, e)
	}
	return events, c.state == StateDone
}

// Drain pulls every remaining event.
func (c *Controller) Drain() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	var events []event.Event
	for {
		e, ok := c.nextLocked()
		if !ok {
			return events
		}
		events = append(events, e)
	}
}

// Pause stops ticker-driven playback. Manual stepping still works.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning {
		c.state = StatePaused
	}
}

// Resume undoes Pause.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StatePaused {
		c.state = StateRunning
	}
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done reports whether the terminal event has been pulled.
func (c *Controller) Done() bool {
	return c.State() == StateDone
}

// Emitted returns how many events have been pulled since the last start.
func (c *Controller) Emitted() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.emitted
}

// Last returns the most recently pulled event, or nil.
func (c *Controller) Last() event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// tick pulls one tick's worth of events unless paused.
func (c *Controller) tick(perTick int) ([]event.Event, State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning {
		return nil, c.state
	}
	var events []event.Event
	for i := 0; i < perTick; i++ {
		e, ok := c.nextLocked()
		if !ok {
			break
		}
		events = append(events, e)
	}
	return events, c.state
}

// Play hands events to sink on every tick until the sequence completes, ctx
// is cancelled, or sink fails. While paused, ticks pass without events.
func (c *Controller) Play(ctx context.Context, pace Pace, sink Sink) error {
	if c.State() == StateIdle {
		return ErrNotStarted
	}
	perTick := max(pace.PerTick, 1)

	var ticks <-chan time.Time
	if pace.Interval > 0 {
		ticker := time.NewTicker(pace.Interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	for {
		if ticks != nil {
			select {
			case <-ticks:
			case <-ctx.Done():
				return ctx.Err()
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		events, state := c.tick(perTick)
		for _, e := range events {
			if err := sink(e); err != nil {
				return err
			}
		}
		if state == StateDone {
			return nil
		}
		if state == StatePaused && ticks == nil {
			// nothing paces us, so wait for Resume without spinning
			select {
			case <-time.After(10 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
