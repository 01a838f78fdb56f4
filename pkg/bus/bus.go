package bus

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrBusClosed is returned when publishing to a closed EventBus.
var ErrBusClosed = errors.New("event bus closed")

// Publisher accepts events from a provider session.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// EventBus is the single ordered queue feeding the session manager.
// Any number of goroutines may publish; exactly one consumes.
type EventBus struct {
	events chan Event
	done   chan struct{}
	closed atomic.Bool
}

func NewEventBus() *EventBus {
	return &EventBus{
		events: make(chan Event, 100),
		done:   make(chan struct{}),
	}
}

func (b *EventBus) Publish(ctx context.Context, ev Event) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	select {
	case b.events <- ev:
		return nil
	case <-b.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Events exposes the queue for consumers that multiplex it with timers
// in a select loop.
func (b *EventBus) Events() <-chan Event {
	return b.events
}

func (b *EventBus) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.done)
	}
}

// Stamped returns a Publisher that tags every event with generation
// before forwarding it to b.
func (b *EventBus) Stamped(generation uint64) Publisher {
	return stamped{bus: b, generation: generation}
}

type stamped struct {
	bus        *EventBus
	generation uint64
}

func (s stamped) Publish(ctx context.Context, ev Event) error {
	ev.Generation = s.generation
	return s.bus.Publish(ctx, ev)
}
