// Package dispatch provides the in-process event bus and the module
// registry that wires handlers to event types.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fragworks/fragstats/internal/domain/event"
	"github.com/fragworks/fragstats/pkg/logger"
	"github.com/fragworks/fragstats/pkg/metrics"
)

// HandlerFunc processes one event. Returned errors are captured at the
// dispatch boundary and never propagate to the emitter.
type HandlerFunc func(ctx context.Context, e event.Event) error

type subscription struct {
	id   int
	name string
	fn   HandlerFunc
}

// Bus is a synchronous fan-out publish/subscribe primitive. Emit returns
// only after every subscribed handler has run or failed; a failing
// handler cannot prevent the remaining handlers from running.
type Bus struct {
	mu     sync.RWMutex
	subs   map[event.Type][]subscription
	nextID int
	logger logger.Logger
}

// BusOption applies a configuration option to the Bus.
type BusOption func(*Bus)

// WithBusLogger sets a custom logger for the bus.
func WithBusLogger(l logger.Logger) BusOption {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBus creates an event bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		subs: make(map[event.Type][]subscription),
	}

	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = logger.Get().Named("bus")
	}

	return b
}

// Subscribe registers a named handler for an event type and returns an
// unsubscribe func. Handlers run in subscription order.
func (b *Bus) Subscribe(typ event.Type, name string, fn HandlerFunc) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[typ] = append(b.subs[typ], subscription{id: id, name: name, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[typ]
		for i, s := range list {
			if s.id == id {
				b.subs[typ] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers the event to every handler subscribed to its type,
// synchronously with respect to the caller.
func (b *Bus) Emit(ctx context.Context, e event.Event) {
	start := time.Now()
	defer func() {
		metrics.RecordBusDispatchLatency(float64(time.Since(start).Milliseconds()))
	}()

	b.mu.RLock()
	list := make([]subscription, len(b.subs[e.Type]))
	copy(list, b.subs[e.Type])
	b.mu.RUnlock()

	metrics.RecordBusEmit(string(e.Type))
	for _, s := range list {
		if err := b.invoke(ctx, s, e); err != nil {
			metrics.RecordBusHandlerError(s.name)
			b.logger.Error(ctx, "event handler failed",
				logger.String("handler", s.name),
				logger.String("event_type", string(e.Type)),
				logger.String("event_id", e.EventID),
				logger.Error(err),
			)
		}
	}
}

// invoke runs one handler, normalizing panics into errors.
func (b *Bus) invoke(ctx context.Context, s subscription, e event.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %s panicked: %v", s.name, r)
		}
	}()
	return s.fn(ctx, e)
}
