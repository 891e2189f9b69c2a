package broker

import (
	"context"
	"sync"

	"github.com/fragworks/fragstats/internal/domain/event"
	"github.com/fragworks/fragstats/pkg/logger"
	"github.com/fragworks/fragstats/pkg/metrics"
)

const defaultMemoryBuffer = 100000

// MemoryBroker is a channel-backed Publisher/Consumer pair for
// single-process deployments with no brokers configured. Topic
// classification still happens so the process behaves identically to a
// kafka-backed deployment, just without the network hop.
type MemoryBroker struct {
	events chan event.Event
	log    logger.Logger

	mu     sync.RWMutex
	closed bool
}

var (
	_ Publisher = (*MemoryBroker)(nil)
	_ Consumer  = (*MemoryBroker)(nil)
)

// NewMemoryBroker creates an in-process broker.
func NewMemoryBroker(opts ...MemoryOption) *MemoryBroker {
	cfg := memoryOptions{buffer: defaultMemoryBuffer}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MemoryBroker{
		events: make(chan event.Event, cfg.buffer),
		log:    logger.Named("broker.memory"),
	}
}

// Publish hands the event to the in-process channel. A full buffer drops
// the event; the broker path is fire-and-forget by contract.
func (b *MemoryBroker) Publish(ctx context.Context, e event.Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		metrics.RecordBrokerPublishError()
		return ErrClosed
	}

	select {
	case b.events <- e:
		metrics.RecordBrokerPublished(TopicFor(e))
		return nil
	case <-ctx.Done():
		metrics.RecordBrokerPublishError()
		return ctx.Err()
	default:
		metrics.RecordBrokerPublishError()
		b.log.Warn(ctx, "memory broker full, dropping event",
			logger.String("event_id", e.EventID))
		return ErrFull
	}
}

// Run dispatches published events until the context ends or the broker
// closes. Dispatch errors are logged and the event dropped; there is no
// redelivery in-process.
func (b *MemoryBroker) Run(ctx context.Context, dispatch DispatchFunc) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-b.events:
			if !ok {
				return nil
			}
			if err := dispatch(ctx, e); err != nil {
				metrics.RecordBrokerConsumeError()
				b.log.Error(ctx, "dispatch failed",
					logger.String("event_id", e.EventID),
					logger.Error(err))
				continue
			}
			metrics.RecordBrokerConsumed(TopicFor(e))
		}
	}
}

// Close stops the broker. Pending events still drain through Run.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	close(b.events)
	return nil
}

// MemoryOption applies a configuration option to the MemoryBroker.
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	buffer int
}

// WithBuffer sets the channel buffer size.
func WithBuffer(n int) MemoryOption {
	return func(o *memoryOptions) {
		if n > 0 {
			o.buffer = n
		}
	}
}
