package saga

import (
	"github.com/google/uuid"

	"github.com/fragworks/fragstats/internal/domain/event"
)

// Context carries one saga execution's identity, the immutable source
// event, and a typed accumulator passed forward through steps and
// backward into compensation. The source event is never mutated; only
// Data accumulates state.
type Context[T any] struct {
	EventID       string
	CorrelationID string
	Event         event.Event
	Data          *T

	completed map[string]bool
}

// newContext builds the per-execution context, reusing the event's ids
// when present and generating them otherwise.
func newContext[T any](e event.Event, data *T) *Context[T] {
	eventID := e.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	correlationID := e.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	if data == nil {
		data = new(T)
	}
	return &Context[T]{
		EventID:       eventID,
		CorrelationID: correlationID,
		Event:         e,
		Data:          data,
		completed:     make(map[string]bool),
	}
}

func (c *Context[T]) markCompleted(step string) {
	c.completed[step] = true
}

// StepCompleted reports whether the named step's execute finished.
// Compensation is for completed work only; the compensation sweep checks
// this before reversing a step, and compensations may consult it to
// learn whether sibling work happened.
func (c *Context[T]) StepCompleted(step string) bool {
	return c.completed[step]
}
