// Package saga provides generic ordered-step execution with
// reverse-order compensation on failure. A saga gives composite events
// best-effort consistency across independently-owned services without a
// shared transaction: prior side effects are attempted to be reversed,
// not guaranteed reversed.
package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/fragworks/fragstats/internal/domain/event"
	"github.com/fragworks/fragstats/pkg/logger"
	"github.com/fragworks/fragstats/pkg/metrics"
)

// State is the lifecycle state of a saga execution.
type State string

const (
	StatePending      State = "pending"
	StateRunning      State = "running"
	StateCompleted    State = "completed"
	StateCompensating State = "compensating"
	StateFailed       State = "failed"
)

// Step is a named unit of forward work with a compensating action.
// Compensate must be a no-op unless the step's Execute completed;
// the framework only invokes it for completed steps.
type Step[T any] interface {
	Name() string
	Execute(ctx context.Context, sc *Context[T]) error
	Compensate(ctx context.Context, sc *Context[T]) error
}

// Result is the immutable record of one saga run, produced exactly once
// and handed to the monitor.
type Result struct {
	SagaName         string
	EventID          string
	CorrelationID    string
	Success          bool
	CompletedSteps   int
	TotalSteps       int
	CompensatedSteps int
	Duration         time.Duration
	Err              error
}

// Saga executes steps in declared order and compensates completed steps
// in reverse order when a step fails.
type Saga[T any] struct {
	name    string
	steps   []Step[T]
	monitor Monitor
	logger  logger.Logger
}

// Option applies a configuration option to a Saga.
type Option[T any] func(*Saga[T])

// WithMonitor attaches a lifecycle monitor. The saga runs monitor-less
// when omitted.
func WithMonitor[T any](m Monitor) Option[T] {
	return func(s *Saga[T]) {
		s.monitor = m
	}
}

// WithLogger sets a custom logger for the saga.
func WithLogger[T any](l logger.Logger) Option[T] {
	return func(s *Saga[T]) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a saga from ordered steps. Zero steps is a valid, trivially
// successful saga.
func New[T any](name string, steps []Step[T], opts ...Option[T]) *Saga[T] {
	s := &Saga[T]{
		name:  name,
		steps: steps,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("saga")
	}

	return s
}

// Name returns the saga's name.
func (s *Saga[T]) Name() string {
	return s.name
}

// Run executes the saga against the given event. On a step failure the
// completed steps are compensated in reverse order and the original step
// error is returned; compensation failures are logged but never mask it.
func (s *Saga[T]) Run(ctx context.Context, e event.Event, data *T) (Result, error) {
	start := time.Now()
	sc := newContext(e, data)

	metrics.RecordSagaStarted(s.name)
	if s.monitor != nil {
		s.monitor.OnSagaStarted(ctx, s.name, sc.EventID, sc.CorrelationID)
	}

	var stepErr error
	var failedStep string
	failedIdx := -1
	completedCount := 0

	for i, step := range s.steps {
		name := s.stepName(step, i)
		s.logger.Debug(ctx, "executing saga step",
			logger.String("saga", s.name),
			logger.String("step", name),
			logger.String("correlation_id", sc.CorrelationID),
		)
		if err := s.execute(ctx, step, sc); err != nil {
			stepErr = err
			failedStep = name
			failedIdx = i
			break
		}
		sc.markCompleted(name)
		completedCount++
		metrics.RecordSagaStepExecuted(s.name, name)
		if s.monitor != nil {
			s.monitor.OnStepExecuted(ctx, s.name, name)
		}
	}

	compensated := 0
	if stepErr != nil {
		s.logger.Warn(ctx, "saga step failed; compensating",
			logger.String("saga", s.name),
			logger.String("step", failedStep),
			logger.String("correlation_id", sc.CorrelationID),
			logger.Error(stepErr),
		)
		compensated = s.compensateAll(ctx, failedIdx, sc)
	}

	res := Result{
		SagaName:         s.name,
		EventID:          sc.EventID,
		CorrelationID:    sc.CorrelationID,
		Success:          stepErr == nil,
		CompletedSteps:   completedCount,
		TotalSteps:       len(s.steps),
		CompensatedSteps: compensated,
		Duration:         time.Since(start),
		Err:              stepErr,
	}

	metrics.RecordSagaDuration(s.name, float64(res.Duration.Milliseconds()))
	if res.Success {
		metrics.RecordSagaCompleted(s.name)
		if s.monitor != nil {
			s.monitor.OnSagaCompleted(ctx, res)
		}
		return res, nil
	}

	metrics.RecordSagaFailed(s.name)
	if s.monitor != nil {
		s.monitor.OnSagaFailed(ctx, res)
	}
	return res, stepErr
}

// compensateAll walks the steps before the failed one in reverse order,
// reversing each whose execute completed per the context's record. Every
// completed step is given a chance to compensate regardless of sibling
// failures.
func (s *Saga[T]) compensateAll(ctx context.Context, failedIdx int, sc *Context[T]) int {
	compensated := 0
	for i := failedIdx - 1; i >= 0; i-- {
		name := s.stepName(s.steps[i], i)
		if !sc.StepCompleted(name) {
			continue
		}
		if err := s.compensate(ctx, s.steps[i], sc); err != nil {
			metrics.RecordSagaCompensationError(s.name, name)
			s.logger.Error(ctx, "saga compensation failed",
				logger.String("saga", s.name),
				logger.String("step", name),
				logger.String("correlation_id", sc.CorrelationID),
				logger.Error(err),
			)
		}
		compensated++
		metrics.RecordSagaStepCompensated(s.name, name)
		if s.monitor != nil {
			s.monitor.OnStepCompensated(ctx, s.name, name)
		}
	}
	return compensated
}

// stepName falls back to a generic positional name for unnamed steps.
func (s *Saga[T]) stepName(step Step[T], i int) string {
	if name := step.Name(); name != "" {
		return name
	}
	return fmt.Sprintf("step[%d]", i)
}

// execute runs a step's forward action, normalizing panics into errors.
func (s *Saga[T]) execute(ctx context.Context, step Step[T], sc *Context[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = normalizePanic(r)
		}
	}()
	return step.Execute(ctx, sc)
}

// compensate runs a step's reverse action, normalizing panics into errors.
func (s *Saga[T]) compensate(ctx context.Context, step Step[T], sc *Context[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = normalizePanic(r)
		}
	}()
	return step.Compensate(ctx, sc)
}

// normalizePanic turns an arbitrary panic value into an error.
func normalizePanic(r interface{}) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("%w: %w", ErrStepPanic, err)
	}
	return fmt.Errorf("%w: %v", ErrStepPanic, r)
}
