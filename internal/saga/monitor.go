package saga

import (
	"context"
	"sync"
	"time"

	"github.com/fragworks/fragstats/pkg/logger"
)

// Monitor observes saga lifecycle transitions. Implementations must
// tolerate being omitted entirely; the engine runs monitor-less.
type Monitor interface {
	OnSagaStarted(ctx context.Context, saga, eventID, correlationID string)
	OnStepExecuted(ctx context.Context, saga, step string)
	OnStepCompensated(ctx context.Context, saga, step string)
	OnSagaCompleted(ctx context.Context, res Result)
	OnSagaFailed(ctx context.Context, res Result)
}

// MonitorSnapshot is an aggregate view of saga activity for diagnostics.
type MonitorSnapshot struct {
	Started          int64         `json:"started"`
	Completed        int64         `json:"completed"`
	Failed           int64         `json:"failed"`
	StepsExecuted    int64         `json:"steps_executed"`
	StepsCompensated int64         `json:"steps_compensated"`
	TotalDuration    time.Duration `json:"total_duration"`
}

// LogMonitor aggregates execution counters and emits a structured log
// event for each lifecycle transition.
type LogMonitor struct {
	mu   sync.Mutex
	snap MonitorSnapshot

	logger logger.Logger
}

// NewLogMonitor creates a monitor logging under the given logger.
func NewLogMonitor(l logger.Logger) *LogMonitor {
	if l == nil {
		l = logger.Get().Named("saga-monitor")
	}
	return &LogMonitor{logger: l}
}

func (m *LogMonitor) OnSagaStarted(ctx context.Context, saga, eventID, correlationID string) {
	m.mu.Lock()
	m.snap.Started++
	m.mu.Unlock()

	m.logger.Debug(ctx, "saga started",
		logger.String("saga", saga),
		logger.String("event_id", eventID),
		logger.String("correlation_id", correlationID),
	)
}

func (m *LogMonitor) OnStepExecuted(ctx context.Context, saga, step string) {
	m.mu.Lock()
	m.snap.StepsExecuted++
	m.mu.Unlock()

	m.logger.Debug(ctx, "saga step executed",
		logger.String("saga", saga),
		logger.String("step", step),
	)
}

func (m *LogMonitor) OnStepCompensated(ctx context.Context, saga, step string) {
	m.mu.Lock()
	m.snap.StepsCompensated++
	m.mu.Unlock()

	m.logger.Info(ctx, "saga step compensated",
		logger.String("saga", saga),
		logger.String("step", step),
	)
}

func (m *LogMonitor) OnSagaCompleted(ctx context.Context, res Result) {
	m.mu.Lock()
	m.snap.Completed++
	m.snap.TotalDuration += res.Duration
	m.mu.Unlock()

	m.logger.Info(ctx, "saga completed",
		logger.String("saga", res.SagaName),
		logger.String("correlation_id", res.CorrelationID),
		logger.Int("completed_steps", res.CompletedSteps),
		logger.Duration("duration", res.Duration),
	)
}

func (m *LogMonitor) OnSagaFailed(ctx context.Context, res Result) {
	m.mu.Lock()
	m.snap.Failed++
	m.snap.TotalDuration += res.Duration
	m.mu.Unlock()

	m.logger.Error(ctx, "saga failed",
		logger.String("saga", res.SagaName),
		logger.String("correlation_id", res.CorrelationID),
		logger.Int("completed_steps", res.CompletedSteps),
		logger.Int("compensated_steps", res.CompensatedSteps),
		logger.Duration("duration", res.Duration),
		logger.Error(res.Err),
	)
}

// Snapshot returns a copy of the aggregate counters.
func (m *LogMonitor) Snapshot() MonitorSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}
