// Package metrics provides Prometheus metrics for the fragstats engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Ingest metrics
	eventsIngested  *prometheus.CounterVec
	eventsDuplicate prometheus.Counter
	eventsInvalid   prometheus.Counter

	// Bus metrics
	busEmits           *prometheus.CounterVec
	busHandlerErrors   *prometheus.CounterVec
	busDispatchLatency prometheus.Histogram

	// Saga metrics
	sagaStarted            *prometheus.CounterVec
	sagaCompleted          *prometheus.CounterVec
	sagaFailed             *prometheus.CounterVec
	sagaStepsExecuted      *prometheus.CounterVec
	sagaStepsCompensated   *prometheus.CounterVec
	sagaCompensationErrors *prometheus.CounterVec
	sagaDuration           *prometheus.HistogramVec

	// Rating engine metrics
	ratingAdjustments    prometheus.Counter
	ratingClamped        prometheus.Counter
	ratingCacheRefreshes prometheus.Counter

	// Server state metrics
	serverStates        prometheus.Gauge
	stateChanges        *prometheus.CounterVec
	stateListenerErrors prometheus.Counter
	statesCleaned       prometheus.Counter

	// Broker metrics
	brokerPublished     *prometheus.CounterVec
	brokerPublishErrors prometheus.Counter
	brokerConsumed      *prometheus.CounterVec
	brokerConsumeErrors prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorsByComponent *prometheus.CounterVec

	// System metrics
	systemMemoryUsage prometheus.Gauge
	systemGoroutines  prometheus.Gauge
	systemGCPause     prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "fragstats",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // metrics initialization is inherently long
	auto := promauto.With(m.registry)

	m.eventsIngested = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_ingested_total",
			Help:      "Total number of events accepted for processing, by event type",
		},
		[]string{"event_type"},
	)

	m.eventsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_duplicate_total",
		Help:      "Total number of duplicate events rejected by the idempotency cache",
	})

	m.eventsInvalid = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_invalid_total",
		Help:      "Total number of events rejected by validation",
	})

	m.busEmits = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "bus_emits_total",
			Help:      "Total number of events emitted on the in-process bus, by event type",
		},
		[]string{"event_type"},
	)

	m.busHandlerErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "bus_handler_errors_total",
			Help:      "Total number of handler failures isolated at the dispatch boundary",
		},
		[]string{"handler"},
	)

	m.busDispatchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "bus_dispatch_latency_milliseconds",
		Help:      "Histogram of full fan-out latency per emit in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.sagaStarted = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "saga_started_total",
			Help:      "Total number of saga executions started, by saga name",
		},
		[]string{"saga"},
	)

	m.sagaCompleted = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "saga_completed_total",
			Help:      "Total number of saga executions that completed successfully",
		},
		[]string{"saga"},
	)

	m.sagaFailed = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "saga_failed_total",
			Help:      "Total number of saga executions that failed and compensated",
		},
		[]string{"saga"},
	)

	m.sagaStepsExecuted = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "saga_steps_executed_total",
			Help:      "Total number of saga steps executed successfully",
		},
		[]string{"saga", "step"},
	)

	m.sagaStepsCompensated = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "saga_steps_compensated_total",
			Help:      "Total number of saga steps compensated after a failure",
		},
		[]string{"saga", "step"},
	)

	m.sagaCompensationErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "saga_compensation_errors_total",
			Help:      "Total number of compensation failures (logged, never fatal)",
		},
		[]string{"saga", "step"},
	)

	m.sagaDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "saga_duration_milliseconds",
			Help:      "Saga execution duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"saga"},
	)

	m.ratingAdjustments = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rating_adjustments_total",
		Help:      "Total number of skill rating adjustments computed",
	})

	m.ratingClamped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rating_clamped_total",
		Help:      "Total number of adjustments reduced to stay within rating bounds",
	})

	m.ratingCacheRefreshes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rating_cache_refreshes_total",
		Help:      "Total number of weapon modifier cache refreshes",
	})

	m.serverStates = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "server_states",
		Help:      "Current number of tracked game servers",
	})

	m.stateChanges = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "server_state_changes_total",
			Help:      "Total number of server state transitions, by change type",
		},
		[]string{"change_type"},
	)

	m.stateListenerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "server_state_listener_errors_total",
		Help:      "Total number of state change listener failures isolated by the manager",
	})

	m.statesCleaned = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "server_states_cleaned_total",
		Help:      "Total number of server states removed by the inactivity sweep",
	})

	m.brokerPublished = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "broker_published_total",
			Help:      "Total number of events published to the broker, by topic",
		},
		[]string{"topic"},
	)

	m.brokerPublishErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "broker_publish_errors_total",
		Help:      "Total number of broker publish failures",
	})

	m.brokerConsumed = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "broker_consumed_total",
			Help:      "Total number of events consumed from the broker, by topic",
		},
		[]string{"topic"},
	)

	m.brokerConsumeErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "broker_consume_errors_total",
		Help:      "Total number of broker consume/decode failures",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "Current heap allocation in bytes",
	})

	m.systemGoroutines = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutines",
		Help:      "Current number of goroutines",
	})

	m.systemGCPause = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_milliseconds",
		Help:      "Average GC pause time in milliseconds",
		Buckets:   m.histogramBuckets,
	})
}

// GetRegistry returns the custom registry serving /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers delegating to the global manager.

func RecordEventIngested(eventType string) {
	globalManager.eventsIngested.WithLabelValues(eventType).Inc()
}

func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

func RecordEventInvalid() {
	globalManager.eventsInvalid.Inc()
}

func RecordBusEmit(eventType string) {
	globalManager.busEmits.WithLabelValues(eventType).Inc()
}

func RecordBusHandlerError(handler string) {
	globalManager.busHandlerErrors.WithLabelValues(handler).Inc()
}

func RecordBusDispatchLatency(ms float64) {
	globalManager.busDispatchLatency.Observe(ms)
}

func RecordSagaStarted(saga string) {
	globalManager.sagaStarted.WithLabelValues(saga).Inc()
}

func RecordSagaCompleted(saga string) {
	globalManager.sagaCompleted.WithLabelValues(saga).Inc()
}

func RecordSagaFailed(saga string) {
	globalManager.sagaFailed.WithLabelValues(saga).Inc()
}

func RecordSagaStepExecuted(saga, step string) {
	globalManager.sagaStepsExecuted.WithLabelValues(saga, step).Inc()
}

func RecordSagaStepCompensated(saga, step string) {
	globalManager.sagaStepsCompensated.WithLabelValues(saga, step).Inc()
}

func RecordSagaCompensationError(saga, step string) {
	globalManager.sagaCompensationErrors.WithLabelValues(saga, step).Inc()
}

func RecordSagaDuration(saga string, ms float64) {
	globalManager.sagaDuration.WithLabelValues(saga).Observe(ms)
}

func RecordRatingAdjustment() {
	globalManager.ratingAdjustments.Inc()
}

func RecordRatingClamped() {
	globalManager.ratingClamped.Inc()
}

func RecordRatingCacheRefresh() {
	globalManager.ratingCacheRefreshes.Inc()
}

func UpdateServerStateCount(n int) {
	globalManager.serverStates.Set(float64(n))
}

func RecordStateChange(changeType string) {
	globalManager.stateChanges.WithLabelValues(changeType).Inc()
}

func RecordStateListenerError() {
	globalManager.stateListenerErrors.Inc()
}

func RecordStatesCleaned(n int) {
	globalManager.statesCleaned.Add(float64(n))
}

func RecordBrokerPublished(topic string) {
	globalManager.brokerPublished.WithLabelValues(topic).Inc()
}

func RecordBrokerPublishError() {
	globalManager.brokerPublishErrors.Inc()
}

func RecordBrokerConsumed(topic string) {
	globalManager.brokerConsumed.WithLabelValues(topic).Inc()
}

func RecordBrokerConsumeError() {
	globalManager.brokerConsumeErrors.Inc()
}

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

func UpdateSystemGoroutineCount(n int) {
	globalManager.systemGoroutines.Set(float64(n))
}

func RecordSystemGCPauseTime(ms float64) {
	globalManager.systemGCPause.Observe(ms)
}
