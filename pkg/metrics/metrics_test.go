package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "fragstats")
				So(manager.subsystem, ShouldEqual, "engine")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "test-namespace")
				So(manager.subsystem, ShouldEqual, "test-subsystem")
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
			})
		})
	})
}

func TestPackageHelpers(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording engine metrics", func() {
			// These must not panic regardless of label values.
			So(func() {
				RecordEventIngested("player_kill")
				RecordEventDuplicate()
				RecordEventInvalid()
				RecordBusEmit("round_start")
				RecordBusHandlerError("match")
				RecordBusDispatchLatency(1.5)
				RecordSagaStarted("kill_event")
				RecordSagaStepExecuted("kill_event", "player_kill")
				RecordSagaStepCompensated("kill_event", "player_kill")
				RecordSagaCompensationError("kill_event", "weapon_stats")
				RecordSagaCompleted("kill_event")
				RecordSagaFailed("kill_event")
				RecordSagaDuration("kill_event", 12.0)
				RecordRatingAdjustment()
				RecordRatingClamped()
				RecordRatingCacheRefresh()
				UpdateServerStateCount(3)
				RecordStateChange("map_change")
				RecordStateListenerError()
				RecordStatesCleaned(2)
				RecordBrokerPublished("hlstats.events.priority")
				RecordBrokerPublishError()
				RecordBrokerConsumed("hlstats.events.standard")
				RecordBrokerConsumeError()
				RecordHTTPRequest("events", "POST", "202")
				RecordHTTPRequestDuration("events", "POST", "202", 3.0)
				RecordErrorByComponent("bus", "handler_panic")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(8)
				RecordSystemGCPauseTime(0.5)
			}, ShouldNotPanic)
		})

		Convey("When fetching the registry", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
