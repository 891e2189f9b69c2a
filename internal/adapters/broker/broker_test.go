package broker_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/fragworks/fragstats/internal/adapters/broker"
	"github.com/fragworks/fragstats/internal/domain/event"
	"github.com/fragworks/fragstats/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

func TestTopicClassification(t *testing.T) {
	Convey("Events map to topics by queue class", t, func() {
		cases := []struct {
			typ   event.Type
			topic string
		}{
			{event.TypePlayerKill, broker.TopicPriority},
			{event.TypePlayerSuicide, broker.TopicPriority},
			{event.TypeTeamWin, broker.TopicPriority},
			{event.TypePlayerConnect, broker.TopicStandard},
			{event.TypeRoundStart, broker.TopicStandard},
			{event.TypeMapChange, broker.TopicStandard},
			{event.TypeWeaponFire, broker.TopicBulk},
			{event.TypeChat, broker.TopicBulk},
		}
		for _, tc := range cases {
			e := event.New(tc.typ, "srv-1")
			So(broker.TopicFor(e), ShouldEqual, tc.topic)
		}
	})

	Convey("Topics lists all three topics", t, func() {
		So(broker.Topics(), ShouldResemble, []string{broker.TopicPriority, broker.TopicStandard, broker.TopicBulk})
	})
}

func TestMemoryBroker(t *testing.T) {
	Convey("Given a memory broker", t, func() {
		ctx := context.Background()

		Convey("Published events reach the dispatch function", func() {
			b := broker.NewMemoryBroker(broker.WithBuffer(16))
			defer b.Close()

			var mu sync.Mutex
			var got []string
			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				defer close(done)
				_ = b.Run(runCtx, func(_ context.Context, e event.Event) error {
					mu.Lock()
					got = append(got, e.EventID)
					mu.Unlock()
					if len(got) == 2 {
						cancel()
					}
					return nil
				})
			}()

			e1 := event.New(event.TypePlayerConnect, "srv-1")
			e2 := event.New(event.TypeRoundStart, "srv-1")
			So(b.Publish(ctx, e1), ShouldBeNil)
			So(b.Publish(ctx, e2), ShouldBeNil)

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("dispatch timed out")
			}

			mu.Lock()
			defer mu.Unlock()
			So(got, ShouldResemble, []string{e1.EventID, e2.EventID})
		})

		Convey("A full buffer drops the event as full", func() {
			b := broker.NewMemoryBroker(broker.WithBuffer(1))
			defer b.Close()

			So(b.Publish(ctx, event.New(event.TypeChat, "srv-1")), ShouldBeNil)
			err := b.Publish(ctx, event.New(event.TypeChat, "srv-1"))
			So(errors.Is(err, broker.ErrFull), ShouldBeTrue)
		})

		Convey("Publishing after close is rejected", func() {
			b := broker.NewMemoryBroker()
			So(b.Close(), ShouldBeNil)
			err := b.Publish(ctx, event.New(event.TypeChat, "srv-1"))
			So(errors.Is(err, broker.ErrClosed), ShouldBeTrue)
		})

		Convey("Dispatch errors do not stop the consumer", func() {
			b := broker.NewMemoryBroker(broker.WithBuffer(16))
			defer b.Close()

			var mu sync.Mutex
			var delivered int
			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				defer close(done)
				_ = b.Run(runCtx, func(_ context.Context, e event.Event) error {
					mu.Lock()
					defer mu.Unlock()
					delivered++
					if delivered == 1 {
						return errors.New("transient")
					}
					cancel()
					return nil
				})
			}()

			So(b.Publish(ctx, event.New(event.TypeChat, "srv-1")), ShouldBeNil)
			So(b.Publish(ctx, event.New(event.TypeChat, "srv-1")), ShouldBeNil)

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("dispatch timed out")
			}

			mu.Lock()
			defer mu.Unlock()
			So(delivered, ShouldEqual, 2)
		})

		Convey("Close is idempotent", func() {
			b := broker.NewMemoryBroker()
			So(b.Close(), ShouldBeNil)
			So(b.Close(), ShouldBeNil)
		})
	})
}
