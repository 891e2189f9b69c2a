package service_test

import (
	"context"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/fragworks/fragstats/internal/app"
	"github.com/fragworks/fragstats/internal/domain/event"
	"github.com/fragworks/fragstats/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

func startService(opts ...service.Option) *service.Service {
	s := service.New(opts...)
	if err := s.Start(context.Background()); err != nil {
		panic(err)
	}
	return s
}

func killEvent(server, killer, victim string) event.Event {
	return event.NewKill(server, event.KillPayload{
		KillerID:   killer,
		VictimID:   victim,
		Weapon:     "weapon_awp",
		KillerTeam: "T",
		VictimTeam: "CT",
	})
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a service", t, func() {
		s := startService()
		defer s.Stop()

		Convey("Start is idempotent", func() {
			So(s.Start(context.Background()), ShouldBeNil)
		})

		Convey("GetStats reports a started engine", func() {
			stats := s.GetStats()
			So(stats["started"], ShouldBeTrue)
			So(stats["game"], ShouldEqual, "csgo")
		})

		Convey("Stop then Stop again is safe", func() {
			s.Stop()
			s.Stop()
		})
	})
}

func TestServiceProcess(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		s := startService()
		defer s.Stop()

		Convey("An invalid event is rejected", func() {
			e := event.Event{Type: event.TypePlayerKill, EventID: "x", ServerID: "srv-1"}
			So(s.Process(ctx, e), ShouldNotBeNil)
		})

		Convey("A kill event updates ratings and the leaderboard", func() {
			So(s.Process(ctx, killEvent("srv-1", "alpha", "bravo")), ShouldBeNil)

			killer, err := s.Rating(ctx, "alpha")
			So(err, ShouldBeNil)
			So(killer.Rating, ShouldBeGreaterThan, 1000)

			top, err := s.TopN(ctx, 2)
			So(err, ShouldBeNil)
			So(top[0].PlayerID, ShouldEqual, "alpha")
		})

		Convey("Lifecycle events drive the server state machine", func() {
			mc := event.New(event.TypeMapChange, "srv-1")
			mc.MapChange = &event.MapChangePayload{NewMap: "de_dust2"}
			So(s.Process(ctx, mc), ShouldBeNil)

			rs := event.New(event.TypeRoundStart, "srv-1")
			rs.RoundStart = &event.RoundStartPayload{}
			So(s.Process(ctx, rs), ShouldBeNil)

			st := s.ServerState(ctx, "srv-1")
			So(st.CurrentMap, ShouldEqual, "de_dust2")
			So(st.CurrentRound, ShouldEqual, 1)

			tw := event.New(event.TypeTeamWin, "srv-1")
			tw.TeamWin = &event.TeamWinPayload{Team: "CT"}
			So(s.Process(ctx, tw), ShouldBeNil)

			st = s.ServerState(ctx, "srv-1")
			So(st.LastWinningTeam, ShouldEqual, "CT")
		})

		Convey("Suicide events reach the ranking module over the bus", func() {
			So(s.Process(ctx, event.NewSuicide("srv-1", event.SuicidePayload{PlayerID: "alpha"})), ShouldBeNil)

			sr, err := s.Rating(ctx, "alpha")
			So(err, ShouldBeNil)
			So(sr.Rating, ShouldEqual, 995)
		})

		Convey("Connect and disconnect flow through the presence module", func() {
			c := event.New(event.TypePlayerConnect, "srv-1")
			c.Connect = &event.ConnectPayload{PlayerID: "alpha"}
			So(s.Process(ctx, c), ShouldBeNil)

			d := event.New(event.TypePlayerDisconnect, "srv-1")
			d.Disconnect = &event.DisconnectPayload{PlayerID: "alpha"}
			So(s.Process(ctx, d), ShouldBeNil)
		})
	})
}

func TestServiceDedupe(t *testing.T) {
	Convey("Given the ingest dedupe surface", t, func() {
		ctx := context.Background()
		s := startService(service.WithDedupeSize(100))
		defer s.Stop()

		Convey("First sight records, second reports seen", func() {
			So(s.SeenAndRecord(ctx, "e1"), ShouldBeFalse)
			So(s.SeenAndRecord(ctx, "e1"), ShouldBeTrue)
		})

		Convey("Unrecord allows a retry after a failed process", func() {
			So(s.SeenAndRecord(ctx, "e2"), ShouldBeFalse)
			s.Unrecord(ctx, "e2")
			So(s.SeenAndRecord(ctx, "e2"), ShouldBeFalse)
		})

		Convey("Processed events are recorded against replays", func() {
			e := killEvent("srv-1", "alpha", "bravo")
			So(s.Process(ctx, e), ShouldBeNil)
			So(s.SeenAndRecord(ctx, e.EventID), ShouldBeTrue)
		})
	})
}

func TestServiceBrokerRoundTrip(t *testing.T) {
	Convey("Given a single-process service on the memory broker", t, func() {
		ctx := context.Background()
		s := startService()
		defer s.Stop()

		Convey("The broker echo of a processed event does not double-apply", func() {
			rs := event.New(event.TypeRoundStart, "srv-2")
			rs.RoundStart = &event.RoundStartPayload{}
			So(s.Process(ctx, rs), ShouldBeNil)

			// Give the consumer goroutine a chance to drain the echo.
			time.Sleep(50 * time.Millisecond)

			st := s.ServerState(ctx, "srv-2")
			So(st.CurrentRound, ShouldEqual, 1)
		})
	})
}
