package kill_test

import (
	"context"
	"errors"
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/fragworks/fragstats/internal/adapters/repository"
	"github.com/fragworks/fragstats/internal/domain/event"
	"github.com/fragworks/fragstats/internal/domain/rating"
	"github.com/fragworks/fragstats/internal/saga"
	"github.com/fragworks/fragstats/internal/saga/kill"
	"github.com/fragworks/fragstats/internal/services"
	"github.com/fragworks/fragstats/internal/services/memory"
	"github.com/fragworks/fragstats/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

func killEvent() event.Event {
	return event.NewKill("srv-1", event.KillPayload{
		KillerID:   "alpha",
		VictimID:   "bravo",
		Weapon:     "weapon_ak47",
		Headshot:   true,
		KillerTeam: "T",
		VictimTeam: "CT",
	})
}

// failingRankings rejects every update, forcing full compensation of the
// three preceding steps.
type failingRankings struct{}

func (f *failingRankings) HandleRatingUpdate(context.Context, services.KillEvent) error {
	return errors.New("ranking store unavailable")
}

// bareMatches has no compensation capability.
type bareMatches struct {
	handled int
}

func (b *bareMatches) HandleKillInMatch(context.Context, string, string, string) error {
	b.handled++
	return nil
}

func newFixture() (*memory.Players, *memory.Weapons, *memory.Matches, *memory.Rankings) {
	players := memory.NewPlayers()
	weapons := memory.NewWeapons()
	matches := memory.NewMatches()
	rankings := memory.NewRankings(repository.NewShardedStore(), rating.NewEngine(), "csgo")
	return players, weapons, matches, rankings
}

func TestKillSaga(t *testing.T) {
	Convey("Given a kill saga over in-memory services", t, func() {
		ctx := context.Background()
		players, weapons, matches, rankings := newFixture()

		Convey("A kill event flows through all four steps", func() {
			s := kill.New(players, weapons, matches, rankings)
			So(s.Handle(ctx, killEvent()), ShouldBeNil)

			killer, ok := players.Stats("alpha")
			So(ok, ShouldBeTrue)
			So(killer.Kills, ShouldEqual, 1)

			ws, ok := weapons.Stats("ak47")
			So(ok, ShouldBeTrue)
			So(ws.Kills, ShouldEqual, 1)

			tally, ok := matches.Tally("srv-1")
			So(ok, ShouldBeTrue)
			So(tally.Kills, ShouldEqual, 1)

			sr, err := rankings.Rating(ctx, "alpha")
			So(err, ShouldBeNil)
			So(sr.Rating, ShouldBeGreaterThan, 1000)
		})

		Convey("Non-kill events are ignored without error", func() {
			s := kill.New(players, weapons, matches, rankings)
			So(s.Handle(ctx, event.NewSuicide("srv-1", event.SuicidePayload{PlayerID: "alpha"})), ShouldBeNil)

			_, ok := players.Stats("alpha")
			So(ok, ShouldBeFalse)
		})

		Convey("A failing ranking step compensates the earlier steps", func() {
			mon := saga.NewLogMonitor(logger.Named("test"))
			s := kill.New(players, weapons, matches, &failingRankings{}, kill.WithMonitor(mon))

			err := s.Handle(ctx, killEvent())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "ranking store unavailable")

			killer, _ := players.Stats("alpha")
			So(killer.Kills, ShouldEqual, 0)
			victim, _ := players.Stats("bravo")
			So(victim.Deaths, ShouldEqual, 0)

			ws, _ := weapons.Stats("ak47")
			So(ws.Kills, ShouldEqual, 0)

			tally, _ := matches.Tally("srv-1")
			So(tally.Kills, ShouldEqual, 0)

			snap := mon.Snapshot()
			So(snap.Failed, ShouldEqual, 1)
			So(snap.StepsCompensated, ShouldEqual, 3)
		})

		Convey("Ranking compensation restores the exact prior ratings", func() {
			seed := rating.SkillRating{PlayerID: "alpha", Rating: 1400, GamesPlayed: 12}
			store := repository.NewShardedStore()
			So(store.Put(ctx, seed), ShouldBeNil)
			rk := memory.NewRankings(store, rating.NewEngine(), "csgo")

			snap, err := rk.GetCurrentRankings(ctx, []string{"alpha", "bravo"})
			So(err, ShouldBeNil)
			So(rk.HandleRatingUpdate(ctx, services.KillEventFrom(killEvent())), ShouldBeNil)
			So(rk.RestoreRankings(ctx, snap), ShouldBeNil)

			sr, err := rk.Rating(ctx, "alpha")
			So(err, ShouldBeNil)
			So(sr.Rating, ShouldEqual, 1400)
			So(sr.GamesPlayed, ShouldEqual, 12)
		})

		Convey("A service without compensation capability is skipped silently", func() {
			bare := &bareMatches{}
			s := kill.New(players, weapons, bare, &failingRankings{})

			err := s.Handle(ctx, killEvent())
			So(err, ShouldNotBeNil)
			So(bare.handled, ShouldEqual, 1)

			// Player and weapon compensations still ran.
			killer, _ := players.Stats("alpha")
			So(killer.Kills, ShouldEqual, 0)
			ws, _ := weapons.Stats("ak47")
			So(ws.Kills, ShouldEqual, 0)
		})
	})
}
