package memory_test

import (
	"context"
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/fragworks/fragstats/internal/adapters/repository"
	"github.com/fragworks/fragstats/internal/domain/rating"
	"github.com/fragworks/fragstats/internal/services"
	"github.com/fragworks/fragstats/internal/services/memory"
	"github.com/fragworks/fragstats/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

func kill(killer, victim string, headshot bool) services.KillEvent {
	return services.KillEvent{
		ServerID:   "srv-1",
		KillerID:   killer,
		VictimID:   victim,
		Weapon:     "weapon_ak47",
		Headshot:   headshot,
		KillerTeam: "T",
		VictimTeam: "CT",
	}
}

func TestPlayers(t *testing.T) {
	Convey("Given a player service", t, func() {
		ctx := context.Background()
		p := memory.NewPlayers()

		Convey("A kill records killer and victim sides", func() {
			So(p.HandleKillEvent(ctx, kill("alpha", "bravo", true)), ShouldBeNil)

			killer, ok := p.Stats("alpha")
			So(ok, ShouldBeTrue)
			So(killer.Kills, ShouldEqual, 1)
			So(killer.Headshots, ShouldEqual, 1)

			victim, ok := p.Stats("bravo")
			So(ok, ShouldBeTrue)
			So(victim.Deaths, ShouldEqual, 1)
		})

		Convey("A team kill records a team kill, not a kill", func() {
			ke := kill("alpha", "bravo", false)
			ke.VictimTeam = "T"
			So(p.HandleKillEvent(ctx, ke), ShouldBeNil)

			killer, _ := p.Stats("alpha")
			So(killer.Kills, ShouldEqual, 0)
			So(killer.TeamKills, ShouldEqual, 1)
		})

		Convey("Compensation rolls back the kill and death", func() {
			So(p.HandleKillEvent(ctx, kill("alpha", "bravo", false)), ShouldBeNil)
			So(p.CompensateKillEvent(ctx, "alpha", "bravo"), ShouldBeNil)

			killer, _ := p.Stats("alpha")
			victim, _ := p.Stats("bravo")
			So(killer.Kills, ShouldEqual, 0)
			So(victim.Deaths, ShouldEqual, 0)
		})

		Convey("Compensation for unknown players is a no-op", func() {
			So(p.CompensateKillEvent(ctx, "ghost", "phantom"), ShouldBeNil)
		})

		Convey("Connect and disconnect toggle presence", func() {
			So(p.HandleConnect(ctx, "alpha"), ShouldBeNil)
			s, _ := p.Stats("alpha")
			So(s.Online, ShouldBeTrue)
			So(s.Connects, ShouldEqual, 1)

			So(p.HandleDisconnect(ctx, "alpha"), ShouldBeNil)
			s, _ = p.Stats("alpha")
			So(s.Online, ShouldBeFalse)
		})

		Convey("Suicide records a death", func() {
			So(p.HandleSuicide(ctx, "alpha"), ShouldBeNil)
			s, _ := p.Stats("alpha")
			So(s.Suicides, ShouldEqual, 1)
			So(s.Deaths, ShouldEqual, 1)
		})
	})
}

func TestWeapons(t *testing.T) {
	Convey("Given a weapon service", t, func() {
		ctx := context.Background()
		w := memory.NewWeapons()

		Convey("Kills aggregate under the normalized weapon code", func() {
			So(w.HandleWeaponEvent(ctx, kill("alpha", "bravo", true)), ShouldBeNil)
			So(w.HandleWeaponEvent(ctx, kill("alpha", "charlie", false)), ShouldBeNil)

			s, ok := w.Stats("ak47")
			So(ok, ShouldBeTrue)
			So(s.Kills, ShouldEqual, 2)
			So(s.Headshots, ShouldEqual, 1)
			So(s.ByPlayer["alpha"], ShouldEqual, 2)
		})

		Convey("Compensation reverses one kill for the pair", func() {
			So(w.HandleWeaponEvent(ctx, kill("alpha", "bravo", false)), ShouldBeNil)
			So(w.CompensateWeaponEvent(ctx, "ak47", "alpha"), ShouldBeNil)

			s, _ := w.Stats("ak47")
			So(s.Kills, ShouldEqual, 0)
			So(s.ByPlayer["alpha"], ShouldEqual, 0)
		})

		Convey("Compensation for an unknown weapon is a no-op", func() {
			So(w.CompensateWeaponEvent(ctx, "knife", "alpha"), ShouldBeNil)
		})
	})
}

func TestMatches(t *testing.T) {
	Convey("Given a match service", t, func() {
		ctx := context.Background()
		m := memory.NewMatches()

		Convey("Kills tally per server and killer", func() {
			So(m.HandleKillInMatch(ctx, "srv-1", "alpha", "bravo"), ShouldBeNil)
			So(m.HandleKillInMatch(ctx, "srv-1", "alpha", "charlie"), ShouldBeNil)

			t, ok := m.Tally("srv-1")
			So(ok, ShouldBeTrue)
			So(t.Kills, ShouldEqual, 2)
			So(t.ByPlayer["alpha"], ShouldEqual, 2)
		})

		Convey("Compensation reverses one tally entry", func() {
			So(m.HandleKillInMatch(ctx, "srv-1", "alpha", "bravo"), ShouldBeNil)
			So(m.CompensateKillInMatch(ctx, "srv-1", "alpha", "bravo"), ShouldBeNil)

			t, _ := m.Tally("srv-1")
			So(t.Kills, ShouldEqual, 0)
		})

		Convey("ResetMatch drops the server tally", func() {
			So(m.HandleKillInMatch(ctx, "srv-1", "alpha", "bravo"), ShouldBeNil)
			m.ResetMatch(ctx, "srv-1")
			_, ok := m.Tally("srv-1")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestRankings(t *testing.T) {
	Convey("Given a ranking service over a fresh store", t, func() {
		ctx := context.Background()
		store := repository.NewShardedStore()
		r := memory.NewRankings(store, rating.NewEngine(), "csgo")

		Convey("Unknown players start at the default rating", func() {
			sr, err := r.Rating(ctx, "alpha")
			So(err, ShouldBeNil)
			So(sr.Rating, ShouldEqual, 1000)
			So(sr.GamesPlayed, ShouldEqual, 0)
		})

		Convey("A kill moves both players and advances game counters", func() {
			So(r.HandleRatingUpdate(ctx, kill("alpha", "bravo", false)), ShouldBeNil)

			killer, err := r.Rating(ctx, "alpha")
			So(err, ShouldBeNil)
			So(killer.Rating, ShouldBeGreaterThan, 1000)
			So(killer.GamesPlayed, ShouldEqual, 1)

			victim, err := r.Rating(ctx, "bravo")
			So(err, ShouldBeNil)
			So(victim.Rating, ShouldBeLessThan, 1000)
			So(victim.GamesPlayed, ShouldEqual, 1)
		})

		Convey("Snapshot then restore lands on the pre-update state", func() {
			snap, err := r.GetCurrentRankings(ctx, []string{"alpha", "bravo"})
			So(err, ShouldBeNil)
			So(snap["alpha"].Rating, ShouldEqual, 1000)

			So(r.HandleRatingUpdate(ctx, kill("alpha", "bravo", true)), ShouldBeNil)
			So(r.RestoreRankings(ctx, snap), ShouldBeNil)

			killer, err := r.Rating(ctx, "alpha")
			So(err, ShouldBeNil)
			So(killer.Rating, ShouldEqual, 1000)
			So(killer.GamesPlayed, ShouldEqual, 0)
		})

		Convey("Suicide applies the flat penalty with a floor", func() {
			So(r.HandleSuicide(ctx, "alpha"), ShouldBeNil)
			sr, err := r.Rating(ctx, "alpha")
			So(err, ShouldBeNil)
			So(sr.Rating, ShouldEqual, 995)
		})

		Convey("Leaderboard reflects applied adjustments", func() {
			So(r.HandleRatingUpdate(ctx, kill("alpha", "bravo", false)), ShouldBeNil)
			top, err := r.Leaderboard(ctx, 2)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 2)
			So(top[0].PlayerID, ShouldEqual, "alpha")
		})
	})
}
