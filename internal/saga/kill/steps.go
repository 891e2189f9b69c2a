package kill

import (
	"context"
	"fmt"

	"github.com/fragworks/fragstats/internal/domain/rating"
	"github.com/fragworks/fragstats/internal/saga"
	"github.com/fragworks/fragstats/internal/services"
	"github.com/fragworks/fragstats/pkg/logger"
)

// Step names double as completion-record keys in the saga context.
const (
	stepPlayerKill    = "player_kill"
	stepWeaponStats   = "weapon_stats"
	stepMatchStats    = "match_stats"
	stepRankingUpdate = "ranking_update"
)

// playerKillStep records the kill against both players.
type playerKillStep struct {
	players services.PlayerService
	log     logger.Logger
}

func (s *playerKillStep) Name() string { return stepPlayerKill }

func (s *playerKillStep) Execute(ctx context.Context, sc *saga.Context[State]) error {
	return s.players.HandleKillEvent(ctx, services.KillEventFrom(sc.Event))
}

func (s *playerKillStep) Compensate(ctx context.Context, sc *saga.Context[State]) error {
	c, ok := s.players.(services.PlayerCompensator)
	if !ok {
		s.log.Debug(ctx, "player service has no compensation, skipping",
			logger.String("event_id", sc.EventID))
		return nil
	}
	return c.CompensateKillEvent(ctx, sc.Event.Kill.KillerID, sc.Event.Kill.VictimID)
}

// weaponStatsStep records the kill against the weapon used and stashes
// the normalized code for compensation.
type weaponStatsStep struct {
	weapons services.WeaponService
	log     logger.Logger
}

func (s *weaponStatsStep) Name() string { return stepWeaponStats }

func (s *weaponStatsStep) Execute(ctx context.Context, sc *saga.Context[State]) error {
	sc.Data.WeaponCode = rating.NormalizeWeapon(sc.Event.Kill.Weapon)
	return s.weapons.HandleWeaponEvent(ctx, services.KillEventFrom(sc.Event))
}

func (s *weaponStatsStep) Compensate(ctx context.Context, sc *saga.Context[State]) error {
	c, ok := s.weapons.(services.WeaponCompensator)
	if !ok {
		s.log.Debug(ctx, "weapon service has no compensation, skipping",
			logger.String("event_id", sc.EventID))
		return nil
	}
	return c.CompensateWeaponEvent(ctx, sc.Data.WeaponCode, sc.Event.Kill.KillerID)
}

// matchStatsStep records the kill in the server's current match.
type matchStatsStep struct {
	matches services.MatchService
	log     logger.Logger
}

func (s *matchStatsStep) Name() string { return stepMatchStats }

func (s *matchStatsStep) Execute(ctx context.Context, sc *saga.Context[State]) error {
	return s.matches.HandleKillInMatch(ctx, sc.Event.ServerID, sc.Event.Kill.KillerID, sc.Event.Kill.VictimID)
}

func (s *matchStatsStep) Compensate(ctx context.Context, sc *saga.Context[State]) error {
	c, ok := s.matches.(services.MatchCompensator)
	if !ok {
		s.log.Debug(ctx, "match service has no compensation, skipping",
			logger.String("event_id", sc.EventID))
		return nil
	}
	return c.CompensateKillInMatch(ctx, sc.Event.ServerID, sc.Event.Kill.KillerID, sc.Event.Kill.VictimID)
}

// rankingUpdateStep applies the skill adjustment. It snapshots the
// current ratings first so compensation restores the exact prior state
// instead of approximating an inverse adjustment.
type rankingUpdateStep struct {
	rankings services.RankingService
	log      logger.Logger
}

func (s *rankingUpdateStep) Name() string { return stepRankingUpdate }

func (s *rankingUpdateStep) Execute(ctx context.Context, sc *saga.Context[State]) error {
	if snap, ok := s.rankings.(services.RankingSnapshotter); ok {
		ids := []string{sc.Event.Kill.KillerID, sc.Event.Kill.VictimID}
		snapshot, err := snap.GetCurrentRankings(ctx, ids)
		if err != nil {
			return fmt.Errorf("snapshot rankings: %w", err)
		}
		sc.Data.RatingSnapshot = snapshot
	}
	return s.rankings.HandleRatingUpdate(ctx, services.KillEventFrom(sc.Event))
}

func (s *rankingUpdateStep) Compensate(ctx context.Context, sc *saga.Context[State]) error {
	snap, ok := s.rankings.(services.RankingSnapshotter)
	if !ok || sc.Data.RatingSnapshot == nil {
		s.log.Debug(ctx, "ranking service has no snapshot capability, skipping",
			logger.String("event_id", sc.EventID))
		return nil
	}
	return snap.RestoreRankings(ctx, sc.Data.RatingSnapshot)
}
