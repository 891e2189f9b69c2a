package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fragworks/fragstats/internal/adapters/repository"
	"github.com/fragworks/fragstats/internal/domain/rating"
	"github.com/fragworks/fragstats/internal/services"
	"github.com/fragworks/fragstats/pkg/logger"
)

var (
	_ services.RankingService     = (*Rankings)(nil)
	_ services.RankingSnapshotter = (*Rankings)(nil)
)

// Starting rating for players the store has never seen. The floor mirrors
// the engine's lower bound so flat penalties never push below it.
const (
	defaultRating = 1000
	floorRating   = 100
)

// Rankings applies skill adjustments to the rating store. Snapshot and
// restore exist solely for saga compensation.
type Rankings struct {
	mu     sync.Mutex
	store  repository.Store
	engine *rating.Engine
	game   string
	log    logger.Logger
}

// NewRankings creates a ranking service over the given store and engine.
func NewRankings(store repository.Store, engine *rating.Engine, game string) *Rankings {
	return &Rankings{
		store:  store,
		engine: engine,
		game:   game,
		log:    logger.Named("rankings"),
	}
}

// load returns the stored rating or a fresh default for unknown players.
func (r *Rankings) load(ctx context.Context, playerID string) (rating.SkillRating, error) {
	sr, err := r.store.Get(ctx, playerID)
	if errors.Is(err, repository.ErrNotFound) {
		return rating.SkillRating{PlayerID: playerID, Rating: defaultRating}, nil
	}
	if err != nil {
		return rating.SkillRating{}, err
	}
	return sr, nil
}

// HandleRatingUpdate computes and applies the rating change pair for a
// kill. Both players' game counters advance.
func (r *Rankings) HandleRatingUpdate(ctx context.Context, ke services.KillEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	killer, err := r.load(ctx, ke.KillerID)
	if err != nil {
		return fmt.Errorf("load killer rating: %w", err)
	}
	victim, err := r.load(ctx, ke.VictimID)
	if err != nil {
		return fmt.Errorf("load victim rating: %w", err)
	}

	adj := r.engine.CalculateSkillAdjustment(ctx, killer, victim, rating.KillContext{
		Game:     r.game,
		Weapon:   ke.Weapon,
		Headshot: ke.Headshot,
		SameTeam: ke.KillerTeam != "" && ke.KillerTeam == ke.VictimTeam,
	})

	killer.Rating += adj.KillerChange
	killer.GamesPlayed++
	victim.Rating += adj.VictimChange
	victim.GamesPlayed++

	if err := r.store.Put(ctx, killer); err != nil {
		return fmt.Errorf("store killer rating: %w", err)
	}
	if err := r.store.Put(ctx, victim); err != nil {
		return fmt.Errorf("store victim rating: %w", err)
	}

	r.log.Debug(ctx, "rating adjusted",
		logger.String("killer_id", ke.KillerID),
		logger.Int("killer_change", adj.KillerChange),
		logger.String("victim_id", ke.VictimID),
		logger.Int("victim_change", adj.VictimChange))
	return nil
}

// HandleSuicide applies the flat suicide penalty, floored at the rating
// lower bound.
func (r *Rankings) HandleSuicide(ctx context.Context, playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sr, err := r.load(ctx, playerID)
	if err != nil {
		return fmt.Errorf("load rating: %w", err)
	}
	sr.Rating += r.engine.CalculateSuicidePenalty()
	if sr.Rating < floorRating {
		sr.Rating = floorRating
	}
	sr.GamesPlayed++
	return r.store.Put(ctx, sr)
}

// GetCurrentRankings snapshots the effective rating of each player,
// including the default record for players the store has never seen, so
// a restore lands exactly on the pre-update state.
func (r *Rankings) GetCurrentRankings(ctx context.Context, playerIDs []string) (services.RankingSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := make(services.RankingSnapshot, len(playerIDs))
	for _, id := range playerIDs {
		sr, err := r.load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("snapshot rating for %s: %w", id, err)
		}
		snap[id] = sr
	}
	return snap, nil
}

// RestoreRankings writes a snapshot back to the store.
func (r *Rankings) RestoreRankings(ctx context.Context, snap services.RankingSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sr := range snap {
		if err := r.store.Put(ctx, sr); err != nil {
			return fmt.Errorf("restore rating for %s: %w", sr.PlayerID, err)
		}
	}
	return nil
}

// Rating returns the effective rating for a player.
func (r *Rankings) Rating(ctx context.Context, playerID string) (rating.SkillRating, error) {
	return r.load(ctx, playerID)
}

// Leaderboard returns the top-N leaderboard from the store.
func (r *Rankings) Leaderboard(ctx context.Context, n int) ([]repository.Entry, error) {
	return r.store.TopN(ctx, n)
}
