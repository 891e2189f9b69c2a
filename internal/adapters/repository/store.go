// Package repository defines the rating store interface and errors.
package repository

import (
	"context"

	"github.com/fragworks/fragstats/internal/domain/rating"
)

// Entry represents a leaderboard row.
type Entry struct {
	Rank        int
	PlayerID    string
	Rating      int
	GamesPlayed int
}

// Store provides read/write access to player skill ratings.
type Store interface {
	// Get returns the stored rating for a player.
	// Returns ErrNotFound if the player is unknown.
	Get(ctx context.Context, playerID string) (rating.SkillRating, error)

	// Put stores a player's rating, replacing any existing record.
	Put(ctx context.Context, r rating.SkillRating) error

	// TopN returns the top-N entries ordered by rating desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of players tracked.
	Count(ctx context.Context) int
}
