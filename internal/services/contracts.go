// Package services declares the business-service contracts the engine
// consumes. Player, weapon, match, and ranking statistics are owned by
// their services; the engine only calls these narrow interfaces.
//
// Compensation is a capability: services MAY implement the *Compensator
// interfaces, detected by type assertion. A service without the
// capability makes the corresponding saga compensation a logged no-op.
package services

import (
	"context"
	"time"

	"github.com/fragworks/fragstats/internal/domain/event"
	"github.com/fragworks/fragstats/internal/domain/rating"
)

// KillEvent is the flattened kill fact handed to business services.
type KillEvent struct {
	ServerID   string
	KillerID   string
	VictimID   string
	Weapon     string
	Headshot   bool
	KillerTeam string
	VictimTeam string
	Timestamp  time.Time
}

// KillEventFrom flattens a player-kill event. The event must carry a
// kill payload.
func KillEventFrom(e event.Event) KillEvent {
	return KillEvent{
		ServerID:   e.ServerID,
		KillerID:   e.Kill.KillerID,
		VictimID:   e.Kill.VictimID,
		Weapon:     e.Kill.Weapon,
		Headshot:   e.Kill.Headshot,
		KillerTeam: e.Kill.KillerTeam,
		VictimTeam: e.Kill.VictimTeam,
		Timestamp:  e.Timestamp,
	}
}

// PlayerService owns per-player kill/death records.
type PlayerService interface {
	HandleKillEvent(ctx context.Context, ke KillEvent) error
}

// PlayerCompensator reverses a recorded kill.
type PlayerCompensator interface {
	CompensateKillEvent(ctx context.Context, killerID, victimID string) error
}

// WeaponService owns per-weapon usage records.
type WeaponService interface {
	HandleWeaponEvent(ctx context.Context, ke KillEvent) error
}

// WeaponCompensator reverses a recorded weapon usage.
type WeaponCompensator interface {
	CompensateWeaponEvent(ctx context.Context, weaponCode, playerID string) error
}

// MatchService owns round/match tallies.
type MatchService interface {
	HandleKillInMatch(ctx context.Context, serverID, killerID, victimID string) error
}

// MatchCompensator reverses a recorded match kill.
type MatchCompensator interface {
	CompensateKillInMatch(ctx context.Context, serverID, killerID, victimID string) error
}

// RankingSnapshot captures rating state for a set of players so a failed
// saga can restore it.
type RankingSnapshot map[string]rating.SkillRating

// RankingService owns skill ratings and applies kill adjustments.
type RankingService interface {
	HandleRatingUpdate(ctx context.Context, ke KillEvent) error
}

// RankingSnapshotter exposes the snapshot/restore capability used solely
// by saga compensation.
type RankingSnapshotter interface {
	GetCurrentRankings(ctx context.Context, playerIDs []string) (RankingSnapshot, error)
	RestoreRankings(ctx context.Context, snap RankingSnapshot) error
}
