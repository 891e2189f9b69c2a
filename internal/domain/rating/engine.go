// Package rating computes ELO-style skill adjustments from kill context.
//
// The engine is stateless apart from a time-boxed weapon modifier cache;
// it operates on rating values passed in and never persists them.
package rating

import (
	"context"
	"math"
	"strings"

	"github.com/fragworks/fragstats/pkg/metrics"
)

// Default rating configuration constants.
const (
	defaultBaseK           = 32.0
	defaultMaxDelta        = 50.0
	defaultMinRating       = 100
	defaultMaxRating       = 3000
	defaultHeadshotBonus   = 1.2
	defaultVictimLossRatio = 0.8
	defaultTeamKillPenalty = -10
	defaultTeamKillComp    = 2
	defaultSuicidePenalty  = -5
	defaultWeaponModifier  = 1.0

	// K-factor experience tiers.
	rookieGames     = 10
	learningGames   = 50
	veteranRating   = 2000
	rookieKScale    = 1.5
	learningKScale  = 1.2
	veteranKScale   = 0.8
	logisticDivisor = 400.0
	logisticBase    = 10.0
)

// SkillRating is a player's rating state as owned by the ranking domain.
type SkillRating struct {
	PlayerID    string
	Rating      int
	Confidence  float64
	Volatility  float64
	GamesPlayed int
}

// KillContext carries the per-kill facts that modify the base formula.
type KillContext struct {
	Game     string
	Weapon   string
	Headshot bool
	SameTeam bool
}

// Adjustment is the computed rating change pair for one kill.
type Adjustment struct {
	KillerChange int
	VictimChange int
}

// Engine computes skill adjustments. Safe for concurrent callers; the
// modifier cache is the only guarded state.
type Engine struct {
	baseK           float64
	maxDelta        float64
	minRating       int
	maxRating       int
	headshotBonus   float64
	victimLossRatio float64
	teamKillPenalty int
	teamKillComp    int
	suicidePenalty  int

	cache *modifierCache
}

// NewEngine creates a rating engine with configuration options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		baseK:           defaultBaseK,
		maxDelta:        defaultMaxDelta,
		minRating:       defaultMinRating,
		maxRating:       defaultMaxRating,
		headshotBonus:   defaultHeadshotBonus,
		victimLossRatio: defaultVictimLossRatio,
		teamKillPenalty: defaultTeamKillPenalty,
		teamKillComp:    defaultTeamKillComp,
		suicidePenalty:  defaultSuicidePenalty,
		cache:           newModifierCache(defaultModifierTTL, nil),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// CalculateSkillAdjustment computes the rating change pair for a kill.
// Team kills bypass the general formula entirely.
func (e *Engine) CalculateSkillAdjustment(ctx context.Context, killer, victim SkillRating, kc KillContext) Adjustment {
	metrics.RecordRatingAdjustment()

	if kc.SameTeam {
		return Adjustment{
			KillerChange: e.clampDelta(killer.Rating, e.teamKillPenalty),
			VictimChange: e.clampDelta(victim.Rating, e.teamKillComp),
		}
	}

	expected := expectedScore(killer.Rating, victim.Rating)
	delta := e.kFactor(killer) * (1 - expected)

	delta *= e.weaponModifier(ctx, kc.Game, kc.Weapon)
	if kc.Headshot {
		delta *= e.headshotBonus
	}
	if delta > e.maxDelta {
		delta = e.maxDelta
	}

	killerChange := int(math.Round(delta))
	victimChange := -int(math.Round(float64(killerChange) * e.victimLossRatio))

	return Adjustment{
		KillerChange: e.clampDelta(killer.Rating, killerChange),
		VictimChange: e.clampDelta(victim.Rating, victimChange),
	}
}

// CalculateRatingAdjustment is the win/lose variant without weapon or
// headshot modifiers, reusing the expected-score and K-factor logic.
func (e *Engine) CalculateRatingAdjustment(winner, loser SkillRating) Adjustment {
	metrics.RecordRatingAdjustment()

	expected := expectedScore(winner.Rating, loser.Rating)
	delta := e.kFactor(winner) * (1 - expected)
	if delta > e.maxDelta {
		delta = e.maxDelta
	}

	winnerChange := int(math.Round(delta))
	loserChange := -int(math.Round(float64(winnerChange) * e.victimLossRatio))

	return Adjustment{
		KillerChange: e.clampDelta(winner.Rating, winnerChange),
		VictimChange: e.clampDelta(loser.Rating, loserChange),
	}
}

// CalculateSuicidePenalty returns the flat suicide penalty.
func (e *Engine) CalculateSuicidePenalty() int {
	return e.suicidePenalty
}

// expectedScore is the logistic ELO expectation for the killer.
func expectedScore(killerRating, victimRating int) float64 {
	exp := float64(victimRating-killerRating) / logisticDivisor
	return 1 / (1 + math.Pow(logisticBase, exp))
}

// kFactor tiers the sensitivity constant by killer experience.
func (e *Engine) kFactor(killer SkillRating) float64 {
	switch {
	case killer.GamesPlayed < rookieGames:
		return e.baseK * rookieKScale
	case killer.GamesPlayed < learningGames:
		return e.baseK * learningKScale
	case killer.Rating >= veteranRating:
		return e.baseK * veteranKScale
	default:
		return e.baseK
	}
}

// clampDelta reduces delta so rating+delta stays within bounds. Bound
// violations are never errors; the effective delta exactly reaches the
// bound instead.
func (e *Engine) clampDelta(rating, delta int) int {
	next := rating + delta
	switch {
	case next > e.maxRating:
		metrics.RecordRatingClamped()
		return e.maxRating - rating
	case next < e.minRating:
		metrics.RecordRatingClamped()
		return e.minRating - rating
	default:
		return delta
	}
}

// weaponModifier resolves the per-weapon multiplier through the cache,
// defaulting to 1.0 for unknown weapons.
func (e *Engine) weaponModifier(ctx context.Context, game, weapon string) float64 {
	mod, ok := e.cache.lookup(ctx, game, NormalizeWeapon(weapon))
	if !ok {
		return defaultWeaponModifier
	}
	return mod
}

// NormalizeWeapon canonicalizes a weapon code: lower-cased, trimmed,
// engine prefixes stripped.
func NormalizeWeapon(weapon string) string {
	w := strings.ToLower(strings.TrimSpace(weapon))
	w = strings.TrimPrefix(w, "weapon_")
	return strings.ReplaceAll(w, " ", "_")
}
