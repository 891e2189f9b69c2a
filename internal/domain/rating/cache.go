package rating

import (
	"context"
	"sync"
	"time"

	"github.com/fragworks/fragstats/pkg/metrics"
)

// defaultModifierTTL bounds how long weapon modifiers are served before
// a wholesale refresh.
const defaultModifierTTL = 5 * time.Minute

// ModifierSource loads the modifier table for a game, e.g. from the
// weapon service. Optional; a static table can be used instead.
type ModifierSource func(ctx context.Context, game string) (map[string]float64, error)

// modifierCache is a time-boxed table keyed by game + normalized weapon
// code. On expiry the whole table is cleared and repopulated under the
// lock, so a half-cleared cache is never served.
type modifierCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	expiresAt time.Time
	mods      map[string]float64
	loaded    map[string]bool // games populated since the last clear
	static    map[string]float64
	source    ModifierSource
	now       func() time.Time
}

func newModifierCache(ttl time.Duration, source ModifierSource) *modifierCache {
	return &modifierCache{
		ttl:    ttl,
		mods:   make(map[string]float64),
		loaded: make(map[string]bool),
		source: source,
		now:    time.Now,
	}
}

func cacheKey(game, weapon string) string {
	return game + ":" + weapon
}

// lookup returns the modifier for game+weapon, refreshing the table when
// the TTL has elapsed. Returns false for unknown weapons.
func (c *modifierCache) lookup(ctx context.Context, game, weapon string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.After(c.expiresAt) {
		c.mods = make(map[string]float64)
		c.loaded = make(map[string]bool)
		c.expiresAt = now.Add(c.ttl)
		metrics.RecordRatingCacheRefresh()
	}

	if !c.loaded[game] {
		c.populate(ctx, game)
		c.loaded[game] = true
	}

	mod, ok := c.mods[cacheKey(game, weapon)]
	return mod, ok
}

// populate fills the table for one game from the source, falling back to
// the static seed table. Source failures leave the static entries in
// place; the next refresh retries.
func (c *modifierCache) populate(ctx context.Context, game string) {
	for weapon, mod := range c.static {
		c.mods[cacheKey(game, NormalizeWeapon(weapon))] = mod
	}
	if c.source == nil {
		return
	}
	fetched, err := c.source(ctx, game)
	if err != nil {
		metrics.RecordErrorByComponent("rating_cache", "source_error")
		return
	}
	for weapon, mod := range fetched {
		c.mods[cacheKey(game, NormalizeWeapon(weapon))] = mod
	}
}
