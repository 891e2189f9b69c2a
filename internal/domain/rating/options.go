package rating

import "time"

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithBaseK sets the base K-factor.
func WithBaseK(k float64) Option {
	return func(e *Engine) {
		if k > 0 {
			e.baseK = k
		}
	}
}

// WithRatingBounds sets the inclusive rating range.
func WithRatingBounds(min, max int) Option {
	return func(e *Engine) {
		if min > 0 && max > min {
			e.minRating = min
			e.maxRating = max
		}
	}
}

// WithMaxDelta caps the magnitude of a single adjustment before sign
// application.
func WithMaxDelta(max float64) Option {
	return func(e *Engine) {
		if max > 0 {
			e.maxDelta = max
		}
	}
}

// WithWeaponModifiers seeds the modifier cache with a static table keyed
// by weapon code.
func WithWeaponModifiers(mods map[string]float64) Option {
	return func(e *Engine) {
		if mods == nil {
			return
		}
		static := make(map[string]float64, len(mods))
		for weapon, mod := range mods {
			if mod > 0 {
				static[NormalizeWeapon(weapon)] = mod
			}
		}
		e.cache.static = static
	}
}

// WithModifierSource sets the dynamic modifier loader consulted on cache
// refresh.
func WithModifierSource(source ModifierSource) Option {
	return func(e *Engine) {
		e.cache.source = source
	}
}

// WithModifierTTL sets the modifier cache lifetime.
func WithModifierTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.cache.ttl = ttl
		}
	}
}
