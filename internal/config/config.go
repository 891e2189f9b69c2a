// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) to build a Config with defaults.
// - Load(ctx) layers defaults, an optional YAML file, and env vars.
// - External errors are wrapped via this package's sentinel kinds.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Game selects the weapon modifier table, e.g. "csgo".
	Game string `koanf:"game"`

	// DedupeSize bounds the ingest idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// Brokers lists Kafka bootstrap addresses. Empty disables the
	// external broker and falls back to the in-memory broker.
	Brokers []string `koanf:"brokers"`

	// ConsumerGroup names the broker consumer group.
	ConsumerGroup string `koanf:"consumer_group"`

	// StateMaxAgeMinutes is the inactivity threshold for server state removal.
	StateMaxAgeMinutes int `koanf:"state_max_age_minutes"`

	// StateSweepMinutes is the interval between inactivity sweeps.
	StateSweepMinutes int `koanf:"state_sweep_minutes"`

	// WeaponModifierTTLMinutes bounds the weapon modifier cache lifetime.
	WeaponModifierTTLMinutes int `koanf:"weapon_modifier_ttl_minutes"`

	// WeaponModifiers maps normalized weapon codes to rating multipliers.
	WeaponModifiers map[string]float64 `koanf:"weapon_modifiers"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                 "info",
		Addr:                     ":9080",
		Game:                     "csgo",
		DedupeSize:               500_000,
		Brokers:                  nil,
		ConsumerGroup:            "fragstats-engine",
		StateMaxAgeMinutes:       60,
		StateSweepMinutes:        10,
		WeaponModifierTTLMinutes: 5,
		WeaponModifiers: map[string]float64{
			"knife": 2.0,
			"awp":   0.8,
		},
	}
}
