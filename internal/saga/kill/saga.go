// Package kill implements the kill-event saga: the ordered, compensable
// pipeline that turns one player-kill event into player, weapon, match,
// and ranking updates.
package kill

import (
	"context"
	"fmt"

	"github.com/fragworks/fragstats/internal/domain/event"
	"github.com/fragworks/fragstats/internal/saga"
	"github.com/fragworks/fragstats/internal/services"
	"github.com/fragworks/fragstats/pkg/logger"
)

// SagaName identifies this saga in monitor callbacks and logs.
const SagaName = "kill_event"

// State is the typed accumulator threaded through the steps. The rating
// snapshot is taken before the ranking update so compensation can land
// exactly on the pre-saga state.
type State struct {
	WeaponCode     string
	RatingSnapshot services.RankingSnapshot
}

// Saga orchestrates the four kill-processing steps.
type Saga struct {
	inner *saga.Saga[State]
	log   logger.Logger
}

// Option applies a configuration option to the kill saga.
type Option func(*config)

type config struct {
	monitor saga.Monitor
	log     logger.Logger
}

// WithMonitor attaches a monitor to the underlying saga.
func WithMonitor(m saga.Monitor) Option {
	return func(c *config) { c.monitor = m }
}

// WithLogger overrides the default named logger.
func WithLogger(l logger.Logger) Option {
	return func(c *config) { c.log = l }
}

// New wires the kill saga over the business services.
func New(
	players services.PlayerService,
	weapons services.WeaponService,
	matches services.MatchService,
	rankings services.RankingService,
	opts ...Option,
) *Saga {
	cfg := config{log: logger.Named("saga.kill")}
	for _, opt := range opts {
		opt(&cfg)
	}

	steps := []saga.Step[State]{
		&playerKillStep{players: players, log: cfg.log},
		&weaponStatsStep{weapons: weapons, log: cfg.log},
		&matchStatsStep{matches: matches, log: cfg.log},
		&rankingUpdateStep{rankings: rankings, log: cfg.log},
	}

	sagaOpts := []saga.Option[State]{saga.WithLogger[State](cfg.log)}
	if cfg.monitor != nil {
		sagaOpts = append(sagaOpts, saga.WithMonitor[State](cfg.monitor))
	}

	return &Saga{
		inner: saga.New(SagaName, steps, sagaOpts...),
		log:   cfg.log,
	}
}

// Handle runs the saga for a player-kill event. Events of any other type
// are logged and ignored; the bus fans every event to every module, and
// a type mismatch here is routine, not an error.
func (s *Saga) Handle(ctx context.Context, e event.Event) error {
	if e.Type != event.TypePlayerKill || e.Kill == nil {
		s.log.Debug(ctx, "ignoring non-kill event",
			logger.String("event_type", string(e.Type)),
			logger.String("event_id", e.EventID))
		return nil
	}
	_, err := s.inner.Run(ctx, e, &State{})
	if err != nil {
		return fmt.Errorf("kill saga: %w", err)
	}
	return nil
}
