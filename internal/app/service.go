// Package service provides the core processing service that implements
// the dependencies required by the HTTP API: validation, deduplication,
// state tracking, saga orchestration, bus dispatch, and broker publish.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fragworks/fragstats/internal/adapters/broker"
	"github.com/fragworks/fragstats/internal/adapters/repository"
	"github.com/fragworks/fragstats/internal/dispatch"
	"github.com/fragworks/fragstats/internal/domain/dedupe"
	"github.com/fragworks/fragstats/internal/domain/event"
	"github.com/fragworks/fragstats/internal/domain/rating"
	"github.com/fragworks/fragstats/internal/domain/state"
	"github.com/fragworks/fragstats/internal/saga"
	killsaga "github.com/fragworks/fragstats/internal/saga/kill"
	"github.com/fragworks/fragstats/internal/services/memory"
	"github.com/fragworks/fragstats/pkg/logger"
	"github.com/fragworks/fragstats/pkg/metrics"
)

// Service implements the event-processing pipeline. Composite kill
// events run the in-process kill saga; simple events fan out to
// registered modules over the bus and travel through the broker to
// downstream consumers.
type Service struct {
	mu sync.RWMutex

	// Core components
	bus      *dispatch.Bus
	registry *dispatch.Registry
	killSaga *killsaga.Saga
	monitor  *saga.LogMonitor
	states   *state.Manager
	engine   *rating.Engine
	deduper  dedupe.Deduper
	store    repository.Store

	players  *memory.Players
	weapons  *memory.Weapons
	matches  *memory.Matches
	rankings *memory.Rankings

	publisher broker.Publisher
	consumer  broker.Consumer

	// Configuration
	game            string
	dedupeSize      int
	brokers         []string
	consumerGroup   string
	weaponModifiers map[string]float64
	modifierTTL     time.Duration
	stateMaxAge     time.Duration
	stateSweep      time.Duration

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithGame sets the game code used for weapon-modifier lookups.
func WithGame(game string) Option {
	return func(s *Service) {
		if game != "" {
			s.game = game
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithBrokers configures a kafka-backed broker. Without it the service
// runs on an in-process broker.
func WithBrokers(brokers []string, group string) Option {
	return func(s *Service) {
		s.brokers = brokers
		if group != "" {
			s.consumerGroup = group
		}
	}
}

// WithWeaponModifiers seeds the rating engine's static modifier table.
func WithWeaponModifiers(mods map[string]float64) Option {
	return func(s *Service) {
		s.weaponModifiers = mods
	}
}

// WithModifierTTL sets the weapon-modifier cache lifetime.
func WithModifierTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.modifierTTL = ttl
		}
	}
}

// WithStateMaxAge sets the inactivity threshold for server-state cleanup.
func WithStateMaxAge(age time.Duration) Option {
	return func(s *Service) {
		if age > 0 {
			s.stateMaxAge = age
		}
	}
}

// WithStateSweepInterval sets how often inactive server states are swept.
func WithStateSweepInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.stateSweep = interval
		}
	}
}

// WithPublisher injects a broker publisher, mainly for tests.
func WithPublisher(p broker.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithConsumer injects a broker consumer, mainly for tests.
func WithConsumer(c broker.Consumer) Option {
	return func(s *Service) {
		s.consumer = c
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		game:          "csgo",
		dedupeSize:    500000,
		consumerGroup: "fragstats-engine",
		modifierTTL:   5 * time.Minute,
		stateMaxAge:   state.DefaultMaxAge,
		stateSweep:    10 * time.Minute,
		stopCh:        make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting event engine...")

	s.store = repository.NewShardedStore()
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.engine = rating.NewEngine(
		rating.WithWeaponModifiers(s.weaponModifiers),
		rating.WithModifierTTL(s.modifierTTL),
	)
	s.states = state.NewManager()

	s.players = memory.NewPlayers()
	s.weapons = memory.NewWeapons()
	s.matches = memory.NewMatches()
	s.rankings = memory.NewRankings(s.store, s.engine, s.game)

	// A map change ends the current match; its tally resets with it.
	s.states.Subscribe(func(c state.Change) {
		if c.Type == state.ChangeMapChange {
			s.matches.ResetMatch(context.Background(), c.ServerID)
		}
	})

	s.monitor = saga.NewLogMonitor(logger.Named("saga"))
	s.killSaga = killsaga.New(s.players, s.weapons, s.matches, s.rankings,
		killsaga.WithMonitor(s.monitor),
	)

	s.bus = dispatch.NewBus()
	s.registry = dispatch.NewRegistry()
	s.registerModules()
	s.registry.BindTo(s.bus)

	if err := s.initBroker(); err != nil {
		return err
	}

	consumeCtx, cancel := context.WithCancel(context.Background())
	go func() {
		<-s.stopCh
		cancel()
	}()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.consumer.Run(consumeCtx, s.dispatchConsumed); err != nil && consumeCtx.Err() == nil {
			s.logger.Error(consumeCtx, "broker consumer stopped", logger.Error(err))
		}
	}()

	s.wg.Add(1)
	go s.sweepLoop()

	s.started = true
	s.logger.Info(ctx, "event engine started",
		logger.String("game", s.game),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("brokers", len(s.brokers)),
	)

	return nil
}

// initBroker wires kafka when brokers are configured and falls back to
// the in-process broker otherwise. Injected publisher/consumer win.
func (s *Service) initBroker() error {
	if s.publisher != nil && s.consumer != nil {
		return nil
	}

	if len(s.brokers) > 0 {
		if s.publisher == nil {
			p, err := broker.NewKafkaPublisher(s.brokers, nil)
			if err != nil {
				return fmt.Errorf("init kafka publisher: %w", err)
			}
			s.publisher = p
		}
		if s.consumer == nil {
			c, err := broker.NewKafkaConsumer(s.brokers, s.consumerGroup, nil)
			if err != nil {
				return fmt.Errorf("init kafka consumer: %w", err)
			}
			s.consumer = c
		}
		return nil
	}

	mem := broker.NewMemoryBroker()
	if s.publisher == nil {
		s.publisher = mem
	}
	if s.consumer == nil {
		s.consumer = mem
	}
	return nil
}

// registerModules builds the module table for simple events. Kill events
// are composite and never route through a module; they run the saga
// inside Process.
func (s *Service) registerModules() {
	s.registry.Register(dispatch.Module{
		Name:          "player_presence",
		HandledEvents: []event.Type{event.TypePlayerConnect, event.TypePlayerDisconnect},
		Handler: func(ctx context.Context, e event.Event) error {
			switch e.Type {
			case event.TypePlayerConnect:
				return s.players.HandleConnect(ctx, e.Connect.PlayerID)
			case event.TypePlayerDisconnect:
				return s.players.HandleDisconnect(ctx, e.Disconnect.PlayerID)
			}
			return nil
		},
	})

	s.registry.Register(dispatch.Module{
		Name:          "suicide_penalty",
		HandledEvents: []event.Type{event.TypePlayerSuicide},
		Handler: func(ctx context.Context, e event.Event) error {
			if err := s.players.HandleSuicide(ctx, e.Suicide.PlayerID); err != nil {
				return err
			}
			return s.rankings.HandleSuicide(ctx, e.Suicide.PlayerID)
		},
	})
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping event engine...")

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	if s.publisher != nil {
		_ = s.publisher.Close()
	}

	s.wg.Wait()

	// The memory broker serves as both publisher and consumer; avoid a
	// double close.
	if s.consumer != nil && any(s.consumer) != any(s.publisher) {
		_ = s.consumer.Close()
	}

	s.started = false
	s.logger.Info(context.Background(), "event engine stopped")
}

// SeenAndRecord atomically checks if an event id was seen and records it
// if not. Returns true if the event was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEventDuplicate()
	}
	return seen
}

// Unrecord removes an event ID from the seen list, allowing a retry.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Process runs one event through the full pipeline: validate, record
// state transitions, run the kill saga for kill events, fan out on the
// bus, and publish to the broker. The broker publish is fire-and-forget.
func (s *Service) Process(ctx context.Context, e event.Event) error {
	if err := e.Validate(); err != nil {
		metrics.RecordEventInvalid()
		return err
	}

	// Mark the id processed so the broker round trip of our own copy
	// dedupes away. The ingest path has usually recorded it already.
	s.deduper.SeenAndRecord(ctx, e.EventID)

	s.applyStateTransitions(ctx, e)

	if e.Type == event.TypePlayerKill {
		if err := s.killSaga.Handle(ctx, e); err != nil {
			return err
		}
	}

	s.bus.Emit(ctx, e)

	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn(ctx, "broker publish failed",
			logger.String("event_id", e.EventID),
			logger.Error(err))
	}

	metrics.RecordEventIngested(string(e.Type))
	return nil
}

// applyStateTransitions records the event's effect on the per-server
// state machine. Only lifecycle events mutate state.
func (s *Service) applyStateTransitions(ctx context.Context, e event.Event) {
	switch e.Type {
	case event.TypeMapChange:
		s.states.UpdateMap(ctx, e.ServerID, e.MapChange.NewMap)
	case event.TypeRoundStart:
		s.states.StartRound(ctx, e.ServerID)
		s.states.SetMatchState(ctx, e.ServerID, state.MatchActive)
	case event.TypeRoundEnd:
		s.states.EndRound(ctx, e.ServerID)
	case event.TypeTeamWin:
		s.states.SetWinningTeam(ctx, e.ServerID, e.TeamWin.Team)
	}
}

// dispatchConsumed handles events arriving from the broker. The origin
// instance already ran them through Process, so its own copies dedupe
// away; copies from other instances replay state transitions and fan
// out to modules. Kill events never replay: the saga belongs to the
// origin instance alone.
func (s *Service) dispatchConsumed(ctx context.Context, e event.Event) error {
	if e.Type == event.TypePlayerKill {
		return nil
	}
	if s.SeenAndRecord(ctx, e.EventID) {
		return nil
	}
	s.applyStateTransitions(ctx, e)
	s.bus.Emit(ctx, e)
	return nil
}

// sweepLoop periodically removes server states with no recent activity.
func (s *Service) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.stateSweep)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			removed := s.states.CleanupInactiveStates(context.Background(), s.stateMaxAge)
			if removed > 0 {
				s.logger.Info(context.Background(), "swept inactive server states",
					logger.Int("removed", removed))
			}
		}
	}
}

// TopN returns the top N leaderboard entries.
func (s *Service) TopN(ctx context.Context, n int) ([]repository.Entry, error) {
	return s.rankings.Leaderboard(ctx, n)
}

// Rating returns the effective skill rating for a player.
func (s *Service) Rating(ctx context.Context, playerID string) (rating.SkillRating, error) {
	return s.rankings.Rating(ctx, playerID)
}

// ServerState returns a copy of the tracked state for a server.
func (s *Service) ServerState(ctx context.Context, id string) state.ServerState {
	return s.states.GetServerState(ctx, id)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":    s.started,
		"game":       s.game,
		"dedupeSize": s.dedupeSize,
	}

	if s.started {
		active := s.states.GetActiveServers(ctx)
		stats["activeServers"] = len(active)
		stats["trackedPlayers"] = s.store.Count(ctx)
		stats["dedupeEntries"] = s.deduper.Size()
		stats["modules"] = s.registry.ModulesFor(event.TypePlayerConnect)

		snap := s.monitor.Snapshot()
		stats["sagasStarted"] = snap.Started
		stats["sagasCompleted"] = snap.Completed
		stats["sagasFailed"] = snap.Failed
		stats["stepsCompensated"] = snap.StepsCompensated

		metrics.UpdateServerStateCount(len(active))
	}

	return stats
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}
