// Package state tracks per-server round/map state and notifies listeners
// of transitions. The manager is the sole owner and mutator of the state
// records; callers only ever see copies.
package state

import (
	"context"
	"sync"
	"time"

	"github.com/fragworks/fragstats/pkg/logger"
	"github.com/fragworks/fragstats/pkg/metrics"
)

// DefaultMaxAge is the inactivity threshold for the cleanup sweep.
const DefaultMaxAge = 60 * time.Minute

// MatchState enumerates the per-server match lifecycle.
type MatchState string

const (
	MatchWaiting MatchState = "waiting"
	MatchActive  MatchState = "active"
	MatchEnded   MatchState = "ended"
)

// TeamCounts holds player counts per side.
type TeamCounts struct {
	Terrorists        int
	CounterTerrorists int
	Spectators        int
}

// ServerState is the per-server record. Zero value semantics: empty map,
// round 0, waiting.
type ServerState struct {
	ServerID        string
	CurrentMap      string
	CurrentRound    int
	MatchState      MatchState
	LastWinningTeam string
	Teams           TeamCounts
	MaxPlayers      int
	RoundStartedAt  time.Time
	LastActivity    time.Time
}

// ChangeType enumerates state transitions surfaced to listeners.
type ChangeType string

const (
	ChangeMapChange   ChangeType = "map_change"
	ChangeRoundStart  ChangeType = "round_start"
	ChangeRoundEnd    ChangeType = "round_end"
	ChangeTeamWin     ChangeType = "team_win"
	ChangePlayerCount ChangeType = "player_count"
)

// Snapshot is the partial before/after view carried by a Change.
type Snapshot struct {
	Map         string
	Round       int
	WinningTeam string
	Teams       TeamCounts
}

// Change describes one transition. Fire-and-forget; consumed by zero or
// more listeners.
type Change struct {
	ServerID  string
	Type      ChangeType
	Before    Snapshot
	After     Snapshot
	Timestamp time.Time
}

// Listener receives state changes. A panicking listener is isolated and
// does not block its siblings.
type Listener func(Change)

// PartialCounts updates only the provided team counts.
type PartialCounts struct {
	Terrorists        *int
	CounterTerrorists *int
	Spectators        *int
}

// Manager owns the per-server state arena. Safe for concurrent callers.
type Manager struct {
	mu        sync.Mutex
	states    map[string]*ServerState
	listeners map[int]Listener
	nextID    int
	now       func() time.Time
	logger    logger.Logger
}

// NewManager creates a state manager with configuration options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		states:    make(map[string]*ServerState),
		listeners: make(map[int]Listener),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = logger.Get().Named("state")
	}

	return m
}

// get returns the record for id, creating it lazily. Caller holds mu.
func (m *Manager) get(ctx context.Context, id string) *ServerState {
	s, ok := m.states[id]
	if !ok {
		s = &ServerState{
			ServerID:     id,
			MatchState:   MatchWaiting,
			LastActivity: m.now(),
		}
		m.states[id] = s
		m.logger.Info(ctx, "tracking new server", logger.String("server_id", id))
		metrics.UpdateServerStateCount(len(m.states))
	}
	return s
}

func snapshotOf(s *ServerState) Snapshot {
	return Snapshot{
		Map:         s.CurrentMap,
		Round:       s.CurrentRound,
		WinningTeam: s.LastWinningTeam,
		Teams:       s.Teams,
	}
}

// GetServerState creates-or-returns the state for id.
func (m *Manager) GetServerState(ctx context.Context, id string) ServerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.get(ctx, id)
}

// UpdateMap switches the server to newMap. A no-op when the map is
// unchanged; otherwise the round counter resets to 0 and a map_change
// notification is emitted. Returns the previous map.
func (m *Manager) UpdateMap(ctx context.Context, id, newMap string) (previous string, changed bool) {
	m.mu.Lock()
	s := m.get(ctx, id)
	previous = s.CurrentMap
	if previous == newMap {
		m.mu.Unlock()
		return previous, false
	}
	before := snapshotOf(s)
	s.CurrentMap = newMap
	s.CurrentRound = 0
	s.LastActivity = m.now()
	after := snapshotOf(s)
	m.mu.Unlock()

	m.notify(ctx, Change{ServerID: id, Type: ChangeMapChange, Before: before, After: after, Timestamp: m.now()})
	return previous, true
}

// StartRound increments the round counter, stamps the round start time,
// and clears the last winning team.
func (m *Manager) StartRound(ctx context.Context, id string) int {
	m.mu.Lock()
	s := m.get(ctx, id)
	before := snapshotOf(s)
	s.CurrentRound++
	s.RoundStartedAt = m.now()
	s.LastWinningTeam = ""
	s.LastActivity = m.now()
	round := s.CurrentRound
	after := snapshotOf(s)
	m.mu.Unlock()

	m.notify(ctx, Change{ServerID: id, Type: ChangeRoundStart, Before: before, After: after, Timestamp: m.now()})
	return round
}

// EndRound emits a round_end notification carrying the current round and
// last winning team without mutating round state.
func (m *Manager) EndRound(ctx context.Context, id string) {
	m.mu.Lock()
	s := m.get(ctx, id)
	s.LastActivity = m.now()
	snap := snapshotOf(s)
	m.mu.Unlock()

	m.notify(ctx, Change{ServerID: id, Type: ChangeRoundEnd, Before: snap, After: snap, Timestamp: m.now()})
}

// SetWinningTeam records the round winner.
func (m *Manager) SetWinningTeam(ctx context.Context, id, team string) {
	m.mu.Lock()
	s := m.get(ctx, id)
	before := snapshotOf(s)
	s.LastWinningTeam = team
	s.LastActivity = m.now()
	after := snapshotOf(s)
	m.mu.Unlock()

	m.notify(ctx, Change{ServerID: id, Type: ChangeTeamWin, Before: before, After: after, Timestamp: m.now()})
}

// UpdatePlayerCounts applies a partial team count update; only provided
// fields change.
func (m *Manager) UpdatePlayerCounts(ctx context.Context, id string, counts PartialCounts) {
	m.mu.Lock()
	s := m.get(ctx, id)
	before := snapshotOf(s)
	if counts.Terrorists != nil {
		s.Teams.Terrorists = *counts.Terrorists
	}
	if counts.CounterTerrorists != nil {
		s.Teams.CounterTerrorists = *counts.CounterTerrorists
	}
	if counts.Spectators != nil {
		s.Teams.Spectators = *counts.Spectators
	}
	s.LastActivity = m.now()
	after := snapshotOf(s)
	m.mu.Unlock()

	m.notify(ctx, Change{ServerID: id, Type: ChangePlayerCount, Before: before, After: after, Timestamp: m.now()})
}

// SetMaxPlayers records the server's player capacity. No notification.
func (m *Manager) SetMaxPlayers(ctx context.Context, id string, max int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(ctx, id)
	s.MaxPlayers = max
	s.LastActivity = m.now()
}

// SetMatchState moves the match lifecycle. No notification.
func (m *Manager) SetMatchState(ctx context.Context, id string, ms MatchState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(ctx, id)
	s.MatchState = ms
	s.LastActivity = m.now()
}

// RemoveServer drops the state for id explicitly.
func (m *Manager) RemoveServer(ctx context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	metrics.UpdateServerStateCount(len(m.states))
}

// GetActiveServers lists the currently tracked server ids.
func (m *Manager) GetActiveServers(ctx context.Context) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.states))
	for id := range m.states {
		ids = append(ids, id)
	}
	return ids
}

// CleanupInactiveStates removes servers whose last activity predates the
// cutoff and returns the number removed.
func (m *Manager) CleanupInactiveStates(ctx context.Context, maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	removed := 0
	for id, s := range m.states {
		if s.LastActivity.Before(cutoff) {
			delete(m.states, id)
			removed++
		}
	}
	count := len(m.states)
	m.mu.Unlock()

	if removed > 0 {
		m.logger.Info(ctx, "removed inactive server states", logger.Int("removed", removed))
		metrics.RecordStatesCleaned(removed)
		metrics.UpdateServerStateCount(count)
	}
	return removed
}

// Subscribe registers a change listener and returns an unsubscribe func.
func (m *Manager) Subscribe(l Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// notify delivers a change to every listener, isolating panics so one
// failing listener cannot block the rest.
func (m *Manager) notify(ctx context.Context, c Change) {
	m.mu.Lock()
	ls := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		ls = append(ls, l)
	}
	m.mu.Unlock()

	metrics.RecordStateChange(string(c.Type))
	for _, l := range ls {
		m.invoke(ctx, l, c)
	}
}

func (m *Manager) invoke(ctx context.Context, l Listener, c Change) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordStateListenerError()
			m.logger.Error(ctx, "state listener panicked",
				logger.String("server_id", c.ServerID),
				logger.String("change_type", string(c.Type)),
				logger.Any("panic", r),
			)
		}
	}()
	l(c)
}
