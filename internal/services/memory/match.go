package memory

import (
	"context"
	"sync"

	"github.com/fragworks/fragstats/internal/services"
	"github.com/fragworks/fragstats/pkg/logger"
)

var (
	_ services.MatchService     = (*Matches)(nil)
	_ services.MatchCompensator = (*Matches)(nil)
)

// MatchTally is the running kill tally for one server's current match.
type MatchTally struct {
	Kills    int
	ByPlayer map[string]int
}

// Matches tracks per-server match tallies.
type Matches struct {
	mu      sync.RWMutex
	tallies map[string]*MatchTally
	log     logger.Logger
}

// NewMatches creates an empty match service.
func NewMatches() *Matches {
	return &Matches{
		tallies: make(map[string]*MatchTally),
		log:     logger.Named("matches"),
	}
}

func (m *Matches) get(serverID string) *MatchTally {
	t, ok := m.tallies[serverID]
	if !ok {
		t = &MatchTally{ByPlayer: make(map[string]int)}
		m.tallies[serverID] = t
	}
	return t
}

// HandleKillInMatch records a kill in the server's current match.
func (m *Matches) HandleKillInMatch(_ context.Context, serverID, killerID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.get(serverID)
	t.Kills++
	t.ByPlayer[killerID]++
	return nil
}

// CompensateKillInMatch reverses one recorded match kill.
func (m *Matches) CompensateKillInMatch(ctx context.Context, serverID, killerID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tallies[serverID]
	if !ok {
		return nil
	}
	if t.Kills > 0 {
		t.Kills--
	}
	if t.ByPlayer[killerID] > 0 {
		t.ByPlayer[killerID]--
	}
	m.log.Debug(ctx, "compensated match kill",
		logger.String("server_id", serverID),
		logger.String("killer_id", killerID))
	return nil
}

// ResetMatch clears the tally for a server, used on map change.
func (m *Matches) ResetMatch(_ context.Context, serverID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.tallies, serverID)
}

// Tally returns a copy of the server's match tally.
func (m *Matches) Tally(serverID string) (MatchTally, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tallies[serverID]
	if !ok {
		return MatchTally{}, false
	}
	out := MatchTally{Kills: t.Kills, ByPlayer: make(map[string]int, len(t.ByPlayer))}
	for k, v := range t.ByPlayer {
		out.ByPlayer[k] = v
	}
	return out, true
}
