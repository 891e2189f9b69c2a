// Package memory provides in-memory implementations of the business
// services. They back single-process deployments, the load generator,
// and tests; a persistent deployment swaps them for database-backed
// services behind the same contracts.
package memory

import (
	"context"
	"sync"

	"github.com/fragworks/fragstats/internal/services"
	"github.com/fragworks/fragstats/pkg/logger"
)

var (
	_ services.PlayerService     = (*Players)(nil)
	_ services.PlayerCompensator = (*Players)(nil)
)

// PlayerStats is the per-player tally kept by Players.
type PlayerStats struct {
	Kills     int
	Deaths    int
	Headshots int
	TeamKills int
	Suicides  int
	Connects  int
	Online    bool
}

// Players tracks per-player statistics.
type Players struct {
	mu    sync.RWMutex
	stats map[string]*PlayerStats
	log   logger.Logger
}

// NewPlayers creates an empty player service.
func NewPlayers() *Players {
	return &Players{
		stats: make(map[string]*PlayerStats),
		log:   logger.Named("players"),
	}
}

func (p *Players) get(playerID string) *PlayerStats {
	s, ok := p.stats[playerID]
	if !ok {
		s = &PlayerStats{}
		p.stats[playerID] = s
	}
	return s
}

// HandleKillEvent records a kill for the killer and a death for the victim.
func (p *Players) HandleKillEvent(_ context.Context, ke services.KillEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	killer := p.get(ke.KillerID)
	victim := p.get(ke.VictimID)
	victim.Deaths++
	if ke.KillerTeam != "" && ke.KillerTeam == ke.VictimTeam {
		killer.TeamKills++
		return nil
	}
	killer.Kills++
	if ke.Headshot {
		killer.Headshots++
	}
	return nil
}

// CompensateKillEvent reverses the most recent kill between the pair.
// Headshot and team attribution are unknown at compensation time, so only
// the kill/death counters roll back.
func (p *Players) CompensateKillEvent(ctx context.Context, killerID, victimID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if killer, ok := p.stats[killerID]; ok && killer.Kills > 0 {
		killer.Kills--
	}
	if victim, ok := p.stats[victimID]; ok && victim.Deaths > 0 {
		victim.Deaths--
	}
	p.log.Debug(ctx, "compensated kill",
		logger.String("killer_id", killerID),
		logger.String("victim_id", victimID))
	return nil
}

// HandleSuicide records a suicide as a death.
func (p *Players) HandleSuicide(_ context.Context, playerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.get(playerID)
	s.Suicides++
	s.Deaths++
	return nil
}

// HandleConnect marks a player online.
func (p *Players) HandleConnect(_ context.Context, playerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.get(playerID)
	s.Connects++
	s.Online = true
	return nil
}

// HandleDisconnect marks a player offline.
func (p *Players) HandleDisconnect(_ context.Context, playerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.get(playerID).Online = false
	return nil
}

// Stats returns a copy of the tally for a player.
func (p *Players) Stats(playerID string) (PlayerStats, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.stats[playerID]
	if !ok {
		return PlayerStats{}, false
	}
	return *s, true
}
