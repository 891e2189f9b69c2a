package memory

import (
	"context"
	"sync"

	"github.com/fragworks/fragstats/internal/domain/rating"
	"github.com/fragworks/fragstats/internal/services"
	"github.com/fragworks/fragstats/pkg/logger"
)

var (
	_ services.WeaponService     = (*Weapons)(nil)
	_ services.WeaponCompensator = (*Weapons)(nil)
)

// WeaponStats is a per-weapon aggregate plus per-player kill attribution.
type WeaponStats struct {
	Kills     int
	Headshots int
	ByPlayer  map[string]int
}

// Weapons tracks usage keyed by normalized weapon code.
type Weapons struct {
	mu    sync.RWMutex
	stats map[string]*WeaponStats
	log   logger.Logger
}

// NewWeapons creates an empty weapon service.
func NewWeapons() *Weapons {
	return &Weapons{
		stats: make(map[string]*WeaponStats),
		log:   logger.Named("weapons"),
	}
}

func (w *Weapons) get(code string) *WeaponStats {
	s, ok := w.stats[code]
	if !ok {
		s = &WeaponStats{ByPlayer: make(map[string]int)}
		w.stats[code] = s
	}
	return s
}

// HandleWeaponEvent records a kill against the weapon used.
func (w *Weapons) HandleWeaponEvent(_ context.Context, ke services.KillEvent) error {
	code := rating.NormalizeWeapon(ke.Weapon)

	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.get(code)
	s.Kills++
	s.ByPlayer[ke.KillerID]++
	if ke.Headshot {
		s.Headshots++
	}
	return nil
}

// CompensateWeaponEvent reverses one recorded kill for the weapon/player
// pair. Headshot attribution is unknown at compensation time and is left
// as-is.
func (w *Weapons) CompensateWeaponEvent(ctx context.Context, weaponCode, playerID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.stats[weaponCode]
	if !ok {
		return nil
	}
	if s.Kills > 0 {
		s.Kills--
	}
	if s.ByPlayer[playerID] > 0 {
		s.ByPlayer[playerID]--
	}
	w.log.Debug(ctx, "compensated weapon kill",
		logger.String("weapon", weaponCode),
		logger.String("player_id", playerID))
	return nil
}

// Stats returns a copy of the tally for a weapon code.
func (w *Weapons) Stats(code string) (WeaponStats, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s, ok := w.stats[code]
	if !ok {
		return WeaponStats{}, false
	}
	out := WeaponStats{Kills: s.Kills, Headshots: s.Headshots, ByPlayer: make(map[string]int, len(s.ByPlayer))}
	for k, v := range s.ByPlayer {
		out.ByPlayer[k] = v
	}
	return out, true
}
