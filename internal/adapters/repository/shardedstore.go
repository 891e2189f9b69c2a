// Package repository defines the rating store interface and errors.
package repository

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/fragworks/fragstats/internal/domain/rating"
)

// defaultShardCount balances lock contention against memory overhead for
// the expected population of a busy server cluster.
const defaultShardCount = 32

// ShardedStore is an in-memory Store partitioned by player ID so that
// concurrent rating writes for different players rarely contend.
//
// Ordering for TopN: rating DESC, then playerID ASC (deterministic).
type ShardedStore struct {
	shards []*shard
}

type shard struct {
	mu      sync.RWMutex
	records map[string]rating.SkillRating
}

// NewShardedStore creates an empty sharded rating store.
func NewShardedStore(opts ...Option) *ShardedStore {
	s := &ShardedStore{}
	cfg := options{shardCount: defaultShardCount}
	for _, opt := range opts {
		opt(&cfg)
	}
	s.shards = make([]*shard, cfg.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{records: make(map[string]rating.SkillRating)}
	}
	return s
}

func (s *ShardedStore) shardFor(playerID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(playerID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Get returns the stored rating for a player.
func (s *ShardedStore) Get(_ context.Context, playerID string) (rating.SkillRating, error) {
	sh := s.shardFor(playerID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	r, ok := sh.records[playerID]
	if !ok {
		return rating.SkillRating{}, ErrNotFound
	}
	return r, nil
}

// Put stores a player's rating, replacing any existing record.
func (s *ShardedStore) Put(_ context.Context, r rating.SkillRating) error {
	sh := s.shardFor(r.PlayerID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.records[r.PlayerID] = r
	return nil
}

// TopN returns the top-N entries ordered by rating desc. The sort happens
// on read; writes stay O(1) so the hot kill path never pays for ordering.
func (s *ShardedStore) TopN(_ context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, ErrInvalidLimit
	}
	var all []rating.SkillRating
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, r := range sh.records {
			all = append(all, r)
		}
		sh.mu.RUnlock()
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Rating != all[j].Rating {
			return all[i].Rating > all[j].Rating
		}
		return all[i].PlayerID < all[j].PlayerID
	})
	if n > len(all) {
		n = len(all)
	}
	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Entry{
			Rank:        i + 1,
			PlayerID:    all[i].PlayerID,
			Rating:      all[i].Rating,
			GamesPlayed: all[i].GamesPlayed,
		})
	}
	return out, nil
}

// Count returns the number of players tracked.
func (s *ShardedStore) Count(_ context.Context) int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.records)
		sh.mu.RUnlock()
	}
	return total
}
