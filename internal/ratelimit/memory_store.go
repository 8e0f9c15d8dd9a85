package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smallbiznis/givebox/internal/clock"
)

const defaultPruneEvery = time.Minute

// MemoryStore keeps a timestamp log per key in process memory. Counters are
// not shared between instances.
type MemoryStore struct {
	clock clock.Clock

	mu         sync.Mutex
	hits       map[string][]time.Time
	windows    map[string]time.Duration
	lastPrune  time.Time
	pruneEvery time.Duration
}

func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.System()
	}
	return &MemoryStore{
		clock:      c,
		hits:       map[string][]time.Time{},
		windows:    map[string]time.Duration{},
		lastPrune:  c.Now(),
		pruneEvery: defaultPruneEvery,
	}
}

func (s *MemoryStore) Check(_ context.Context, key string, window time.Duration, limit int) (Result, error) {
	if key == "" {
		return Result{}, errors.New("rate limit key is empty")
	}
	if window <= 0 || limit <= 0 {
		return Result{}, errors.New("rate limit window and limit must be positive")
	}

	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastPrune) >= s.pruneEvery {
		s.prune(now)
	}

	hits := trim(s.hits[key], now.Add(-window))
	allowed := len(hits) < limit
	if allowed {
		hits = append(hits, now)
	}
	s.hits[key] = hits
	s.windows[key] = window

	resetAt := now.Add(window)
	if len(hits) > 0 {
		resetAt = hits[0].Add(window)
	}
	return Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(limit-len(hits), 0),
		ResetAt:   resetAt,
	}, nil
}

// Len reports how many keys are tracked.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hits)
}

func (s *MemoryStore) prune(now time.Time) {
	for key, hits := range s.hits {
		remaining := trim(hits, now.Add(-s.windows[key]))
		if len(remaining) == 0 {
			delete(s.hits, key)
			delete(s.windows, key)
			continue
		}
		s.hits[key] = remaining
	}
	s.lastPrune = now
}

// trim drops timestamps at or before cutoff. hits is sorted ascending.
func trim(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0:0], hits[i:]...)
}
