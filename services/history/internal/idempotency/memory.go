package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

func newMemoryStore(ttl time.Duration) *memoryStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &memoryStore{seen: make(map[string]time.Time), ttl: ttl}
}

func (s *memoryStore) Check(_ context.Context, eventID string) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expires, ok := s.seen[eventID]; ok && now.Before(expires) {
		return true, nil
	}
	// Opportunistic cleanup keeps the map from growing without bound.
	for id, expires := range s.seen {
		if now.After(expires) {
			delete(s.seen, id)
		}
	}
	s.seen[eventID] = now.Add(s.ttl)
	return false, nil
}

func (s *memoryStore) Close() {}
