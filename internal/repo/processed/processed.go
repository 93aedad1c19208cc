// Package processed remembers which gateway notifications were already
// reconciled so redeliveries can be acknowledged without another status query.
package processed

import (
	"context"
	"sync"
	"time"
)

type Store interface {
	// MarkProcessed records key for ttl. Marking twice is harmless.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) error
	// IsProcessed reports whether key was marked and has not expired.
	IsProcessed(ctx context.Context, key string) (bool, error)
}

type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]time.Time // key -> expiresAt
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupExpiredLocked()
	s.keys[key] = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.keys[key]
	if !ok {
		return false, nil
	}
	if s.now().After(expiresAt) {
		delete(s.keys, key)
		return false, nil
	}
	return true, nil
}

// cleanupExpiredLocked must be called with mu held.
func (s *MemoryStore) cleanupExpiredLocked() {
	now := s.now()
	for key, expiresAt := range s.keys {
		if now.After(expiresAt) {
			delete(s.keys, key)
		}
	}
}
