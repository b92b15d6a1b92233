package cache

import (
	"context"
	"sync"
	"time"

	"github.com/bricksync/backend/internal/domain/shared"
)

// InMemoryIdempotencyStore keeps dedupe marks in a process-local map. Fine
// for a single instance or tests; a multi-instance deployment needs the Redis
// store, since each process would otherwise have its own replay window.
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	marks     map[string]time.Time
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)

// NewInMemoryIdempotencyStore creates a store with a background sweeper that
// drops expired marks
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		marks: make(map[string]time.Time),
		stop:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweepLoop()
	return s
}

// MarkProcessed claims the key for the TTL. Returns false when an unexpired
// mark already holds it.
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiresAt, ok := s.marks[key]; ok && time.Now().Before(expiresAt) {
		return false, nil
	}
	s.marks[key] = time.Now().Add(ttl)
	return true, nil
}

// IsProcessed reports whether the key holds an unexpired mark
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiresAt, ok := s.marks[key]
	return ok && time.Now().Before(expiresAt), nil
}

// Close stops the sweeper. Safe to call more than once.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *InMemoryIdempotencyStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, expiresAt := range s.marks {
		if now.After(expiresAt) {
			delete(s.marks, key)
		}
	}
}
