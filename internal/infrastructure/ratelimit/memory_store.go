package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bricksync/backend/internal/domain/marketplace"
)

// InMemoryRateLimitStore implements RateLimitStore with a mutex-guarded map.
// Suitable for single-instance deployments and testing. Mutations serialize
// on the store lock, which satisfies the port's linearization requirement.
type InMemoryRateLimitStore struct {
	mu     sync.Mutex
	states map[string]*marketplace.RateLimitState
}

var _ marketplace.RateLimitStore = (*InMemoryRateLimitStore)(nil)

// NewInMemoryRateLimitStore creates an empty in-memory store
func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{
		states: make(map[string]*marketplace.RateLimitState),
	}
}

func stateKey(tenantID uuid.UUID, provider marketplace.ProviderCode) string {
	return tenantID.String() + ":" + provider.String()
}

// Update loads, mutates and persists the state under the store lock
func (s *InMemoryRateLimitStore) Update(_ context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode, quota marketplace.Quota, fn func(*marketplace.RateLimitState) error) (*marketplace.RateLimitState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stateKey(tenantID, provider)
	state, ok := s.states[key]
	if !ok {
		state = marketplace.NewRateLimitState(tenantID, provider, quota, time.Now())
	}

	// Mutate a copy so a failing fn leaves the stored state untouched.
	working := *state
	if err := fn(&working); err != nil {
		return nil, err
	}
	s.states[key] = &working

	snapshot := working
	return &snapshot, nil
}

// Get returns a copy of the current state, nil when absent
func (s *InMemoryRateLimitStore) Get(_ context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode) (*marketplace.RateLimitState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[stateKey(tenantID, provider)]
	if !ok {
		return nil, nil
	}
	snapshot := *state
	return &snapshot, nil
}
