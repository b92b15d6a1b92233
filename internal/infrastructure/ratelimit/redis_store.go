package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bricksync/backend/internal/domain/marketplace"
)

// casRetries bounds optimistic concurrency retries on a contended key
const casRetries = 16

// RedisRateLimitStore implements RateLimitStore on Redis. Mutations run
// under WATCH/MULTI so two callers racing on the same (tenant, provider)
// key serialize: the loser's transaction fails and retries on fresh state.
// Suitable for distributed deployments where multiple instances share
// admission state.
type RedisRateLimitStore struct {
	client    *redis.Client
	keyPrefix string
}

var _ marketplace.RateLimitStore = (*RedisRateLimitStore)(nil)

// NewRedisRateLimitStore creates a store with an existing Redis client
func NewRedisRateLimitStore(client *redis.Client, keyPrefix string) *RedisRateLimitStore {
	if keyPrefix == "" {
		keyPrefix = "marketplace:ratelimit:"
	}
	return &RedisRateLimitStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// key builds the Redis key for a (tenant, provider) pair
func (s *RedisRateLimitStore) key(tenantID uuid.UUID, provider marketplace.ProviderCode) string {
	return s.keyPrefix + tenantID.String() + ":" + provider.String()
}

// Update loads, mutates and persists the state atomically. The key is
// watched for the whole load-mutate-store cycle; a concurrent write fails
// the transaction and the cycle retries on the fresh value.
func (s *RedisRateLimitStore) Update(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode, quota marketplace.Quota, fn func(*marketplace.RateLimitState) error) (*marketplace.RateLimitState, error) {
	key := s.key(tenantID, provider)

	var snapshot *marketplace.RateLimitState
	txn := func(tx *redis.Tx) error {
		state, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		if state == nil {
			state = marketplace.NewRateLimitState(tenantID, provider, quota, time.Now())
		}

		if err := fn(state); err != nil {
			return err
		}

		encoded, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("failed to encode rate limit state: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, stateTTL(state))
			return nil
		})
		if err != nil {
			return err
		}
		snapshot = state
		return nil
	}

	for i := 0; i < casRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return snapshot, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, fmt.Errorf("failed to update rate limit state: %w", err)
		}
	}
	return nil, fmt.Errorf("rate limit state update for %s contended beyond %d retries", key, casRetries)
}

// Get returns the current state without mutating it
func (s *RedisRateLimitStore) Get(ctx context.Context, tenantID uuid.UUID, provider marketplace.ProviderCode) (*marketplace.RateLimitState, error) {
	return s.load(ctx, s.client, s.key(tenantID, provider))
}

// load reads and decodes the state at key, nil when absent
func (s *RedisRateLimitStore) load(ctx context.Context, c redis.Cmdable, key string) (*marketplace.RateLimitState, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rate limit state: %w", err)
	}

	var state marketplace.RateLimitState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode rate limit state: %w", err)
	}
	return &state, nil
}

// stateTTL keeps keys alive long enough to outlive both the quota window
// and an open breaker, with headroom for clock drift
func stateTTL(state *marketplace.RateLimitState) time.Duration {
	ttl := 2 * state.WindowDuration
	if ttl < 2*marketplace.BreakerCooldown {
		ttl = 2 * marketplace.BreakerCooldown
	}
	return ttl
}
