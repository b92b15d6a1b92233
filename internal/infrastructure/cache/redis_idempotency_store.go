package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bricksync/backend/internal/domain/shared"
)

// dedupeKeyPrefix namespaces webhook dedupe marks so they never collide with
// the auth revocation keys or the outbound limiter counters on a shared Redis
const dedupeKeyPrefix = "bricksync:webhook:dedupe:"

// RedisIdempotencyStore keeps dedupe marks in Redis so every instance behind
// the load balancer sees the same replay window
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)

// NewRedisIdempotencyStoreWithClient wraps an existing Redis client. An empty
// keyPrefix selects the default namespace.
func NewRedisIdempotencyStoreWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = dedupeKeyPrefix
	}
	return &RedisIdempotencyStore{client: client, keyPrefix: keyPrefix}
}

// MarkProcessed claims the key atomically via SETNX. Concurrent deliveries of
// the same webhook race here and exactly one wins.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	claimed, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache: failed to mark key as processed: %w", err)
	}
	return claimed, nil
}

// IsProcessed reports whether the key is still inside its replay window
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("cache: failed to check key: %w", err)
	}
	return exists > 0, nil
}

// Close releases the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}
