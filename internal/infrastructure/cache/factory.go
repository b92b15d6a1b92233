package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bricksync/backend/internal/domain/shared"
	"github.com/bricksync/backend/internal/infrastructure/config"
)

// IdempotencyStoreFactory picks the dedupe store for the deployment: Redis
// when reachable, in-memory otherwise
type IdempotencyStoreFactory struct {
	redisConfig   config.RedisConfig
	logger        *zap.Logger
	allowFallback bool
}

// IdempotencyStoreFactoryOption configures the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the factory logger
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the
// in-memory store. Defaults to true; multi-instance deployments should turn
// it off, a local replay window silently admits cross-instance duplicates.
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.allowFallback = allow
	}
}

// NewIdempotencyStoreFactory creates a factory for the given Redis settings
func NewIdempotencyStoreFactory(cfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		redisConfig:   cfg,
		logger:        zap.NewNop(),
		allowFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore dials Redis and returns a shared store, or the in-memory store
// when Redis is unreachable and fallback is allowed
func (f *IdempotencyStoreFactory) CreateStore() (shared.IdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", f.redisConfig.Host, f.redisConfig.Port),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		if !f.allowFallback {
			return nil, fmt.Errorf("cache: Redis required for webhook dedupe but unreachable: %w", err)
		}
		f.logger.Warn("Redis unreachable, webhook dedupe degrades to in-memory store",
			zap.Error(err),
		)
		return NewInMemoryIdempotencyStore(), nil
	}

	f.logger.Info("Using Redis webhook dedupe store")
	return NewRedisIdempotencyStoreWithClient(client, ""), nil
}
