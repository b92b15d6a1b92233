package auth

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist revokes session tokens before their natural expiry. Two
// granularities: a single token by JTI (one dashboard session logged out),
// or every token a user holds (password change, suspected credential leak).
type TokenBlacklist interface {
	// Revoke blacklists one token by JTI. The TTL should be the token's
	// remaining lifetime, after which the entry is pointless anyway.
	Revoke(ctx context.Context, jti string, ttl time.Duration) error

	// IsRevoked reports whether a JTI has been revoked
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// RevokeUser invalidates every token the user currently holds by
	// recording a cutoff timestamp
	RevokeUser(ctx context.Context, userID string, ttl time.Duration) error

	// IsUserRevokedSince reports whether a token issued at the given time
	// falls before the user's revocation cutoff
	IsUserRevokedSince(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
}

// revokedKeyPrefix namespaces revocation entries in the shared Redis used
// for idempotency and rate limiting
const revokedKeyPrefix = "bricksync:auth:revoked:"

// RedisTokenBlacklist is the production blacklist, shared across server
// replicas through Redis
type RedisTokenBlacklist struct {
	client *redis.Client
}

// NewRedisTokenBlacklistWithClient wraps an existing Redis client
func NewRedisTokenBlacklistWithClient(client *redis.Client) *RedisTokenBlacklist {
	return &RedisTokenBlacklist{client: client}
}

func jtiKey(jti string) string {
	return revokedKeyPrefix + "jti:" + jti
}

func userKey(userID string) string {
	return revokedKeyPrefix + "user:" + userID
}

// Revoke blacklists one token by JTI
func (b *RedisTokenBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := b.client.Set(ctx, jtiKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("auth: failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether a JTI has been revoked
func (b *RedisTokenBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := b.client.Exists(ctx, jtiKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("auth: failed to check token revocation: %w", err)
	}
	return exists > 0, nil
}

// RevokeUser records now as the user's revocation cutoff
func (b *RedisTokenBlacklist) RevokeUser(ctx context.Context, userID string, ttl time.Duration) error {
	cutoff := time.Now().Unix()
	if err := b.client.Set(ctx, userKey(userID), cutoff, ttl).Err(); err != nil {
		return fmt.Errorf("auth: failed to revoke user tokens: %w", err)
	}
	return nil
}

// IsUserRevokedSince compares the token's issue time against the cutoff
func (b *RedisTokenBlacklist) IsUserRevokedSince(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	raw, err := b.client.Get(ctx, userKey(userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("auth: failed to check user revocation: %w", err)
	}

	cutoff, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("auth: malformed revocation cutoff %q: %w", raw, err)
	}
	return issuedAt.Unix() <= cutoff, nil
}

// Close closes the underlying Redis client
func (b *RedisTokenBlacklist) Close() error {
	return b.client.Close()
}

var _ TokenBlacklist = (*RedisTokenBlacklist)(nil)

// InMemoryTokenBlacklist backs single-instance deployments that run without
// Redis, and the tests. Entries are not shared across replicas.
type InMemoryTokenBlacklist struct {
	mu          sync.RWMutex
	revokedJTIs map[string]time.Time // JTI -> entry expiry
	userCutoffs map[string]time.Time // userID -> revocation cutoff
}

// NewInMemoryTokenBlacklist creates an empty in-process blacklist
func NewInMemoryTokenBlacklist() *InMemoryTokenBlacklist {
	return &InMemoryTokenBlacklist{
		revokedJTIs: make(map[string]time.Time),
		userCutoffs: make(map[string]time.Time),
	}
}

// Revoke blacklists one token by JTI
func (b *InMemoryTokenBlacklist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revokedJTIs[jti] = time.Now().Add(ttl)
	return nil
}

// IsRevoked reports whether a JTI is revoked, expiring stale entries lazily
func (b *InMemoryTokenBlacklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	expiry, exists := b.revokedJTIs[jti]
	if !exists {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(b.revokedJTIs, jti)
		return false, nil
	}
	return true, nil
}

// RevokeUser records now as the user's revocation cutoff
func (b *InMemoryTokenBlacklist) RevokeUser(_ context.Context, userID string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.userCutoffs[userID] = time.Now()
	return nil
}

// IsUserRevokedSince compares the token's issue time against the cutoff
func (b *InMemoryTokenBlacklist) IsUserRevokedSince(_ context.Context, userID string, issuedAt time.Time) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cutoff, exists := b.userCutoffs[userID]
	if !exists {
		return false, nil
	}
	// Nanosecond precision here, the in-memory path never round-trips
	// through a string timestamp
	return issuedAt.UnixNano() <= cutoff.UnixNano(), nil
}

var _ TokenBlacklist = (*InMemoryTokenBlacklist)(nil)
