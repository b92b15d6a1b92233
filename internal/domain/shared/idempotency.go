package shared

import (
	"context"
	"time"
)

// IdempotencyStore is the dedupe fast path for webhook deliveries. A key is
// marked with a TTL covering the replay window; within that window a second
// delivery of the same key is acknowledged without reprocessing. The store
// is advisory: the unique index on the notification table stays
// authoritative when the store is unavailable or the TTL has lapsed.
type IdempotencyStore interface {
	// MarkProcessed records the key. It returns true when the key was newly
	// marked and false when a previous delivery already claimed it.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether the key is currently marked.
	IsProcessed(ctx context.Context, key string) (bool, error)

	Close() error
}
