package cache

import (
	"context"
	"time"
)

// Store is the shared cache interface used for rate limiting counters and
// ranking snapshots. Values are opaque strings; callers own serialization.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
