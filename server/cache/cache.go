// Package cache provides the in-process TTL cache the processor uses to
// retain per-stream state: the most recent analysis result and running
// frame counters.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a TTL'd key-value store.
type Cache interface {
	Set(ctx context.Context, key string, value any) error
	SetWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (any, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Increment(ctx context.Context, key string) (int64, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Stats describes the cache's current occupancy.
type Stats struct {
	Items    int   `json:"items"`
	Expired  int   `json:"expired"`
	MaxSize  int   `json:"max_size"`
	Accesses int64 `json:"accesses"`
}
