// Package cache provides byte-oriented caches for registry responses.
//
// # Backends
//
//   - [FileCache]: one JSON envelope per key under a directory (CLI default)
//   - [RedisCache]: a shared Redis instance, selected with cache.redis_url
//   - [NullCache]: stores nothing (--no-cache)
//
// All backends satisfy [Cache]. Keys are opaque strings; callers namespace
// them (e.g. "registry:_/sqlite").
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values with an optional time-to-live.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value for key. A miss is reported as (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of 0 means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}
