// Package cache provides a small key/value cache with per-entry TTLs.
//
// Two backends implement Cache: an in-process map (Memory) for single-node
// deployments and tests, and Redis for anything shared between instances.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache stores opaque byte values.
type Cache interface {
	// Get returns ErrCacheMiss if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value. A zero ttl means the entry never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
