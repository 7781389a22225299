// Package cache stores registry metadata between pmux invocations.
//
// Three backends implement [Cache]: [FileCache] (the default, under the pmux
// home directory), [RedisCache] (shared across machines, e.g. CI runners) and
// [NullCache] (caching disabled). [Scoped] prefixes keys so several kinds of
// data can share one backend.
//
// Pinned package manager distributions are not stored here; they live in
// pkg/distcache because they are directory trees, not byte blobs.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry TTL.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl <= 0 never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
