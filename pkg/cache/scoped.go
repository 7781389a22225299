package cache

import (
	"context"
	"time"

	"github.com/matzehuels/pmux/pkg/observability"
)

// Scoped prefixes every key and reports hits and misses to the cache hooks
// under the scope name.
//
//	npmCache := cache.Scoped(backend, "npm")
//	npmCache.Get(ctx, "pnpm") // reads "npm:pnpm"
type ScopedCache struct {
	inner Cache
	scope string
}

// Scoped wraps inner so keys are stored as scope + ":" + key.
func Scoped(inner Cache, scope string) *ScopedCache {
	if inner == nil {
		inner = NewNullCache()
	}
	return &ScopedCache{inner: inner, scope: scope}
}

func (s *ScopedCache) key(k string) string { return s.scope + ":" + k }

func (s *ScopedCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := s.inner.Get(ctx, s.key(key))
	if err == nil {
		if ok {
			observability.Cache().OnCacheHit(ctx, s.scope)
		} else {
			observability.Cache().OnCacheMiss(ctx, s.scope)
		}
	}
	return data, ok, err
}

func (s *ScopedCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := s.inner.Set(ctx, s.key(key), data, ttl); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, s.scope, len(data))
	return nil
}

func (s *ScopedCache) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.key(key))
}

// Close closes the wrapped cache.
func (s *ScopedCache) Close() error { return s.inner.Close() }

var _ Cache = (*ScopedCache)(nil)
