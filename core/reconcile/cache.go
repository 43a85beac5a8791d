package reconcile

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// schemaCache holds a discovered field list.
type schemaCache struct {
	// Fields is the sorted field list.
	Fields []string

	// Built is the timestamp when this cache was built.
	Built time.Time

	// TTL is the time-to-live for this cache.
	TTL time.Duration
}

// IsExpired returns true if this cache has expired based on its TTL.
func (c *schemaCache) IsExpired() bool {
	if c.TTL == 0 {
		return true // No caching
	}
	return time.Since(c.Built) > c.TTL
}

// cacheStore holds schema caches keyed by table name.
type cacheStore struct {
	mu     sync.RWMutex
	caches map[string]*schemaCache
	sf     singleflight.Group
}

func newCacheStore() *cacheStore {
	return &cacheStore{caches: make(map[string]*schemaCache)}
}

// getOrBuild returns the cached field list for key, or builds a new one if it
// doesn't exist or has expired. Uses singleflight to prevent cache stampedes.
func (s *cacheStore) getOrBuild(ctx context.Context, key string, ttl time.Duration, build func(context.Context) ([]string, error)) ([]string, error) {
	// Fast path: check if cache exists and is fresh
	s.mu.RLock()
	cache, exists := s.caches[key]
	s.mu.RUnlock()

	if exists && !cache.IsExpired() {
		return cloneStrings(cache.Fields), nil
	}

	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		// Double-check after acquiring singleflight lock
		s.mu.RLock()
		cache, exists := s.caches[key]
		s.mu.RUnlock()

		if exists && !cache.IsExpired() {
			return cache.Fields, nil
		}

		fields, err := build(ctx)
		if err != nil {
			return nil, err
		}

		if ttl > 0 {
			s.mu.Lock()
			s.caches[key] = &schemaCache{Fields: fields, Built: time.Now(), TTL: ttl}
			s.mu.Unlock()
		}

		return fields, nil
	})
	if err != nil {
		return nil, err
	}

	return cloneStrings(result.([]string)), nil
}

// invalidate removes the cache for key.
func (s *cacheStore) invalidate(key string) {
	s.mu.Lock()
	delete(s.caches, key)
	s.mu.Unlock()
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
