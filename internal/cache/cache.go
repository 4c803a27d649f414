// Package cache provides the size- and TTL-bounded key-value caches used for
// query-embedding reuse and whole-answer reuse. Entries are evicted LRU when
// the size bound is hit and expire after the configured TTL.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Cache is a bounded TTL cache. Implementations are safe for concurrent use
// without external locking.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Put(key string, value V)
	// GetOrCompute returns the cached value or runs loader and stores its
	// result. Concurrent calls for the same key coalesce on one loader run;
	// at-least-once loader execution under race is still possible because a
	// stored value may expire between the flight and a follower's read.
	GetOrCompute(key string, loader func() (V, error)) (V, error)
}

// New returns an LRU+TTL cache, or a pass-through when disabled.
func New[V any](maxSize int, ttl time.Duration, enabled bool) Cache[V] {
	if !enabled {
		return disabled[V]{}
	}
	return &lruCache[V]{
		entries: expirable.NewLRU[string, V](maxSize, nil, ttl),
	}
}

type lruCache[V any] struct {
	entries *expirable.LRU[string, V]
	flight  singleflight.Group
}

func (c *lruCache[V]) Get(key string) (V, bool) {
	return c.entries.Get(key)
}

func (c *lruCache[V]) Put(key string, value V) {
	c.entries.Add(key, value)
}

func (c *lruCache[V]) GetOrCompute(key string, loader func() (V, error)) (V, error) {
	if v, ok := c.entries.Get(key); ok {
		return v, nil
	}
	v, err, _ := c.flight.Do(key, func() (any, error) {
		if v, ok := c.entries.Get(key); ok {
			return v, nil
		}
		loaded, err := loader()
		if err != nil {
			return loaded, err
		}
		c.entries.Add(key, loaded)
		return loaded, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// disabled delegates every call to the loader: callers see no behavioral
// difference beyond latency.
type disabled[V any] struct{}

func (disabled[V]) Get(string) (V, bool) {
	var zero V
	return zero, false
}

func (disabled[V]) Put(string, V) {}

func (disabled[V]) GetOrCompute(_ string, loader func() (V, error)) (V, error) {
	return loader()
}
