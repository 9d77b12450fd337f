package agricache

import (
	"context"
	"time"
)

// QueryCache composes a CacheStore in front of an arbitrary compute function,
// typically a record store query. It is a read-through cache: misses fall
// back to the compute function and the result is stored for subsequent
// callers.
type QueryCache[K comparable, V any] struct {
	cache *CacheStore[K, V]
	ttl   time.Duration
}

// NewQueryCache creates a read-through cache storing computed results with
// the given TTL.
func NewQueryCache[K comparable, V any](cache *CacheStore[K, V], resultTTL time.Duration) *QueryCache[K, V] {
	return &QueryCache[K, V]{cache: cache, ttl: resultTTL}
}

// GetOrCompute returns the cached value for key, or invokes compute on a
// miss, stores the result and returns it. Concurrent misses on the same key
// may each invoke compute; the last writer wins. That is an accepted
// tradeoff: at most one value is stored per key at any time, and the cached
// result converges on the latest computation. Compute errors are returned
// and nothing is cached.
func (q *QueryCache[K, V]) GetOrCompute(ctx context.Context, key K, compute func(context.Context) (V, error)) (V, error) {
	if value, ok := q.cache.Get(key); ok {
		return value, nil
	}

	value, err := compute(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	// A failed Set (for example a closed cache) must not fail the read: the
	// caller still gets the computed value.
	_ = q.cache.Set(key, value, q.ttl)
	return value, nil
}

// Invalidate removes a cached result. Used for best-effort invalidation
// after a store write; it is not atomic with the write.
func (q *QueryCache[K, V]) Invalidate(key K) bool {
	return q.cache.Delete(key)
}
