// Package agricache provides the in-process caching and write-behind
// persistence layer for agricultural recommendation data: a byte-budgeted
// LRU+TTL object cache, a read-through query cache, and a background batch
// writer in front of the record store.
package agricache

import (
	"container/list"
	"sync"
	"time"

	agrierrors "github.com/agrozone/agricache/errors"
	"github.com/agrozone/agricache/internal"
	"github.com/agrozone/agricache/metrics"
	"github.com/agrozone/agricache/ttl"
)

// CacheStats tracks cumulative cache statistics since the cache was created.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int64
	SizeBytes int64
}

// HitRate returns hits/(hits+misses), or 0 when no lookups have occurred.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// entry is a cached value with its eviction bookkeeping.
type entry[K comparable, V any] struct {
	key         K
	value       V
	createdAt   time.Time
	lastAccess  time.Time
	accessCount int64
	sizeBytes   int64
	expiresAt   time.Time
}

// CacheStore is a generic key-value cache with LRU, TTL and byte-budget
// eviction. A single mutex guards every operation for its full duration;
// correctness is preferred over lock granularity. Safe for concurrent use.
type CacheStore[K comparable, V any] struct {
	mu       sync.Mutex
	entries  map[K]*list.Element
	order    *list.List // front = most recently used
	curBytes int64

	maxBytes  int64
	ttlConfig ttl.Config

	hits      int64
	misses    int64
	evictions int64

	sweepInterval time.Duration
	sweepStop     chan struct{}
	sweepDone     chan struct{}
	closeOnce     sync.Once
	closed        bool

	exporter metrics.Exporter
}

// NewCacheStore creates a new cache with the given options.
func NewCacheStore[K comparable, V any](opts ...Option[K, V]) *CacheStore[K, V] {
	options := DefaultOptions[K, V]()
	for _, opt := range opts {
		opt(options)
	}

	c := &CacheStore[K, V]{
		entries:       make(map[K]*list.Element),
		order:         list.New(),
		maxBytes:      options.MaxBytes,
		ttlConfig:     options.TTLConfig,
		sweepInterval: options.SweepInterval,
		sweepStop:     make(chan struct{}),
		sweepDone:     make(chan struct{}),
		exporter:      options.Exporter,
	}

	if c.sweepInterval > 0 {
		go c.sweep()
	} else {
		close(c.sweepDone)
	}

	return c
}

// Get retrieves a value from the cache. A miss is normal control flow, not
// an error: the second return value reports whether the key was present and
// unexpired. Expired entries are removed on access.
func (c *CacheStore[K, V]) Get(key K) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return zero, false
	}

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		c.exporter.RecordMiss()
		return zero, false
	}

	ent := elem.Value.(*entry[K, V])
	if ttl.IsExpired(ent.expiresAt) {
		c.removeElement(elem)
		c.misses++
		c.exporter.RecordMiss()
		c.exporter.RecordExpiration()
		c.exporter.UpdateUsage(int64(len(c.entries)), c.curBytes)
		return zero, false
	}

	ent.lastAccess = time.Now()
	ent.accessCount++
	c.order.MoveToFront(elem)
	c.hits++
	c.exporter.RecordHit()
	return ent.value, true
}

// Set stores a value with the given TTL, estimating its size by serializing
// it. The new entry becomes most recently used; least recently used entries
// are evicted while the resident size exceeds the byte budget. An entry
// larger than the whole budget is still admitted and becomes the first
// victim of the next pressure event.
func (c *CacheStore[K, V]) Set(key K, value V, ttlDuration time.Duration) error {
	if err := ttl.Validate(ttlDuration, c.ttlConfig); err != nil {
		return err
	}
	expiresAt := ttl.ExpirationTime(ttlDuration, c.ttlConfig)
	size := internal.EstimateSize(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return agrierrors.Wrap("Set", key, agrierrors.ErrCacheClosed)
	}

	now := time.Now()
	if elem, ok := c.entries[key]; ok {
		ent := elem.Value.(*entry[K, V])
		c.curBytes += size - ent.sizeBytes
		ent.value = value
		ent.sizeBytes = size
		ent.expiresAt = expiresAt
		ent.lastAccess = now
		ent.accessCount++
		c.order.MoveToFront(elem)
	} else {
		elem := c.order.PushFront(&entry[K, V]{
			key:         key,
			value:       value,
			createdAt:   now,
			lastAccess:  now,
			accessCount: 1,
			sizeBytes:   size,
			expiresAt:   expiresAt,
		})
		c.entries[key] = elem
		c.curBytes += size
	}

	// Evict from the LRU end until the budget is satisfied. The entry just
	// written is spared; it gets evicted on the next pressure event instead.
	for c.curBytes > c.maxBytes && c.order.Len() > 1 {
		back := c.order.Back()
		if back == c.entries[key] {
			break
		}
		c.removeElement(back)
		c.evictions++
		c.exporter.RecordEviction()
	}

	c.exporter.UpdateUsage(int64(len(c.entries)), c.curBytes)
	return nil
}

// SetDefault stores a value with the configured default TTL.
func (c *CacheStore[K, V]) SetDefault(key K, value V) error {
	return c.Set(key, value, c.ttlConfig.DefaultTTL)
}

// Delete removes a key and reports whether it was present.
func (c *CacheStore[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	elem, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeElement(elem)
	c.exporter.UpdateUsage(int64(len(c.entries)), c.curBytes)
	return true
}

// Len returns the number of resident entries.
func (c *CacheStore[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CurrentBytes returns the estimated resident size in bytes.
func (c *CacheStore[K, V]) CurrentBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curBytes
}

// Stats returns cumulative cache statistics.
func (c *CacheStore[K, V]) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   int64(len(c.entries)),
		SizeBytes: c.curBytes,
	}
}

// Clear removes all entries.
func (c *CacheStore[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.entries = make(map[K]*list.Element)
	c.order.Init()
	c.curBytes = 0
	c.exporter.UpdateUsage(0, 0)
}

// Close stops the sweep goroutine and releases all entries. The cache must
// not be used after Close.
func (c *CacheStore[K, V]) Close() {
	c.closeOnce.Do(func() {
		close(c.sweepStop)
		<-c.sweepDone

		c.mu.Lock()
		defer c.mu.Unlock()
		c.closed = true
		c.entries = make(map[K]*list.Element)
		c.order.Init()
		c.curBytes = 0
	})
}

// sweep periodically removes all expired entries, independent of access.
func (c *CacheStore[K, V]) sweep() {
	defer close(c.sweepDone)
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.sweepStop:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

// removeExpired drops every expired entry in one pass under the lock.
func (c *CacheStore[K, V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	var expired []*list.Element
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		if ttl.IsExpired(elem.Value.(*entry[K, V]).expiresAt) {
			expired = append(expired, elem)
		}
	}
	for _, elem := range expired {
		c.removeElement(elem)
		c.exporter.RecordExpiration()
	}
	if len(expired) > 0 {
		c.exporter.UpdateUsage(int64(len(c.entries)), c.curBytes)
	}
}

// removeElement unlinks an entry. Caller must hold the lock.
func (c *CacheStore[K, V]) removeElement(elem *list.Element) {
	ent := elem.Value.(*entry[K, V])
	c.order.Remove(elem)
	delete(c.entries, ent.key)
	c.curBytes -= ent.sizeBytes
}
