// Package metrics provides functionality for collecting and reporting cache
// and writer performance metrics.
package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot is a thread-safe copy of current metrics.
type Snapshot struct {
	// Cache
	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
	Entries     int64
	SizeBytes   int64

	// Writer
	Enqueued      int64
	Dropped       int64
	Flushes       int64
	FlushedItems  int64
	WriteFailures int64
	LastFlush     time.Time
}

// HitRate returns hits/(hits+misses), or 0 when no lookups have occurred.
func (s Snapshot) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// counters holds the atomic counters shared by both exporters.
type counters struct {
	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64
	entries     atomic.Int64
	sizeBytes   atomic.Int64

	enqueued      atomic.Int64
	dropped       atomic.Int64
	flushes       atomic.Int64
	flushedItems  atomic.Int64
	writeFailures atomic.Int64
	lastFlush     atomic.Value // time.Time
}

func (c *counters) snapshot() Snapshot {
	s := Snapshot{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Evictions:     c.evictions.Load(),
		Expirations:   c.expirations.Load(),
		Entries:       c.entries.Load(),
		SizeBytes:     c.sizeBytes.Load(),
		Enqueued:      c.enqueued.Load(),
		Dropped:       c.dropped.Load(),
		Flushes:       c.flushes.Load(),
		FlushedItems:  c.flushedItems.Load(),
		WriteFailures: c.writeFailures.Load(),
	}
	if t, ok := c.lastFlush.Load().(time.Time); ok {
		s.LastFlush = t
	}
	return s
}

func (c *counters) reset() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
	c.expirations.Store(0)
	c.entries.Store(0)
	c.sizeBytes.Store(0)
	c.enqueued.Store(0)
	c.dropped.Store(0)
	c.flushes.Store(0)
	c.flushedItems.Store(0)
	c.writeFailures.Store(0)
	c.lastFlush.Store(time.Time{})
}
