package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ExporterType defines the type of metrics exporter
type ExporterType string

const (
	// StandardExporter uses in-process atomic counters only
	StandardExporter ExporterType = "standard"
	// PrometheusExporterType additionally publishes Prometheus metrics
	PrometheusExporterType ExporterType = "prometheus"
)

// Exporter is the sink for cache and writer events.
type Exporter interface {
	// RecordHit records a cache hit
	RecordHit()
	// RecordMiss records a cache miss
	RecordMiss()
	// RecordEviction records an entry evicted under memory pressure
	RecordEviction()
	// RecordExpiration records an entry removed because its TTL elapsed
	RecordExpiration()
	// UpdateUsage updates the current entry count and resident bytes
	UpdateUsage(entries, sizeBytes int64)

	// RecordEnqueue records an accepted writer item
	RecordEnqueue()
	// RecordDrop records an item shed because the queue was full
	RecordDrop()
	// RecordFlush records a completed flush of n items
	RecordFlush(n int)
	// RecordWriteFailure records an item that failed to apply during a flush
	RecordWriteFailure()

	// GetSnapshot returns a thread-safe copy of current metrics
	GetSnapshot() Snapshot
	// Reset resets all metrics to zero
	Reset()
}

// NewExporter creates an exporter of the given type. The name is used as a
// label on Prometheus metrics.
func NewExporter(t ExporterType, name string, labels map[string]string) Exporter {
	if t == PrometheusExporterType {
		return NewPrometheusExporter(name, labels)
	}
	return NewStandardExporter()
}

// StandardMetricsExporter implements Exporter with atomic counters.
type StandardMetricsExporter struct {
	counters
}

// NewStandardExporter creates a new standard exporter.
func NewStandardExporter() *StandardMetricsExporter {
	return &StandardMetricsExporter{}
}

func (e *StandardMetricsExporter) RecordHit()        { e.hits.Add(1) }
func (e *StandardMetricsExporter) RecordMiss()       { e.misses.Add(1) }
func (e *StandardMetricsExporter) RecordEviction()   { e.evictions.Add(1) }
func (e *StandardMetricsExporter) RecordExpiration() { e.expirations.Add(1) }

func (e *StandardMetricsExporter) UpdateUsage(entries, sizeBytes int64) {
	e.entries.Store(entries)
	e.sizeBytes.Store(sizeBytes)
}

func (e *StandardMetricsExporter) RecordEnqueue() { e.enqueued.Add(1) }
func (e *StandardMetricsExporter) RecordDrop()    { e.dropped.Add(1) }

func (e *StandardMetricsExporter) RecordFlush(n int) {
	e.flushes.Add(1)
	e.flushedItems.Add(int64(n))
	e.lastFlush.Store(time.Now())
}

func (e *StandardMetricsExporter) RecordWriteFailure() { e.writeFailures.Add(1) }

// GetSnapshot returns a thread-safe copy of current metrics.
func (e *StandardMetricsExporter) GetSnapshot() Snapshot { return e.snapshot() }

// Reset resets all metrics to zero.
func (e *StandardMetricsExporter) Reset() { e.reset() }

// PrometheusExporter implements Exporter backed by Prometheus metrics. It
// keeps internal atomic counters as well so GetSnapshot does not depend on
// gathering.
type PrometheusExporter struct {
	counters

	hitsVec      *prometheus.CounterVec
	missesVec    *prometheus.CounterVec
	evictionsVec *prometheus.CounterVec
	expiredVec   *prometheus.CounterVec
	entriesVec   *prometheus.GaugeVec
	bytesVec     *prometheus.GaugeVec

	enqueuedVec *prometheus.CounterVec
	droppedVec  *prometheus.CounterVec
	flushesVec  *prometheus.CounterVec
	failuresVec *prometheus.CounterVec

	labels prometheus.Labels
}

// NewPrometheusExporter creates a Prometheus-backed exporter. The metrics are
// registered on the default registerer; name becomes the "cache" label.
func NewPrometheusExporter(name string, labels map[string]string) *PrometheusExporter {
	if labels == nil {
		labels = make(map[string]string)
	}
	if _, exists := labels["service"]; !exists {
		labels["service"] = "agricache"
	}
	labels["cache"] = name

	labelNames := []string{"service", "cache"}
	e := &PrometheusExporter{
		labels: prometheus.Labels{"service": labels["service"], "cache": name},
	}

	e.hitsVec = newCounterVec("agricache_hits_total", "Total number of cache hits", labelNames)
	e.missesVec = newCounterVec("agricache_misses_total", "Total number of cache misses", labelNames)
	e.evictionsVec = newCounterVec("agricache_evictions_total", "Total number of entries evicted under memory pressure", labelNames)
	e.expiredVec = newCounterVec("agricache_expirations_total", "Total number of entries removed after TTL expiry", labelNames)
	e.entriesVec = newGaugeVec("agricache_entries", "Current number of cached entries", labelNames)
	e.bytesVec = newGaugeVec("agricache_size_bytes", "Current resident cache size in bytes", labelNames)
	e.enqueuedVec = newCounterVec("agricache_writer_enqueued_total", "Total number of items accepted by the batch writer", labelNames)
	e.droppedVec = newCounterVec("agricache_writer_dropped_total", "Total number of items shed because the write queue was full", labelNames)
	e.flushesVec = newCounterVec("agricache_writer_flushes_total", "Total number of batch flushes", labelNames)
	e.failuresVec = newCounterVec("agricache_writer_failures_total", "Total number of items that failed to apply during a flush", labelNames)

	return e
}

func newCounterVec(name, help string, labelNames []string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labelNames)
	if err := prometheus.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			vec = are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	return vec
}

func newGaugeVec(name, help string, labelNames []string) *prometheus.GaugeVec {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labelNames)
	if err := prometheus.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			vec = are.ExistingCollector.(*prometheus.GaugeVec)
		}
	}
	return vec
}

func (e *PrometheusExporter) RecordHit() {
	e.hits.Add(1)
	e.hitsVec.With(e.labels).Inc()
}

func (e *PrometheusExporter) RecordMiss() {
	e.misses.Add(1)
	e.missesVec.With(e.labels).Inc()
}

func (e *PrometheusExporter) RecordEviction() {
	e.evictions.Add(1)
	e.evictionsVec.With(e.labels).Inc()
}

func (e *PrometheusExporter) RecordExpiration() {
	e.expirations.Add(1)
	e.expiredVec.With(e.labels).Inc()
}

func (e *PrometheusExporter) UpdateUsage(entries, sizeBytes int64) {
	e.entries.Store(entries)
	e.sizeBytes.Store(sizeBytes)
	e.entriesVec.With(e.labels).Set(float64(entries))
	e.bytesVec.With(e.labels).Set(float64(sizeBytes))
}

func (e *PrometheusExporter) RecordEnqueue() {
	e.enqueued.Add(1)
	e.enqueuedVec.With(e.labels).Inc()
}

func (e *PrometheusExporter) RecordDrop() {
	e.dropped.Add(1)
	e.droppedVec.With(e.labels).Inc()
}

func (e *PrometheusExporter) RecordFlush(n int) {
	e.flushes.Add(1)
	e.flushedItems.Add(int64(n))
	e.lastFlush.Store(time.Now())
	e.flushesVec.With(e.labels).Inc()
}

func (e *PrometheusExporter) RecordWriteFailure() {
	e.writeFailures.Add(1)
	e.failuresVec.With(e.labels).Inc()
}

// GetSnapshot returns a thread-safe copy of current metrics.
func (e *PrometheusExporter) GetSnapshot() Snapshot { return e.snapshot() }

// Reset resets the internal counters. Registered Prometheus series are
// cumulative and are not rewound.
func (e *PrometheusExporter) Reset() { e.reset() }
