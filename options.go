package agricache

import (
	"time"

	"github.com/agrozone/agricache/metrics"
	"github.com/agrozone/agricache/ttl"
)

// Options represents cache configuration options
type Options[K comparable, V any] struct {
	// MaxBytes is the resident size budget. The budget is soft: sizes are
	// serialization estimates, not true heap footprint.
	MaxBytes int64

	// TTLConfig is the configuration for TTL behavior
	TTLConfig ttl.Config

	// SweepInterval is how often the background sweep removes expired
	// entries. Zero disables the sweep; expiry is still checked on access.
	SweepInterval time.Duration

	// Exporter is the metrics sink. Defaults to in-process counters.
	Exporter metrics.Exporter
}

// Option is a function that configures cache options
type Option[K comparable, V any] func(*Options[K, V])

// WithMaxBytes sets the resident size budget in bytes
func WithMaxBytes[K comparable, V any](maxBytes int64) Option[K, V] {
	return func(o *Options[K, V]) {
		o.MaxBytes = maxBytes
	}
}

// WithTTLConfig sets the TTL configuration
func WithTTLConfig[K comparable, V any](config ttl.Config) Option[K, V] {
	return func(o *Options[K, V]) {
		o.TTLConfig = config
	}
}

// WithDefaultTTL sets the default TTL for entries stored without an explicit
// TTL
func WithDefaultTTL[K comparable, V any](d time.Duration) Option[K, V] {
	return func(o *Options[K, V]) {
		o.TTLConfig.DefaultTTL = d
	}
}

// WithSweepInterval sets the interval of the background expiry sweep
func WithSweepInterval[K comparable, V any](interval time.Duration) Option[K, V] {
	return func(o *Options[K, V]) {
		o.SweepInterval = interval
	}
}

// WithExporter sets the metrics exporter
func WithExporter[K comparable, V any](e metrics.Exporter) Option[K, V] {
	return func(o *Options[K, V]) {
		o.Exporter = e
	}
}

// DefaultOptions returns the default cache options
func DefaultOptions[K comparable, V any]() *Options[K, V] {
	return &Options[K, V]{
		MaxBytes:      64 << 20, // 64MB
		TTLConfig:     ttl.DefaultConfig(),
		SweepInterval: time.Second,
		Exporter:      metrics.NewStandardExporter(),
	}
}
