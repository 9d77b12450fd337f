// Package store provides validated, versioned, checksummed persistence for
// agricultural records.
package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agrozone/agricache/record"
)

// RecordStore is the synchronous persistence API. Every mutating operation
// validates first and propagates storage failures to the caller.
type RecordStore interface {
	// Save validates the payload, assigns an id, computes the checksum and
	// persists a new active record at version 1. It returns a
	// ValidationError listing every violated rule when the payload is
	// invalid; nothing is persisted in that case.
	Save(ctx context.Context, t record.Type, payload record.Payload, meta record.Metadata) (string, error)

	// Get returns the record with the given id, including soft-deleted
	// records. It returns ErrNotFound when the id is absent.
	Get(ctx context.Context, id string) (*record.Record, error)

	// Update re-validates the payload, recomputes the checksum, bumps the
	// version by one and stamps updated_at. It returns ErrNotFound when the
	// id is absent.
	Update(ctx context.Context, id string, payload record.Payload, meta record.Metadata) error

	// SoftDelete marks the record deleted. The record stays retrievable by
	// id but is excluded from active listings until purged.
	SoftDelete(ctx context.Context, id string) error

	// HardDelete physically removes the record. Irreversible.
	HardDelete(ctx context.Context, id string) error

	// ListByType returns active records of the given type, newest first.
	// A limit <= 0 applies the default listing limit.
	ListByType(ctx context.Context, t record.Type, limit int) ([]*record.Record, error)

	// ListSince returns active records created at or after the given time.
	ListSince(ctx context.Context, since time.Time) ([]*record.Record, error)

	// ListForExport returns active and archived records of the given type,
	// oldest first, for snapshotting.
	ListForExport(ctx context.Context, t record.Type) ([]*record.Record, error)

	// All returns every record regardless of status, for full-scan reports.
	All(ctx context.Context) ([]*record.Record, error)

	// Upsert writes a record preserving its id, version, timestamps and
	// checksum. Re-applying the same record is idempotent. Used by restore.
	Upsert(ctx context.Context, rec *record.Record) error

	// PurgeDeleted physically removes soft-deleted records whose updated_at
	// is older than the cutoff. It returns the number of rows removed.
	PurgeDeleted(ctx context.Context, cutoff time.Time) (int, error)

	// Count returns the total number of records of any status.
	Count(ctx context.Context) (int, error)

	// Close stops background work and releases the underlying database.
	Close() error
}

// Config holds record store configuration.
type Config struct {
	// Path is the SQLite database path. Use ":memory:" for tests.
	Path string

	// SoftDeleteRetention is how long soft-deleted records are kept before
	// the purge loop removes them.
	SoftDeleteRetention time.Duration

	// PurgeInterval is how often the purge loop runs. Zero disables the
	// loop; PurgeDeleted can still be called directly.
	PurgeInterval time.Duration

	// DefaultListLimit caps ListByType results when the caller passes no
	// limit.
	DefaultListLimit int

	// Logger receives purge results and background failures. Defaults to a
	// no-op logger.
	Logger *zap.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(path string) Config {
	return Config{
		Path:                path,
		SoftDeleteRetention: 30 * 24 * time.Hour,
		PurgeInterval:       time.Hour,
		DefaultListLimit:    100,
		Logger:              zap.NewNop(),
	}
}
