package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	agrierrors "github.com/agrozone/agricache/errors"
	"github.com/agrozone/agricache/record"
)

// timeLayout is RFC 3339 with fixed-width nanoseconds so that the stored
// text orders lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	payload    TEXT NOT NULL,
	metadata   TEXT,
	status     TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	version    INTEGER NOT NULL,
	checksum   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_type_status ON records(type, status, created_at);
CREATE INDEX IF NOT EXISTS idx_records_created ON records(created_at);`

// Compile-time check that SQLiteStore implements RecordStore.
var _ RecordStore = (*SQLiteStore)(nil)

// SQLiteStore implements RecordStore on a SQLite database. It is safe for
// concurrent use; all mutating paths hold the store mutex.
type SQLiteStore struct {
	mu        sync.RWMutex
	db        *sql.DB
	cfg       Config
	logger    *zap.Logger
	purgeStop chan struct{}
	purgeDone chan struct{}
	closeOnce sync.Once
	closed    bool
}

// NewSQLiteStore opens (or creates) a SQLite-backed record store. When
// cfg.PurgeInterval is positive, a background loop purges soft-deleted
// records past the retention window.
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.DefaultListLimit <= 0 {
		cfg.DefaultListLimit = 100
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, storageErr("NewSQLiteStore", cfg.Path, err)
	}

	// An in-memory database exists per connection; the pool must not open
	// a second one.
	if cfg.Path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// WAL mode improves concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, storageErr("NewSQLiteStore", cfg.Path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, storageErr("NewSQLiteStore", cfg.Path, err)
	}

	s := &SQLiteStore{
		db:        db,
		cfg:       cfg,
		logger:    cfg.Logger,
		purgeStop: make(chan struct{}),
		purgeDone: make(chan struct{}),
	}

	if cfg.PurgeInterval > 0 {
		go s.purgeLoop()
	} else {
		close(s.purgeDone)
	}

	return s, nil
}

// storageErr wraps a backend failure so callers can match ErrStorage while
// keeping the underlying cause in the chain.
func storageErr(op string, key any, err error) error {
	return agrierrors.Wrap(op, key, fmt.Errorf("%w: %w", agrierrors.ErrStorage, err))
}

// purgeLoop periodically removes soft-deleted records past retention.
func (s *SQLiteStore) purgeLoop() {
	defer close(s.purgeDone)
	ticker := time.NewTicker(s.cfg.PurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.purgeStop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.cfg.SoftDeleteRetention)
			n, err := s.PurgeDeleted(context.Background(), cutoff)
			if err != nil {
				s.logger.Warn("purge of soft-deleted records failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("purged soft-deleted records", zap.Int("count", n))
			}
		}
	}
}

// Save implements RecordStore.
func (s *SQLiteStore) Save(ctx context.Context, t record.Type, payload record.Payload, meta record.Metadata) (string, error) {
	if violations := record.Validate(t, payload); len(violations) > 0 {
		return "", agrierrors.NewValidationError(string(t), violations)
	}

	typed, err := record.Normalize(t, payload)
	if err != nil {
		return "", agrierrors.NewValidationError(string(t), []string{err.Error()})
	}
	checksum, err := record.Checksum(typed)
	if err != nil {
		return "", agrierrors.Wrap("Save", nil, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", agrierrors.Wrap("Save", nil, agrierrors.ErrStoreClosed)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	payloadJSON, err := record.CanonicalPayload(typed)
	if err != nil {
		return "", agrierrors.Wrap("Save", id, err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", agrierrors.Wrap("Save", id, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (id, type, payload, metadata, status, created_at, updated_at, version, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(t), string(payloadJSON), string(metaJSON), string(record.StatusActive),
		now.Format(timeLayout), now.Format(timeLayout), 1, checksum,
	)
	if err != nil {
		return "", storageErr("Save", id, err)
	}
	return id, nil
}

// Get implements RecordStore. Soft-deleted records remain retrievable.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, agrierrors.Wrap("Get", id, agrierrors.ErrStoreClosed)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, payload, metadata, status, created_at, updated_at, version, checksum
		FROM records WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, agrierrors.Wrap("Get", id, agrierrors.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("Get", id, err)
	}
	return rec, nil
}

// Update implements RecordStore.
func (s *SQLiteStore) Update(ctx context.Context, id string, payload record.Payload, meta record.Metadata) error {
	// Determine the record type before validating: the payload must match
	// the type the record was created with.
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if violations := record.Validate(current.Type, payload); len(violations) > 0 {
		return agrierrors.NewValidationError(string(current.Type), violations)
	}
	typed, err := record.Normalize(current.Type, payload)
	if err != nil {
		return agrierrors.NewValidationError(string(current.Type), []string{err.Error()})
	}
	checksum, err := record.Checksum(typed)
	if err != nil {
		return agrierrors.Wrap("Update", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return agrierrors.Wrap("Update", id, agrierrors.ErrStoreClosed)
	}

	payloadJSON, err := record.CanonicalPayload(typed)
	if err != nil {
		return agrierrors.Wrap("Update", id, err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return agrierrors.Wrap("Update", id, err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE records
		SET payload = ?, metadata = ?, checksum = ?, version = version + 1, updated_at = ?
		WHERE id = ?`,
		string(payloadJSON), string(metaJSON), checksum,
		time.Now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return storageErr("Update", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return agrierrors.Wrap("Update", id, agrierrors.ErrNotFound)
	}
	return nil
}

// SoftDelete implements RecordStore.
func (s *SQLiteStore) SoftDelete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return agrierrors.Wrap("SoftDelete", id, agrierrors.ErrStoreClosed)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET status = ?, updated_at = ? WHERE id = ?`,
		string(record.StatusDeleted), time.Now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return storageErr("SoftDelete", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return agrierrors.Wrap("SoftDelete", id, agrierrors.ErrNotFound)
	}
	return nil
}

// HardDelete implements RecordStore.
func (s *SQLiteStore) HardDelete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return agrierrors.Wrap("HardDelete", id, agrierrors.ErrStoreClosed)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return storageErr("HardDelete", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return agrierrors.Wrap("HardDelete", id, agrierrors.ErrNotFound)
	}
	return nil
}

// ListByType implements RecordStore.
func (s *SQLiteStore) ListByType(ctx context.Context, t record.Type, limit int) ([]*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, agrierrors.Wrap("ListByType", t, agrierrors.ErrStoreClosed)
	}

	if limit <= 0 {
		limit = s.cfg.DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, payload, metadata, status, created_at, updated_at, version, checksum
		FROM records WHERE type = ? AND status = ?
		ORDER BY created_at DESC LIMIT ?`,
		string(t), string(record.StatusActive), limit,
	)
	if err != nil {
		return nil, storageErr("ListByType", t, err)
	}
	return collectRecords(rows, "ListByType", t)
}

// ListSince implements RecordStore.
func (s *SQLiteStore) ListSince(ctx context.Context, since time.Time) ([]*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, agrierrors.Wrap("ListSince", nil, agrierrors.ErrStoreClosed)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, payload, metadata, status, created_at, updated_at, version, checksum
		FROM records WHERE status = ? AND created_at >= ?
		ORDER BY created_at DESC`,
		string(record.StatusActive), since.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, storageErr("ListSince", nil, err)
	}
	return collectRecords(rows, "ListSince", nil)
}

// ListForExport implements RecordStore.
func (s *SQLiteStore) ListForExport(ctx context.Context, t record.Type) ([]*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, agrierrors.Wrap("ListForExport", t, agrierrors.ErrStoreClosed)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, payload, metadata, status, created_at, updated_at, version, checksum
		FROM records WHERE type = ? AND status IN (?, ?)
		ORDER BY created_at`,
		string(t), string(record.StatusActive), string(record.StatusArchived),
	)
	if err != nil {
		return nil, storageErr("ListForExport", t, err)
	}
	return collectRecords(rows, "ListForExport", t)
}

// All implements RecordStore.
func (s *SQLiteStore) All(ctx context.Context) ([]*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, agrierrors.Wrap("All", nil, agrierrors.ErrStoreClosed)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, payload, metadata, status, created_at, updated_at, version, checksum
		FROM records ORDER BY created_at`)
	if err != nil {
		return nil, storageErr("All", nil, err)
	}
	return collectRecords(rows, "All", nil)
}

// Upsert implements RecordStore. The record is written exactly as given,
// preserving id, version, timestamps and checksum.
func (s *SQLiteStore) Upsert(ctx context.Context, rec *record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return agrierrors.Wrap("Upsert", rec.ID, agrierrors.ErrStoreClosed)
	}

	payloadJSON, err := record.CanonicalPayload(rec.Payload)
	if err != nil {
		return agrierrors.Wrap("Upsert", rec.ID, err)
	}
	metaJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return agrierrors.Wrap("Upsert", rec.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (id, type, payload, metadata, status, created_at, updated_at, version, checksum)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			payload = excluded.payload,
			metadata = excluded.metadata,
			status = excluded.status,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			version = excluded.version,
			checksum = excluded.checksum`,
		rec.ID, string(rec.Type), string(payloadJSON), string(metaJSON), string(rec.Status),
		rec.CreatedAt.UTC().Format(timeLayout), rec.UpdatedAt.UTC().Format(timeLayout),
		rec.Version, rec.Checksum,
	)
	if err != nil {
		return storageErr("Upsert", rec.ID, err)
	}
	return nil
}

// PurgeDeleted implements RecordStore.
func (s *SQLiteStore) PurgeDeleted(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, agrierrors.Wrap("PurgeDeleted", nil, agrierrors.ErrStoreClosed)
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE status = ? AND updated_at < ?`,
		string(record.StatusDeleted), cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, storageErr("PurgeDeleted", nil, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Count implements RecordStore.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, agrierrors.Wrap("Count", nil, agrierrors.ErrStoreClosed)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		return 0, storageErr("Count", nil, err)
	}
	return count, nil
}

// Close implements RecordStore.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.purgeStop)
		<-s.purgeDone

		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		err = s.db.Close()
	})
	return err
}

// rowScanner abstracts sql.Row and sql.Rows for scanRecord.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*record.Record, error) {
	var (
		id, typ, payloadJSON, status, createdAt, updatedAt, checksum string
		metaJSON                                                     sql.NullString
		version                                                      int
	)
	if err := row.Scan(&id, &typ, &payloadJSON, &metaJSON, &status, &createdAt, &updatedAt, &version, &checksum); err != nil {
		return nil, err
	}

	payload, err := record.DecodePayload(record.Type(typ), []byte(payloadJSON))
	if err != nil {
		return nil, fmt.Errorf("corrupt payload for record %s: %w", id, err)
	}

	rec := &record.Record{
		ID:       id,
		Type:     record.Type(typ),
		Payload:  payload,
		Status:   record.Status(status),
		Version:  version,
		Checksum: checksum,
	}
	if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created_at for record %s: %w", id, err)
	}
	if rec.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("corrupt updated_at for record %s: %w", id, err)
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt metadata for record %s: %w", id, err)
		}
	}
	return rec, nil
}

func collectRecords(rows *sql.Rows, op string, key any) ([]*record.Record, error) {
	defer rows.Close()

	var records []*record.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, storageErr(op, key, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, key, err)
	}
	return records, nil
}
