// Package backup provides periodic snapshot export, restore and retention
// pruning over the record store. Snapshots are immutable gzip-compressed
// JSON files; re-applying a snapshot is idempotent.
package backup

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	agrierrors "github.com/agrozone/agricache/errors"
	"github.com/agrozone/agricache/record"
	"github.com/agrozone/agricache/store"
)

const snapshotExtension = ".snapshot.json.gz"

// Snapshot is the serialized form of one backup file.
type Snapshot struct {
	ID          string           `json:"id"`
	DataType    record.Type      `json:"data_type"`
	Timestamp   time.Time        `json:"timestamp"`
	RecordCount int              `json:"record_count"`
	Records     []*record.Record `json:"records"`
}

// RestoreResult reports the outcome of a restore. A restore that hits bad
// records does not abort: Restored counts successful upserts and Failed
// lists the record ids that could not be applied.
type RestoreResult struct {
	SnapshotID string
	Restored   int
	Failed     []string
}

// Config holds backup manager configuration.
type Config struct {
	// Directory is where snapshot files live.
	Directory string

	// RetentionAge is how old a snapshot may grow before CleanupOld removes
	// it.
	RetentionAge time.Duration

	// CleanupInterval is how often the background pruning runs once Start
	// is called.
	CleanupInterval time.Duration

	// CompressionLevel sets the gzip level for snapshot files.
	CompressionLevel int

	// Logger receives pruning results and restore failures. Defaults to a
	// no-op logger.
	Logger *zap.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(dir string) Config {
	return Config{
		Directory:        dir,
		RetentionAge:     7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
		CompressionLevel: gzip.DefaultCompression,
		Logger:           zap.NewNop(),
	}
}

// Manager exports and restores record snapshots and prunes old ones.
type Manager struct {
	store  store.RecordStore
	cfg    Config
	logger *zap.Logger

	stop      chan struct{}
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewManager creates a backup manager writing snapshots under cfg.Directory.
// Call Start to run retention pruning on a schedule.
func NewManager(rs store.RecordStore, cfg Config) (*Manager, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.CompressionLevel == 0 {
		cfg.CompressionLevel = gzip.DefaultCompression
	}
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, agrierrors.Wrap("NewManager", cfg.Directory, fmt.Errorf("%w: %w", agrierrors.ErrStorage, err))
	}

	return &Manager{
		store:  rs,
		cfg:    cfg,
		logger: cfg.Logger,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}, nil
}

// Create serializes all active and archived records of the given type into a
// new immutable snapshot and returns its identifier.
func (m *Manager) Create(ctx context.Context, t record.Type) (string, error) {
	records, err := m.store.ListForExport(ctx, t)
	if err != nil {
		return "", agrierrors.Wrap("Create", t, err)
	}

	snap := Snapshot{
		ID:          fmt.Sprintf("%s-%s-%s", t, time.Now().UTC().Format("20060102T150405"), uuid.NewString()[:8]),
		DataType:    t,
		Timestamp:   time.Now().UTC(),
		RecordCount: len(records),
		Records:     records,
	}

	path := m.snapshotPath(snap.ID)
	if err := writeSnapshot(path, &snap, m.cfg.CompressionLevel); err != nil {
		return "", agrierrors.Wrap("Create", snap.ID, err)
	}

	m.logger.Info("snapshot created",
		zap.String("snapshot_id", snap.ID),
		zap.String("type", string(t)),
		zap.Int("records", len(records)),
	)
	return snap.ID, nil
}

// Restore reads a snapshot and upserts its records, preserving original ids,
// versions and checksums, so restoring the same snapshot twice is
// idempotent. One bad record does not abort the import; its id is collected
// in the result instead. An interrupted restore leaves the store valid and
// explicitly partial.
func (m *Manager) Restore(ctx context.Context, id string) (*RestoreResult, error) {
	snap, err := readSnapshot(m.snapshotPath(id))
	if err != nil {
		return nil, agrierrors.Wrap("Restore", id, err)
	}

	result := &RestoreResult{SnapshotID: id}
	for _, rec := range snap.Records {
		if !rec.VerifyChecksum() {
			result.Failed = append(result.Failed, rec.ID)
			m.logger.Warn("skipping record with checksum mismatch",
				zap.String("snapshot_id", id),
				zap.String("record_id", rec.ID),
			)
			continue
		}
		if err := m.store.Upsert(ctx, rec); err != nil {
			result.Failed = append(result.Failed, rec.ID)
			m.logger.Warn("restore upsert failed",
				zap.String("snapshot_id", id),
				zap.String("record_id", rec.ID),
				zap.Error(err),
			)
			continue
		}
		result.Restored++
	}
	return result, nil
}

// List returns the ids of all snapshots, newest first. Order is by file
// modification time, so snapshots of different types interleave correctly
// instead of grouping by the type prefix in their names.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.cfg.Directory)
	if err != nil {
		return nil, agrierrors.Wrap("List", m.cfg.Directory, fmt.Errorf("%w: %w", agrierrors.ErrStorage, err))
	}

	type snapshotFile struct {
		id      string
		modTime time.Time
	}
	var files []snapshotFile
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, snapshotExtension) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, snapshotFile{
			id:      strings.TrimSuffix(name, snapshotExtension),
			modTime: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool {
		if !files[i].modTime.Equal(files[j].modTime) {
			return files[i].modTime.After(files[j].modTime)
		}
		return files[i].id > files[j].id
	})

	ids := make([]string, len(files))
	for i, f := range files {
		ids[i] = f.id
	}
	return ids, nil
}

// CleanupOld removes snapshots older than the retention age and returns the
// number removed.
func (m *Manager) CleanupOld(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(m.cfg.Directory)
	if err != nil {
		return 0, agrierrors.Wrap("CleanupOld", m.cfg.Directory, fmt.Errorf("%w: %w", agrierrors.ErrStorage, err))
	}

	cutoff := time.Now().Add(-m.cfg.RetentionAge)
	removed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if !strings.HasSuffix(entry.Name(), snapshotExtension) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(m.cfg.Directory, entry.Name())); err != nil {
				m.logger.Warn("failed to remove old snapshot",
					zap.String("file", entry.Name()),
					zap.Error(err),
				)
				continue
			}
			removed++
		}
	}
	return removed, nil
}

// Start runs retention pruning on the configured schedule until Stop.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		go m.cleanupLoop()
	})
}

// Stop halts the pruning schedule. Safe to call without Start.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	m.startOnce.Do(func() {
		close(m.done)
	})
	<-m.done
}

func (m *Manager) cleanupLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			n, err := m.CleanupOld(context.Background())
			if err != nil {
				m.logger.Warn("snapshot pruning failed", zap.Error(err))
				continue
			}
			if n > 0 {
				m.logger.Info("pruned old snapshots", zap.Int("count", n))
			}
		}
	}
}

func (m *Manager) snapshotPath(id string) string {
	return filepath.Join(m.cfg.Directory, id+snapshotExtension)
}

func writeSnapshot(path string, snap *Snapshot, level int) error {
	// Write to a temp file and rename so a crashed export never leaves a
	// half-written snapshot behind.
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("%w: %w", agrierrors.ErrStorage, err)
	}

	gw, err := gzip.NewWriterLevel(f, level)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", agrierrors.ErrStorage, err)
	}

	enc := json.NewEncoder(gw)
	if err := enc.Encode(snap); err != nil {
		gw.Close()
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", agrierrors.ErrStorage, err)
	}
	if err := gw.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", agrierrors.ErrStorage, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %w", agrierrors.ErrStorage, err)
	}
	return os.Rename(tmp, path)
}

func readSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, agrierrors.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("%w: %w", agrierrors.ErrStorage, err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", agrierrors.ErrCorruptSnapshot, err)
	}
	defer gr.Close()

	var snap Snapshot
	if err := json.NewDecoder(gr).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: %w", agrierrors.ErrCorruptSnapshot, err)
	}
	return &snap, nil
}
