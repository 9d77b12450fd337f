package agricache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/agrozone/agricache/metrics"
	"github.com/agrozone/agricache/record"
	"github.com/agrozone/agricache/store"
)

// Op is a write-behind operation type.
type Op string

const (
	// OpInsert persists a new record.
	OpInsert Op = "insert"
	// OpUpdate mutates an existing record by id.
	OpUpdate Op = "update"
)

// WriteItem is one buffered write. For OpUpdate, ID names the target record;
// for OpInsert the store assigns the id at flush time.
type WriteItem struct {
	Op         Op
	ID         string
	Type       record.Type
	Payload    record.Payload
	Metadata   record.Metadata
	EnqueuedAt time.Time
}

// WriterConfig configures a BatchWriter.
type WriterConfig struct {
	// BatchSize triggers a flush when the accumulating batch reaches it.
	BatchSize int

	// FlushTimeout triggers a flush when this much time has passed since
	// the last flush, regardless of batch size.
	FlushTimeout time.Duration

	// QueueCapacity bounds the enqueue buffer. When full, new items are
	// shed rather than blocking the producer.
	QueueCapacity int

	// Logger receives drop warnings and per-item flush failures. Defaults
	// to a no-op logger.
	Logger *zap.Logger

	// Exporter is the metrics sink. Defaults to in-process counters.
	Exporter metrics.Exporter
}

// DefaultWriterConfig returns the default writer configuration.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     50,
		FlushTimeout:  5 * time.Second,
		QueueCapacity: 1000,
	}
}

// BatchWriter absorbs write latency for producers by buffering operations
// and flushing them to the record store in batches. A single background
// worker alternates between accumulating and flushing; a flush fires when
// the batch reaches BatchSize or FlushTimeout elapses since the last flush,
// whichever comes first.
//
// The writer is best-effort: enqueue never blocks, a full queue sheds the
// item, and flush failures are logged, not retried. Producers that need
// synchronous durability should call the record store directly.
type BatchWriter struct {
	store    store.RecordStore
	cfg      WriterConfig
	logger   *zap.Logger
	exporter metrics.Exporter

	queue     chan WriteItem
	stop      chan struct{}
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewBatchWriter creates a writer flushing into the given store and starts
// its worker.
func NewBatchWriter(rs store.RecordStore, cfg WriterConfig) *BatchWriter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = DefaultWriterConfig().FlushTimeout
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultWriterConfig().QueueCapacity
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Exporter == nil {
		cfg.Exporter = metrics.NewStandardExporter()
	}

	w := &BatchWriter{
		store:    rs,
		cfg:      cfg,
		logger:   cfg.Logger,
		exporter: cfg.Exporter,
		queue:    make(chan WriteItem, cfg.QueueCapacity),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue buffers a write and reports whether it was accepted. When the
// queue is at capacity the item is dropped and a warning recorded; the
// producer is never blocked. This shedding is a known, accepted loss mode
// under sustained overload.
func (w *BatchWriter) Enqueue(item WriteItem) bool {
	// After Stop the worker is gone; a buffered send would succeed and the
	// item would vanish without a trace. Take the drop path instead.
	if w.closed.Load() {
		w.exporter.RecordDrop()
		w.logger.Warn("writer stopped, dropping item",
			zap.String("op", string(item.Op)),
			zap.String("record_id", item.ID),
			zap.String("type", string(item.Type)),
		)
		return false
	}

	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now()
	}

	select {
	case w.queue <- item:
		w.exporter.RecordEnqueue()
		return true
	default:
		w.exporter.RecordDrop()
		w.logger.Warn("write queue full, dropping item",
			zap.String("op", string(item.Op)),
			zap.String("record_id", item.ID),
			zap.String("type", string(item.Type)),
		)
		return false
	}
}

// Stop flushes any partial batch once and stops the worker. Items enqueued
// after Stop are dropped.
func (w *BatchWriter) Stop() {
	w.closeOnce.Do(func() {
		w.closed.Store(true)
		close(w.stop)
		<-w.done
	})
}

// Metrics returns a snapshot of writer counters.
func (w *BatchWriter) Metrics() metrics.Snapshot {
	return w.exporter.GetSnapshot()
}

// run is the worker loop. It blocks on the queue with a timeout, waking on
// item arrival or timer expiry; that select realizes the dual flush trigger.
func (w *BatchWriter) run() {
	defer close(w.done)

	batch := make([]WriteItem, 0, w.cfg.BatchSize)
	timer := time.NewTimer(w.cfg.FlushTimeout)
	defer timer.Stop()

	resetTimer := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.cfg.FlushTimeout)
	}

	for {
		select {
		case item := <-w.queue:
			batch = append(batch, item)
			if len(batch) >= w.cfg.BatchSize {
				w.flush(batch)
				batch = batch[:0]
				resetTimer()
			}

		case <-timer.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
			timer.Reset(w.cfg.FlushTimeout)

		case <-w.stop:
			// Drain whatever was queued before the stop signal, then flush
			// the partial batch once.
			for {
				select {
				case item := <-w.queue:
					batch = append(batch, item)
					continue
				default:
				}
				break
			}
			if len(batch) > 0 {
				w.flush(batch)
			}
			return
		}
	}
}

// flush applies each item independently: one item's failure is logged and
// does not abort the rest of the batch. There is no retry; this layer is
// best-effort, not exactly-once.
func (w *BatchWriter) flush(batch []WriteItem) {
	ctx := context.Background()

	for _, item := range batch {
		var err error
		switch item.Op {
		case OpInsert:
			_, err = w.store.Save(ctx, item.Type, item.Payload, item.Metadata)
		case OpUpdate:
			err = w.store.Update(ctx, item.ID, item.Payload, item.Metadata)
		default:
			w.logger.Warn("unknown write operation, skipping",
				zap.String("op", string(item.Op)),
				zap.String("record_id", item.ID),
			)
			w.exporter.RecordWriteFailure()
			continue
		}
		if err != nil {
			w.exporter.RecordWriteFailure()
			w.logger.Warn("batch write failed",
				zap.String("op", string(item.Op)),
				zap.String("record_id", item.ID),
				zap.String("type", string(item.Type)),
				zap.Error(err),
			)
		}
	}

	w.exporter.RecordFlush(len(batch))
}
