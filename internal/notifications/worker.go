package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/lionsgeek-toasts/internal/toasts"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// RecorderConfig contains history recorder configuration.
type RecorderConfig struct {
	BatchSize       int
	FlushInterval   time.Duration
	BufferSize      int
	Retention       time.Duration
	CleanupInterval time.Duration
}

// DefaultRecorderConfig returns default history recorder configuration.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		BatchSize:       100,
		FlushInterval:   2 * time.Second,
		BufferSize:      1024,
		Retention:       30 * 24 * time.Hour,
		CleanupInterval: time.Hour,
	}
}

// HistoryRecorder buffers closed toasts and writes them in batches.
// Sessions never wait on storage: when the buffer is full records are dropped.
type HistoryRecorder struct {
	config RecorderConfig
	repo   HistoryRepository
	clock  clockwork.Clock

	records chan HistoryRecord

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHistoryRecorder creates a new history recorder.
func NewHistoryRecorder(config RecorderConfig, repo HistoryRepository, clock clockwork.Clock) *HistoryRecorder {
	return &HistoryRecorder{
		config:  config,
		repo:    repo,
		clock:   clock,
		records: make(chan HistoryRecord, config.BufferSize),
		stopCh:  make(chan struct{}),
	}
}

// Listener returns a toast listener recording closes for sessionID.
func (r *HistoryRecorder) Listener(sessionID string) toasts.Listener {
	return &sessionRecorder{recorder: r, sessionID: sessionID}
}

type sessionRecorder struct {
	recorder  *HistoryRecorder
	sessionID string
}

func (s *sessionRecorder) OnShow(toasts.Entry) {}

func (s *sessionRecorder) OnHide(entry toasts.Entry, reason toasts.Reason) {
	s.recorder.enqueue(HistoryRecord{
		ID:             uuid.NewString(),
		SessionID:      s.sessionID,
		MessageID:      entry.Event.MessageID,
		ConversationID: entry.Event.ConversationID,
		SenderName:     entry.Event.SenderName,
		AttachmentKind: entry.Event.AttachmentKind,
		Outcome:        reason,
		ShownAt:        entry.ShownAt,
		ClosedAt:       s.recorder.clock.Now(),
	})
}

func (r *HistoryRecorder) enqueue(rec HistoryRecord) {
	select {
	case r.records <- rec:
	default:
		slog.Warn("history buffer full, dropping record", "message_id", rec.MessageID)
		recordHistory("dropped", 1)
	}
}

// Start launches the flush loop.
func (r *HistoryRecorder) Start(ctx context.Context) {
	slog.Info("starting history recorder",
		"batch_size", r.config.BatchSize,
		"flush_interval", r.config.FlushInterval,
		"retention", r.config.Retention,
	)

	r.wg.Add(1)
	go r.run(ctx)
}

// Stop flushes buffered records and stops the loop.
func (r *HistoryRecorder) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
	slog.Info("history recorder stopped")
}

func (r *HistoryRecorder) run(ctx context.Context) {
	defer r.wg.Done()

	flushTicker := r.clock.NewTicker(r.config.FlushInterval)
	defer flushTicker.Stop()

	cleanupTicker := r.clock.NewTicker(r.config.CleanupInterval)
	defer cleanupTicker.Stop()

	batch := make([]HistoryRecord, 0, r.config.BatchSize)

	for {
		select {
		case <-ctx.Done():
			r.drain(batch)
			return
		case <-r.stopCh:
			r.drain(batch)
			return
		case rec := <-r.records:
			batch = append(batch, rec)
			if len(batch) >= r.config.BatchSize {
				batch = r.flush(ctx, batch)
			}
		case <-flushTicker.Chan():
			batch = r.flush(ctx, batch)
		case <-cleanupTicker.Chan():
			r.cleanup(ctx)
		}
	}
}

// drain writes whatever is buffered using a fresh context.
func (r *HistoryRecorder) drain(batch []HistoryRecord) {
	for {
		select {
		case rec := <-r.records:
			batch = append(batch, rec)
		default:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			r.flush(ctx, batch)
			return
		}
	}
}

func (r *HistoryRecorder) flush(ctx context.Context, batch []HistoryRecord) []HistoryRecord {
	if len(batch) == 0 {
		return batch
	}

	start := time.Now()
	if err := r.repo.InsertBatch(ctx, batch); err != nil {
		slog.Error("failed to write history batch", "count", len(batch), "error", err)
		recordHistory("failed", len(batch))
	} else {
		slog.Debug("history batch written", "count", len(batch))
		recordHistory("stored", len(batch))
	}
	recordFlushDuration(time.Since(start))

	return batch[:0]
}

func (r *HistoryRecorder) cleanup(ctx context.Context) {
	deleted, err := r.repo.DeleteOlderThan(ctx, r.config.Retention)
	if err != nil {
		slog.Error("failed to delete old history records", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("deleted old history records", "count", deleted)
	}
}
