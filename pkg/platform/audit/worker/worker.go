package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	audit "custody/pkg/platform/audit"
)

// Outbox is the transactional source of unrelayed audit events.
type Outbox interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Producer delivers outbox entries to the message bus.
type Producer interface {
	Publish(ctx context.Context, entries []audit.OutboxEntry) error
}

const (
	defaultBatchSize = 100
	defaultInterval  = time.Second
)

// Worker relays outbox rows to the message bus. Rows are marked published in
// the same transaction that locked them, so a failed publish leaves them for
// the next tick (at-least-once delivery).
type Worker struct {
	outbox    Outbox
	producer  Producer
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func NewWorker(outbox Outbox, producer Producer, opts ...Option) *Worker {
	w := &Worker{
		outbox:    outbox,
		producer:  producer,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run relays until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := w.RunOnce(ctx)
			if err != nil && w.logger != nil {
				w.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
			}
			if n > 0 && w.logger != nil {
				w.logger.DebugContext(ctx, "outbox relayed", "count", n)
			}
		}
	}
}

// RunOnce relays a single batch and returns how many entries were published.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	var published int
	err := w.outbox.RunInTx(ctx, func(txCtx context.Context) error {
		entries, err := w.outbox.FetchUnpublished(txCtx, w.batchSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		if err := w.producer.Publish(txCtx, entries); err != nil {
			return err
		}
		ids := make([]uuid.UUID, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		if err := w.outbox.MarkPublished(txCtx, ids, time.Now()); err != nil {
			return err
		}
		published = len(entries)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return published, nil
}
