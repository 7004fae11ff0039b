// Package flusher drains the statement queue and delivers batches to the portal.
package flusher

import (
	"context"
	"fmt"
	"time"

	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/statement"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/metrics"
)

// Default flusher configuration constants.
const (
	defaultBatchSize     = 10
	defaultFlushInterval = 30 * time.Second
	defaultRetryDelay    = 5 * time.Second
)

// Statement abstracts what the flusher reads off the queue.
// Using the statement.Statement type for consistency.
type Statement = statement.Statement

// Sender delivers a batch of statements to the portal.
type Sender interface {
	SendBatch(ctx context.Context, batch []Statement) error
}

// Queue defines how the flusher receives statements.
type Queue interface {
	DequeueBatch(ctx context.Context, max int) []Statement
	Requeue(ctx context.Context, batch []Statement) int
	Len(ctx context.Context) int
	Notify() <-chan struct{}
}

// Journal holds statements until their delivery is confirmed.
type Journal interface {
	Remove(ctx context.Context, ids ...string) error
}

// Flusher moves statements from the queue to the portal in batches.
type Flusher interface {
	// Run starts the flush loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the flusher.
	// It makes a final delivery attempt for any remaining statements.
	Shutdown(ctx context.Context) error
}

// BatchFlusher implements Flusher.
type BatchFlusher struct {
	queue   Queue
	sender  Sender
	journal Journal
	name    string

	// Configuration
	batchSize     int
	flushInterval time.Duration
	retryDelay    time.Duration

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewBatchFlusher creates a new flusher with configuration options.
func NewBatchFlusher(queue Queue, sender Sender, journal Journal, opts ...Option) *BatchFlusher {
	f := &BatchFlusher{
		queue:         queue,
		sender:        sender,
		journal:       journal,
		name:          "flusher", // default name
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		retryDelay:    defaultRetryDelay,
		shutdown:      make(chan struct{}),
		done:          make(chan struct{}),
		logger:        logger.Get().Named("flusher"), // will be updated by options
	}

	// Apply all options
	for _, opt := range opts {
		opt(f)
	}

	// Set up logger with flusher name if not already set
	if f.name != "flusher" {
		f.logger = f.logger.Named(f.name)
	}

	return f
}

// Run starts the flush loop.
func (f *BatchFlusher) Run(ctx context.Context) {
	defer func() {
		close(f.done)
	}()

	ticker := time.NewTicker(f.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.shutdown:
			f.drain(ctx)
			return
		case <-f.queue.Notify():
			// A statement arrived. Only full batches leave here; the
			// remainder waits for the ticker.
			f.flush(ctx, false)
		case <-ticker.C:
			f.flush(ctx, true)
		}
	}
}

// Shutdown gracefully stops the flusher.
func (f *BatchFlusher) Shutdown(ctx context.Context) error {
	// Signal shutdown
	close(f.shutdown)

	// Wait for the flush loop to finish or context to timeout
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		f.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// flush drains the queue in batches. Without force it sends full batches
// only. A failed batch goes back to the front of the queue and the next
// attempt waits retryDelay, keeping delivery order intact.
func (f *BatchFlusher) flush(ctx context.Context, force bool) {
	for {
		if !force && f.queue.Len(ctx) < f.batchSize {
			return
		}

		batch := f.queue.DequeueBatch(ctx, f.batchSize)
		if len(batch) == 0 {
			return
		}

		if err := f.send(ctx, batch); err != nil {
			f.queue.Requeue(ctx, batch)
			metrics.RecordStatementsRequeued(len(batch))
			f.logger.Warn(ctx, "batch delivery failed, requeued",
				logger.Int("batch_size", len(batch)),
				logger.Error(err),
			)

			select {
			case <-ctx.Done():
				return
			case <-f.shutdown:
				return
			case <-time.After(f.retryDelay):
			}
			// The retried batch may be below batchSize.
			force = true
		}
	}
}

// send delivers a single batch and prunes the journal on confirmation.
func (f *BatchFlusher) send(ctx context.Context, batch []Statement) error {
	start := time.Now()
	err := f.sender.SendBatch(ctx, batch)
	metrics.RecordSendLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		metrics.RecordFlushFailure()
		metrics.RecordErrorByComponent("flusher", "send_error")
		return fmt.Errorf("send batch of %d: %w", len(batch), err)
	}

	// The journal keeps every statement until the portal confirms it.
	// Delivery already happened, so a prune failure is logged, not returned;
	// the worst case is a duplicate send after a restart.
	ids := make([]string, len(batch))
	for i := range batch {
		ids[i] = batch[i].ID
	}
	if err := f.journal.Remove(ctx, ids...); err != nil {
		metrics.RecordErrorByComponent("flusher", "journal_prune_error")
		f.logger.Error(ctx, "journal prune failed after delivery",
			logger.Int("batch_size", len(batch)),
			logger.Error(err),
		)
	}

	metrics.RecordFlushSuccess(len(batch))
	metrics.RecordStatementsDelivered(len(batch))
	return nil
}

// drain makes one final delivery attempt per remaining batch. On the first
// failure it stops; whatever was not confirmed stays in the journal and is
// restored on the next start.
func (f *BatchFlusher) drain(ctx context.Context) {
	for {
		batch := f.queue.DequeueBatch(ctx, f.batchSize)
		if len(batch) == 0 {
			return
		}

		if err := f.send(ctx, batch); err != nil {
			f.logger.Warn(ctx, "final flush failed, statements stay journaled",
				logger.Int("batch_size", len(batch)),
				logger.Error(err),
			)
			return
		}
	}
}
