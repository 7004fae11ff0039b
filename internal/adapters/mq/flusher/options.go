// Package flusher drains the statement queue and delivers batches to the portal.
package flusher

import (
	"time"

	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
)

// Option configures the BatchFlusher.
type Option func(*BatchFlusher)

// WithName sets the flusher name for identification and logging.
func WithName(name string) Option {
	return func(f *BatchFlusher) {
		if name != "" {
			f.name = name
		}
	}
}

// WithBatchSize sets how many statements a single delivery carries at most.
func WithBatchSize(size int) Option {
	return func(f *BatchFlusher) {
		if size > 0 {
			f.batchSize = size
		}
	}
}

// WithFlushInterval sets how often partial batches are forced out.
func WithFlushInterval(interval time.Duration) Option {
	return func(f *BatchFlusher) {
		if interval > 0 {
			f.flushInterval = interval
		}
	}
}

// WithRetryDelay sets the fixed wait between delivery attempts for a
// failed batch.
func WithRetryDelay(delay time.Duration) Option {
	return func(f *BatchFlusher) {
		if delay > 0 {
			f.retryDelay = delay
		}
	}
}

// WithLogger sets a custom logger for the flusher.
func WithLogger(logger logger.Logger) Option {
	return func(f *BatchFlusher) {
		if logger != nil {
			f.logger = logger
		}
	}
}
