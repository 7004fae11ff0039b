// Package journal mirrors queued statements on disk until delivery is confirmed.
package journal

import (
	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
)

// Option configures the SQLiteJournal.
type Option func(*SQLiteJournal)

// WithLogger sets a custom logger for the journal.
func WithLogger(logger logger.Logger) Option {
	return func(j *SQLiteJournal) {
		if logger != nil {
			j.logger = logger
		}
	}
}
