// Package notify fans user-facing notifications out to listeners.
package notify

import (
	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
)

// Option configures the Center.
type Option func(*Center)

// WithHistorySize sets how many notifications are retained for late
// subscribers.
func WithHistorySize(size int) Option {
	return func(c *Center) {
		if size > 0 {
			c.historySize = size
		}
	}
}

// WithSubscriberBuffer sets the per-subscriber channel capacity.
func WithSubscriberBuffer(size int) Option {
	return func(c *Center) {
		if size > 0 {
			c.subscriberBuffer = size
		}
	}
}

// WithLogger sets a custom logger for the center.
func WithLogger(logger logger.Logger) Option {
	return func(c *Center) {
		if logger != nil {
			c.logger = logger
		}
	}
}
