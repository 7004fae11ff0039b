// Package workspace holds the client-side view of the research portal.
package workspace

import (
	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
)

// Option configures the Manager.
type Option func(*Manager)

// WithTracker wires the xAPI tracker for activity statements.
func WithTracker(tracker Tracker) Option {
	return func(m *Manager) {
		if tracker != nil {
			m.tracker = tracker
		}
	}
}

// WithNotifier wires the notification sink for action outcomes.
func WithNotifier(notifier Notifier) Option {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithIdentity wires the session lookup used for statement actors.
func WithIdentity(identity Identity) Option {
	return func(m *Manager) {
		if identity != nil {
			m.identity = identity
		}
	}
}

// WithLogger sets a custom logger for the manager.
func WithLogger(logger logger.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}
