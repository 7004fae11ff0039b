// Package auth manages the portal session lifecycle.
package auth

import (
	"golang.org/x/oauth2"

	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
)

// Option configures the Manager.
type Option func(*Manager)

// WithOAuthConfig enables Google sign-in with the given OAuth client.
// Without it LoginOAuth and AuthCodeURL return ErrOAuthNotConfigured.
func WithOAuthConfig(cfg *oauth2.Config) Option {
	return func(m *Manager) {
		if cfg != nil {
			m.oauth = cfg
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
