// Package ws maintains the live update channel to the portal.
package ws

import (
	"time"

	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
)

// Option configures the Client.
type Option func(*Client)

// WithName sets the client name for identification and logging.
func WithName(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.name = name
		}
	}
}

// WithTokenSource sets where the dial token comes from.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		if tokens != nil {
			c.tokens = tokens
		}
	}
}

// WithMaxReconnects sets how many consecutive failed connection attempts
// the client tolerates before giving up.
func WithMaxReconnects(max int) Option {
	return func(c *Client) {
		if max > 0 {
			c.maxReconnects = max
		}
	}
}

// WithReconnectDelay sets the backoff unit. The wait before attempt n
// is n times this delay.
func WithReconnectDelay(delay time.Duration) Option {
	return func(c *Client) {
		if delay > 0 {
			c.reconnectDelay = delay
		}
	}
}

// WithHeartbeatInterval sets how often the client sends its own
// heartbeat frame.
func WithHeartbeatInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.heartbeatInterval = interval
		}
	}
}

// WithHandshakeTimeout bounds a single dial attempt.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.dialer.HandshakeTimeout = timeout
		}
	}
}

// WithSubscriberBuffer sets the per-subscriber channel capacity. A
// subscriber that falls further behind loses messages.
func WithSubscriberBuffer(size int) Option {
	return func(c *Client) {
		if size > 0 {
			c.subscriberBuffer = size
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(logger logger.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}
