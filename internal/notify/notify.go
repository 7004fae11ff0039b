// Package notify fans user-facing notifications out to listeners.
//
// Components publish toast-style notices (task toggled, upload done,
// login failed) and interested surfaces such as the CLI watch mode
// subscribe. A bounded history keeps the latest notices for surfaces
// that attach late.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/types"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/metrics"
)

// Default notification center configuration constants.
const (
	defaultHistorySize      = 50
	defaultSubscriberBuffer = 16
)

// subscription is one registered listener.
type subscription struct {
	ch   chan types.Notification
	once sync.Once
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// Center collects and distributes notifications.
type Center struct {
	mu      sync.Mutex
	history []types.Notification
	subs    map[*subscription]struct{}
	closed  bool

	// Configuration
	historySize      int
	subscriberBuffer int

	// Logging
	logger logger.Logger
}

// NewCenter creates a notification center with configuration options.
func NewCenter(opts ...Option) *Center {
	c := &Center{
		subs:             make(map[*subscription]struct{}),
		historySize:      defaultHistorySize,
		subscriberBuffer: defaultSubscriberBuffer,
		logger:           logger.Get().Named("notify"), // will be updated by options
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Publish records a notification and hands it to every subscriber.
// Slow subscribers lose it rather than block the publisher.
func (c *Center) Publish(ctx context.Context, level types.Level, text string) {
	n := types.Notification{Level: level, Text: text, At: time.Now().UTC()}
	metrics.RecordNotification(string(level))
	c.logger.Debug(ctx, "notification", logger.String("level", string(level)), logger.String("text", text))

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.history = append(c.history, n)
	if len(c.history) > c.historySize {
		c.history = c.history[len(c.history)-c.historySize:]
	}

	for sub := range c.subs {
		select {
		case sub.ch <- n:
		default:
		}
	}
}

// Recent returns the retained notifications, oldest first.
func (c *Center) Recent() []types.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]types.Notification, len(c.history))
	copy(out, c.history)
	return out
}

// Subscribe registers a listener. The cancel func releases it.
func (c *Center) Subscribe() (<-chan types.Notification, func()) {
	sub := &subscription{ch: make(chan types.Notification, c.subscriberBuffer)}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		sub.close()
		return sub.ch, func() {}
	}
	c.subs[sub] = struct{}{}

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, sub)
		sub.close()
	}
	return sub.ch, cancel
}

// Close releases every subscriber. Further publishes are dropped.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	for sub := range c.subs {
		sub.close()
	}
	c.subs = make(map[*subscription]struct{})
}
