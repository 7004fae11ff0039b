// Package ws maintains the live update channel to the portal.
//
// The portal pushes project, task, document and collaboration updates
// over a WebSocket. The client answers heartbeats, fans messages out to
// subscribers, and reconnects with linear backoff when the connection
// drops. After the configured number of consecutive failed attempts it
// stops trying; callers watch State for that.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/types"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/metrics"
)

// Default connection configuration constants.
const (
	defaultMaxReconnects     = 5
	defaultReconnectDelay    = 3 * time.Second
	defaultHeartbeatInterval = 30 * time.Second
	defaultHandshakeTimeout  = 10 * time.Second
	defaultSubscriberBuffer  = 16
)

// State describes the connection lifecycle.
type State int32

// Connection states. GivenUp is terminal: the reconnect budget is spent
// and live updates are off until the client is restarted.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateGivenUp
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateGivenUp:
		return "given_up"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TokenSource supplies the bearer token attached to the dial URL.
type TokenSource interface {
	Token() string
}

// TokenSourceFunc adapts a plain function to a TokenSource.
type TokenSourceFunc func() string

// Token implements TokenSource.
func (f TokenSourceFunc) Token() string { return f() }

// subscription is one registered listener.
type subscription struct {
	ch    chan types.Message
	kinds map[types.EventType]bool // nil means every kind
	once  sync.Once
}

func (s *subscription) wants(kind types.EventType) bool {
	return s.kinds == nil || s.kinds[kind]
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// Client is the WebSocket client for the portal's live update channel.
type Client struct {
	endpoint *url.URL
	name     string
	tokens   TokenSource
	dialer   *websocket.Dialer

	// Configuration
	maxReconnects     int
	reconnectDelay    time.Duration
	heartbeatInterval time.Duration
	subscriberBuffer  int

	state atomic.Int32

	subMu sync.RWMutex
	subs  map[*subscription]struct{}

	// Shutdown control
	shutdown     chan struct{}
	done         chan struct{}
	shutdownOnce sync.Once

	// Logging
	logger logger.Logger
}

// NewClient creates a live update client for the given ws:// or wss://
// endpoint.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("endpoint scheme must be ws or wss, got %q", u.Scheme)
	}

	c := &Client{
		endpoint:          u,
		name:              "ws", // default name
		dialer:            &websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout},
		maxReconnects:     defaultMaxReconnects,
		reconnectDelay:    defaultReconnectDelay,
		heartbeatInterval: defaultHeartbeatInterval,
		subscriberBuffer:  defaultSubscriberBuffer,
		subs:              make(map[*subscription]struct{}),
		shutdown:          make(chan struct{}),
		done:              make(chan struct{}),
		logger:            logger.Get().Named("ws"), // will be updated by options
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	// Set up logger with client name if not already set
	if c.name != "ws" {
		c.logger = c.logger.Named(c.name)
	}

	return c, nil
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
	metrics.UpdateWSConnected(s == StateConnected)
}

// Subscribe registers a listener for the given message kinds; with no
// kinds it receives every message. Slow listeners lose messages rather
// than stall the channel. The cancel func releases the subscription.
func (c *Client) Subscribe(kinds ...types.EventType) (<-chan types.Message, func()) {
	sub := &subscription{
		ch: make(chan types.Message, c.subscriberBuffer),
	}
	if len(kinds) > 0 {
		sub.kinds = make(map[types.EventType]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}

	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.subs == nil {
		// The client already stopped.
		sub.close()
		return sub.ch, func() {}
	}
	c.subs[sub] = struct{}{}

	cancel := func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if c.subs != nil {
			delete(c.subs, sub)
		}
		sub.close()
	}
	return sub.ch, cancel
}

// Run connects and keeps the channel alive until ctx is canceled, the
// client is shut down, or the reconnect budget is spent. Subscriber
// channels are closed when Run returns.
func (c *Client) Run(ctx context.Context) {
	defer func() {
		c.closeSubs()
		close(c.done)
	}()

	attempts := 0
	for {
		c.setState(StateConnecting)
		conn, err := c.dial(ctx)
		if err != nil {
			attempts++
			metrics.RecordErrorByComponent("ws", "dial_error")
			if attempts >= c.maxReconnects {
				c.setState(StateGivenUp)
				metrics.RecordWSGiveUp()
				c.logger.Error(ctx, "live updates unavailable, giving up",
					logger.Int("attempts", attempts),
				)
				return
			}

			// Linear backoff: the wait grows with each consecutive failure.
			delay := time.Duration(attempts) * c.reconnectDelay
			c.logger.Warn(ctx, "connect failed, retrying",
				logger.Int("attempt", attempts),
				logger.Duration("delay", delay),
				logger.Error(err),
			)
			select {
			case <-ctx.Done():
				c.setState(StateClosed)
				return
			case <-c.shutdown:
				c.setState(StateClosed)
				return
			case <-time.After(delay):
			}
			continue
		}

		if attempts > 0 {
			metrics.RecordWSReconnect()
		}
		attempts = 0
		c.setState(StateConnected)
		metrics.RecordWSConnect()
		c.logger.Info(ctx, "live update channel connected")

		c.serve(ctx, conn)

		select {
		case <-ctx.Done():
			c.setState(StateClosed)
			return
		case <-c.shutdown:
			c.setState(StateClosed)
			return
		default:
		}

		c.setState(StateDisconnected)
		c.logger.Warn(ctx, "live update channel lost, reconnecting")
	}
}

// Shutdown gracefully stops the client. It is safe to call more than
// once.
func (c *Client) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() { close(c.shutdown) })

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		c.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// dial opens one connection attempt, attaching the current token.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u := *c.endpoint
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			q := u.Query()
			q.Set("token", tok)
			u.RawQuery = q.Encode()
		}
	}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		// The token never goes in the log line.
		return nil, fmt.Errorf("dial %s: %w", c.endpoint, err)
	}
	return conn, nil
}

// serve reads frames off one connection until it dies or the client
// stops. A helper goroutine owns the heartbeat ticker and closes the
// connection on shutdown, which unblocks the read.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	var writeMu sync.Mutex
	stop := make(chan struct{})

	go func() {
		ticker := time.NewTicker(c.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-c.shutdown:
				_ = conn.Close()
				return
			case <-stop:
				return
			case <-ticker.C:
				c.writeHeartbeat(ctx, conn, &writeMu)
			}
		}
	}()

	defer func() {
		close(stop)
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg types.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			metrics.RecordErrorByComponent("ws", "decode_error")
			c.logger.Warn(ctx, "dropping malformed frame", logger.Error(err))
			continue
		}

		metrics.RecordWSMessage(string(msg.Type))
		if !msg.Type.Known() {
			c.logger.Debug(ctx, "unknown message kind", logger.String("type", string(msg.Type)))
		}

		// The portal expects heartbeats answered, and subscribers may
		// still want to observe them.
		if msg.Type == types.EventHeartbeat {
			c.writeHeartbeat(ctx, conn, &writeMu)
		}

		c.dispatch(msg)
	}
}

// writeHeartbeat sends one heartbeat frame. gorilla allows a single
// writer at a time, hence the mutex shared with the ticker goroutine.
func (c *Client) writeHeartbeat(ctx context.Context, conn *websocket.Conn, mu *sync.Mutex) {
	mu.Lock()
	defer mu.Unlock()

	beat := types.Message{Type: types.EventHeartbeat, Timestamp: time.Now().UTC()}
	if err := conn.WriteJSON(beat); err != nil {
		metrics.RecordErrorByComponent("ws", "heartbeat_error")
		c.logger.Debug(ctx, "heartbeat write failed", logger.Error(err))
	}
}

// dispatch fans one message out to matching subscribers. A full
// subscriber buffer drops the message for that subscriber only.
func (c *Client) dispatch(msg types.Message) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for sub := range c.subs {
		if !sub.wants(msg.Type) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			metrics.RecordWSDropped()
		}
	}
}

// closeSubs releases every subscriber once the client stops for good.
func (c *Client) closeSubs() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for sub := range c.subs {
		sub.close()
	}
	c.subs = nil
}
