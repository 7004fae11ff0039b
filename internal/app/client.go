// Package app assembles the HU Lab portal client: REST access, session
// handling, the statement tracker pipeline, the live update channel and
// the workspace cache, wired together behind one facade.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"

	"github.com/xiangenhu/polyuhulab-sub001/internal/adapters/journal"
	"github.com/xiangenhu/polyuhulab-sub001/internal/adapters/mq/flusher"
	"github.com/xiangenhu/polyuhulab-sub001/internal/adapters/mq/queue"
	"github.com/xiangenhu/polyuhulab-sub001/internal/adapters/rest"
	"github.com/xiangenhu/polyuhulab-sub001/internal/adapters/ws"
	"github.com/xiangenhu/polyuhulab-sub001/internal/auth"
	"github.com/xiangenhu/polyuhulab-sub001/internal/config"
	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/dedupe"
	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/model"
	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/statement"
	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/types"
	"github.com/xiangenhu/polyuhulab-sub001/internal/notify"
	"github.com/xiangenhu/polyuhulab-sub001/internal/workspace"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/metrics"
)

// journalFile is the statement journal's name inside the state directory.
const journalFile = "journal.db"

// Client is the headless portal client.
type Client struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	portal   *rest.Client
	sessions *auth.Manager
	journal  journal.Journal
	queue    queue.Queue
	deduper  dedupe.Deduper
	flusher  flusher.Flusher
	live     *ws.Client
	space    *workspace.Manager
	notices  *notify.Center

	// State
	started  bool
	runCtx   context.Context
	cancel   context.CancelFunc
	pumpDone chan struct{}

	// Logging
	logger logger.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a custom logger for the client.
func WithLogger(logger logger.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a Client over the given configuration.
func New(cfg *config.Config, opts ...Option) *Client {
	if cfg == nil {
		cfg = config.New(context.Background())
	}

	c := &Client{
		cfg:    cfg,
		logger: logger.Get().Named("app"), // will be updated by options
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start initializes and starts the client components: the REST client,
// the session manager, the statement pipeline with its journal restore,
// and, when a session already exists, the live update channel.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	c.logger.Info(ctx, "starting hulab client...")

	c.portal = rest.NewClient(c.cfg.BaseURL,
		rest.WithTimeout(c.cfg.HTTPTimeout()),
		rest.WithTokenSource(rest.TokenSourceFunc(c.sessionToken)),
	)

	sessions, err := auth.NewManager(c.portal, c.cfg.StateDir, c.authOptions()...)
	if err != nil {
		return fmt.Errorf("session manager: %w", err)
	}
	c.sessions = sessions

	store, err := journal.Open(filepath.Join(c.cfg.StateDir, journalFile))
	if err != nil {
		return fmt.Errorf("open statement journal: %w", err)
	}
	c.journal = store

	c.queue = queue.NewInMemoryQueue(
		queue.WithCapacity(c.cfg.QueueSize),
	)
	c.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(c.cfg.DedupeSize),
	)
	metrics.UpdateQueueCapacity(c.cfg.QueueSize)

	c.flusher = flusher.NewBatchFlusher(c.queue, c.portal, c.journal,
		flusher.WithBatchSize(c.cfg.BatchSize),
		flusher.WithFlushInterval(c.cfg.FlushInterval()),
		flusher.WithRetryDelay(c.cfg.RetryDelay()),
	)

	c.notices = notify.NewCenter()
	c.space = workspace.NewManager(c.portal,
		workspace.WithTracker(c),
		workspace.WithNotifier(c.notices),
		workspace.WithIdentity(c.sessions),
	)

	restored, err := c.restore(ctx)
	if err != nil {
		c.logger.Warn(ctx, "journal restore failed", logger.Error(err))
	} else if restored > 0 {
		c.logger.Info(ctx, "restored journaled statements", logger.Int("count", restored))
	}

	c.runCtx, c.cancel = context.WithCancel(context.Background())
	go c.flusher.Run(c.runCtx)

	if c.sessions.Valid() {
		if err := c.startLiveLocked(); err != nil {
			c.logger.Warn(ctx, "live channel not started", logger.Error(err))
		}
	}

	c.started = true
	c.logger.Info(ctx, "hulab client started",
		logger.String("portal", c.cfg.BaseURL),
		logger.Int("queueSize", c.cfg.QueueSize),
		logger.Int("batchSize", c.cfg.BatchSize),
		logger.Bool("loggedIn", c.sessions.Valid()),
	)

	return nil
}

// Stop gracefully shuts down the client. The flusher makes a final
// delivery attempt, so a clean stop leaves no deliverable statement
// behind; whatever the portal did not confirm stays in the journal.
//
// The waiting happens without the client lock held: the flusher's last
// sends and the live channel's dial loop both read the session token
// through it.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	fl, q, store, notices, cancel := c.flusher, c.queue, c.journal, c.notices, c.cancel
	c.mu.Unlock()

	c.logger.Info(ctx, "stopping hulab client...")

	live, done := c.detachLive()
	c.haltLive(ctx, live, done)

	if err := fl.Shutdown(ctx); err != nil {
		c.logger.Warn(ctx, "flusher shutdown", logger.Error(err))
	}

	cancel()

	if err := q.Close(); err != nil {
		c.logger.Warn(ctx, "queue close", logger.Error(err))
	}
	if err := store.Close(); err != nil {
		c.logger.Warn(ctx, "journal close", logger.Error(err))
	}
	notices.Close()

	c.logger.Info(ctx, "hulab client stopped")
	return nil
}

// Track validates, journals and enqueues one statement for delivery.
// A duplicate ID is rejected without touching the queue. When the queue
// refuses the statement, the journal entry and the dedupe record are
// undone so a later retry of the same ID can succeed.
func (c *Client) Track(ctx context.Context, s statement.Statement) error {
	c.mu.RLock()
	if !c.started {
		c.mu.RUnlock()
		return ErrNotStarted
	}
	q, deduper, store := c.queue, c.deduper, c.journal
	c.mu.RUnlock()

	if err := s.Validate(); err != nil {
		metrics.RecordStatementRejected("invalid")
		return err
	}

	if deduper.SeenAndRecord(ctx, s.ID) {
		metrics.RecordStatementDuplicate()
		return fmt.Errorf("%w: %s", ErrDuplicateStatement, s.ID)
	}

	if err := store.Append(ctx, s); err != nil {
		// Delivery is still attempted; only crash recovery for this
		// statement is lost.
		c.logger.Warn(ctx, "statement not journaled",
			logger.String("id", s.ID),
			logger.Error(err),
		)
	}

	if !q.Enqueue(ctx, s) {
		deduper.Unrecord(ctx, s.ID)
		if err := store.Remove(ctx, s.ID); err != nil {
			c.logger.Warn(ctx, "journal cleanup after rejected enqueue",
				logger.String("id", s.ID),
				logger.Error(err),
			)
		}
		metrics.RecordStatementRejected("queue_full")
		return fmt.Errorf("%w: %s", queue.ErrFull, s.ID)
	}

	metrics.RecordStatementTracked()
	metrics.UpdateQueueSize(q.Len(ctx))
	return nil
}

// Login signs in with portal credentials and brings the live channel up.
func (c *Client) Login(ctx context.Context, email, password string) (auth.Session, error) {
	sessions, err := c.components()
	if err != nil {
		return auth.Session{}, err
	}

	session, err := sessions.LoginPassword(ctx, email, password)
	if err != nil {
		c.publishLoginError(ctx, err)
		return auth.Session{}, err
	}

	c.afterLogin(ctx, session)
	return session, nil
}

// LoginWithGoogle completes a Google sign-in from an authorization code.
func (c *Client) LoginWithGoogle(ctx context.Context, code string) (auth.Session, error) {
	sessions, err := c.components()
	if err != nil {
		return auth.Session{}, err
	}

	session, err := sessions.LoginOAuth(ctx, code)
	if err != nil {
		c.publishLoginError(ctx, err)
		return auth.Session{}, err
	}

	c.afterLogin(ctx, session)
	return session, nil
}

// Logout emits the sign-out statement, tears down the live channel and
// wipes the session.
func (c *Client) Logout(ctx context.Context) error {
	sessions, err := c.components()
	if err != nil {
		return err
	}

	if user, ok := sessions.CurrentUser(); ok {
		c.trackSession(ctx, user, statement.LoggedOut)
	}

	live, done := c.detachLive()
	c.haltLive(ctx, live, done)

	if err := sessions.Logout(ctx); err != nil {
		return err
	}
	c.notices.Publish(ctx, types.LevelInfo, "Signed out")
	return nil
}

// Workspace returns the cached portal workspace.
func (c *Client) Workspace() *workspace.Manager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.space
}

// Sessions returns the session manager.
func (c *Client) Sessions() *auth.Manager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessions
}

// Notifications returns the notification center.
func (c *Client) Notifications() *notify.Center {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.notices
}

// LiveState reports the live update channel state.
func (c *Client) LiveState() ws.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.live == nil {
		return ws.StateDisconnected
	}
	return c.live.State()
}

// ConnectLive brings the live update channel up if it is not running.
func (c *Client) ConnectLive() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return ErrNotStarted
	}
	return c.startLiveLocked()
}

// GetStats returns client statistics for monitoring.
func (c *Client) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := map[string]interface{}{
		"started":       c.started,
		"queueCapacity": c.cfg.QueueSize,
		"batchSize":     c.cfg.BatchSize,
	}

	if c.started {
		ctx := context.Background()
		queueLen := c.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["dedupeSize"] = c.deduper.Size()
		stats["loggedIn"] = c.sessions.Valid()
		if c.live != nil {
			stats["liveState"] = c.live.State().String()
		} else {
			stats["liveState"] = ws.StateDisconnected.String()
		}
		if n, err := c.journal.Len(ctx); err == nil {
			stats["journalLength"] = n
		}

		metrics.UpdateQueueSize(queueLen)
	}

	return stats
}

// components guards access to the session manager before Start.
func (c *Client) components() (*auth.Manager, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.started {
		return nil, ErrNotStarted
	}
	return c.sessions, nil
}

// sessionToken feeds the REST and WebSocket clients. Before Start it
// yields the empty token.
func (c *Client) sessionToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sessions == nil {
		return ""
	}
	return c.sessions.Token()
}

// authOptions derives the session manager options from configuration.
func (c *Client) authOptions() []auth.Option {
	opts := []auth.Option{}
	if c.cfg.OAuthClientID != "" {
		opts = append(opts, auth.WithOAuthConfig(&oauth2.Config{
			ClientID:     c.cfg.OAuthClientID,
			ClientSecret: c.cfg.OAuthClientSecret,
			RedirectURL:  c.cfg.OAuthRedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  c.cfg.OAuthAuthURL,
				TokenURL: c.cfg.OAuthTokenURL,
			},
		}))
	}
	return opts
}

// restore moves journaled statements back into the queue after a
// restart. Statements that do not fit stay journaled for the next run.
func (c *Client) restore(ctx context.Context) (int, error) {
	pending, err := c.journal.Pending(ctx)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, s := range pending {
		// Re-record so a replayed Track of the same ID still dedupes.
		c.deduper.SeenAndRecord(ctx, s.ID)
		if !c.queue.Enqueue(ctx, s) {
			c.logger.Warn(ctx, "queue full during restore, remainder stays journaled",
				logger.Int("restored", restored),
				logger.Int("pending", len(pending)),
			)
			break
		}
		restored++
	}

	metrics.UpdateQueueSize(c.queue.Len(ctx))
	return restored, nil
}

// startLiveLocked dials the live channel and starts the pump that feeds
// messages into the workspace. Callers must hold c.mu.
func (c *Client) startLiveLocked() error {
	if c.live != nil {
		return nil
	}

	live, err := ws.NewClient(c.cfg.WSEndpoint(),
		ws.WithTokenSource(ws.TokenSourceFunc(c.sessionToken)),
		ws.WithMaxReconnects(c.cfg.WSMaxReconnect),
		ws.WithReconnectDelay(c.cfg.WSReconnectDelay()),
		ws.WithHeartbeatInterval(c.cfg.WSHeartbeatInterval()),
	)
	if err != nil {
		return fmt.Errorf("live channel: %w", err)
	}
	c.live = live
	c.pumpDone = make(chan struct{})

	sub, cancel := live.Subscribe()
	go live.Run(c.runCtx)
	go func(space *workspace.Manager, done chan struct{}) {
		defer close(done)
		defer cancel()
		for msg := range sub {
			space.Apply(c.runCtx, msg)
		}
	}(c.space, c.pumpDone)

	return nil
}

// detachLive removes the live channel from the client and hands back
// what must be shut down.
func (c *Client) detachLive() (*ws.Client, chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	live, done := c.live, c.pumpDone
	c.live, c.pumpDone = nil, nil
	return live, done
}

// haltLive shuts a detached live channel down and waits for its pump.
func (c *Client) haltLive(ctx context.Context, live *ws.Client, done chan struct{}) {
	if live == nil {
		return
	}
	if err := live.Shutdown(ctx); err != nil {
		c.logger.Warn(ctx, "live channel shutdown", logger.Error(err))
	}
	<-done
}

// afterLogin announces the session and emits the sign-in statement.
func (c *Client) afterLogin(ctx context.Context, session auth.Session) {
	name := session.User.Name
	if name == "" {
		name = session.User.Email
	}
	c.notices.Publish(ctx, types.LevelSuccess, fmt.Sprintf("Welcome back, %s", name))
	c.trackSession(ctx, session.User, statement.LoggedIn)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.startLiveLocked(); err != nil {
		c.logger.Warn(ctx, "live channel not started", logger.Error(err))
	}
}

// trackSession emits a sign-in or sign-out statement, best effort.
func (c *Client) trackSession(ctx context.Context, user model.User, verb statement.Verb) {
	s := statement.New(
		statement.AgentMbox(user.Name, user.Email),
		verb,
		statement.Activity(statement.ActivityIRI("portal", "session"), "HU Lab Portal", "application"),
	)
	if err := c.Track(ctx, s); err != nil {
		c.logger.Debug(ctx, "session statement not tracked", logger.Error(err))
	}
}

// publishLoginError turns the typed auth errors into user-facing text.
func (c *Client) publishLoginError(ctx context.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrEmailNotVerified):
		c.notices.Publish(ctx, types.LevelWarning, "Please verify your email address before signing in")
	case errors.Is(err, auth.ErrAccountLocked):
		c.notices.Publish(ctx, types.LevelError, "Account locked, contact the lab administrator")
	case errors.Is(err, auth.ErrAuthenticationFailed):
		c.notices.Publish(ctx, types.LevelError, "Email or password incorrect")
	default:
		c.notices.Publish(ctx, types.LevelError, "Sign-in failed")
	}
}
