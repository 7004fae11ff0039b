// Package auth manages the portal session lifecycle.
//
// A session is established by password login or a Google OAuth exchange,
// persisted to disk so restarts stay logged in, and considered dead the
// moment the token's decoded expiry passes. The portal signs the token;
// the client never verifies it, it only reads the expiry claim.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/oauth2"

	"github.com/xiangenhu/polyuhulab-sub001/internal/adapters/rest"
	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/model"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/metrics"
)

// sessionFile is the name of the persisted session inside the state directory.
const sessionFile = "session.json"

// Session is the locally persisted login state.
type Session struct {
	Token     string     `json:"token"`
	User      model.User `json:"user"`
	IssuedAt  time.Time  `json:"issuedAt"`
	ExpiresAt time.Time  `json:"expiresAt,omitzero"`
}

// Portal is the slice of the REST client the manager depends on.
type Portal interface {
	LoginPassword(ctx context.Context, email, password string) (rest.Credentials, error)
	ExchangeOAuthToken(ctx context.Context, accessToken string) (rest.Credentials, error)
	Logout(ctx context.Context) error
	ExtendSession(ctx context.Context) (rest.Credentials, error)
}

// Manager owns the current session: login, logout, extension and expiry.
// It doubles as the token source for outgoing requests, so an expired
// session automatically stops authenticating them.
type Manager struct {
	portal Portal
	path   string
	oauth  *oauth2.Config

	mu      sync.RWMutex
	session *Session

	// Logging
	logger logger.Logger
}

// NewManager creates a session manager persisting under stateDir. An
// existing session file is restored; an unreadable one is discarded.
func NewManager(portal Portal, stateDir string, opts ...Option) (*Manager, error) {
	if portal == nil {
		return nil, errors.New("portal client is required")
	}
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	m := &Manager{
		portal: portal,
		path:   filepath.Join(stateDir, sessionFile),
		logger: logger.Get().Named("auth"), // will be updated by options
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.load()
	return m, nil
}

// LoginPassword signs in with portal credentials.
func (m *Manager) LoginPassword(ctx context.Context, email, password string) (Session, error) {
	creds, err := m.portal.LoginPassword(ctx, email, password)
	if err != nil {
		metrics.RecordErrorByComponent("auth", "login_error")
		return Session{}, classify(err)
	}
	m.logger.Info(ctx, "logged in", logger.String("email", email))
	return m.establish(ctx, creds)
}

// LoginOAuth completes a Google sign-in: the authorization code is
// exchanged for a Google token, which the portal then trades for a
// session. Producing the code (the browser consent screen) is the
// caller's business; AuthCodeURL hands out the right URL for it.
func (m *Manager) LoginOAuth(ctx context.Context, code string) (Session, error) {
	if m.oauth == nil {
		return Session{}, ErrOAuthNotConfigured
	}
	tok, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		metrics.RecordErrorByComponent("auth", "oauth_exchange_error")
		return Session{}, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	creds, err := m.portal.ExchangeOAuthToken(ctx, tok.AccessToken)
	if err != nil {
		metrics.RecordErrorByComponent("auth", "oauth_login_error")
		return Session{}, classify(err)
	}
	m.logger.Info(ctx, "logged in via google")
	return m.establish(ctx, creds)
}

// AuthCodeURL returns the Google consent URL for the configured client.
func (m *Manager) AuthCodeURL(state string) (string, error) {
	if m.oauth == nil {
		return "", ErrOAuthNotConfigured
	}
	return m.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// Logout ends the server session best-effort and always wipes local
// state. A failed server call is logged, not returned; the local wipe
// is what logs the user out.
func (m *Manager) Logout(ctx context.Context) error {
	if m.Valid() {
		if err := m.portal.Logout(ctx); err != nil {
			m.logger.Warn(ctx, "server logout failed", logger.Error(err))
		}
	}
	m.logger.Info(ctx, "logged out")
	return m.wipe()
}

// Extend refreshes the session token before it expires.
func (m *Manager) Extend(ctx context.Context) (Session, error) {
	if !m.Valid() {
		return Session{}, ErrNotLoggedIn
	}
	creds, err := m.portal.ExtendSession(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("auth", "extend_error")
		return Session{}, classify(err)
	}
	m.logger.Debug(ctx, "session extended")
	return m.establish(ctx, creds)
}

// Current returns the stored session, expired or not.
func (m *Manager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

// CurrentUser returns the signed-in user while the session is valid.
func (m *Manager) CurrentUser() (model.User, bool) {
	if !m.Valid() {
		return model.User{}, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return model.User{}, false
	}
	return m.session.User, true
}

// Valid reports whether a session exists and its decoded expiry has not
// passed. An expired session counts as logged out.
func (m *Manager) Valid() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return false
	}
	if m.session.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().Before(m.session.ExpiresAt)
}

// Token returns the bearer token for outgoing requests, or "" when no
// valid session exists. Expired tokens are never attached.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return ""
	}
	if !m.session.ExpiresAt.IsZero() && !time.Now().Before(m.session.ExpiresAt) {
		return ""
	}
	return m.session.Token
}

// establish stores a fresh set of credentials as the current session.
func (m *Manager) establish(ctx context.Context, creds rest.Credentials) (Session, error) {
	expiry, err := tokenExpiry(creds.Token)
	if err != nil {
		return Session{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s := Session{
		Token:     creds.Token,
		User:      creds.User,
		IssuedAt:  time.Now().UTC(),
		ExpiresAt: expiry,
	}
	if s.User.ID == "" && m.session != nil {
		// Extension responses may carry only the token.
		s.User = m.session.User
	}
	m.session = &s

	if err := m.save(); err != nil {
		metrics.RecordErrorByComponent("auth", "persist_error")
		m.logger.Warn(ctx, "session not persisted", logger.Error(err))
	}
	return s, nil
}

// load restores the persisted session, if any. Callers run before the
// manager is shared, so no lock is taken.
func (m *Manager) load() {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		return
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil || s.Token == "" {
		m.logger.Warn(context.Background(), "discarding unreadable session file",
			logger.String("path", m.path))
		_ = os.Remove(m.path)
		return
	}
	m.session = &s
}

// save writes the current session to disk. Callers must hold m.mu.
func (m *Manager) save() error {
	raw, err := json.MarshalIndent(m.session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(m.path, raw, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// wipe drops the session from memory and disk.
func (m *Manager) wipe() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = nil
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// tokenExpiry reads the expiry claim out of the portal's JWT without
// verifying the signature. The client holds no signing secret; it only
// needs to know when the server will stop honoring the token. A token
// without an expiry claim yields the zero time.
func tokenExpiry(token string) (time.Time, error) {
	claims := &jwt.StandardClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("decode session token: %w", err)
	}
	if claims.ExpiresAt == 0 {
		return time.Time{}, nil
	}
	return time.Unix(claims.ExpiresAt, 0), nil
}

// classify maps portal error codes onto the typed auth errors.
func classify(err error) error {
	var apiErr *rest.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Code {
	case rest.CodeEmailNotVerified:
		return fmt.Errorf("%w: %s", ErrEmailNotVerified, apiErr.Message)
	case rest.CodeAccountLocked:
		return fmt.Errorf("%w: %s", ErrAccountLocked, apiErr.Message)
	}
	if apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden {
		return fmt.Errorf("%w: %s", ErrAuthenticationFailed, apiErr.Message)
	}
	return err
}
