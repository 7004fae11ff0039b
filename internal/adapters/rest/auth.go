package rest

import (
	"context"
	"net/http"

	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/model"
)

// Credentials is what the portal hands back on a successful login.
type Credentials struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type oauthTokenRequest struct {
	Token string `json:"token"`
}

// LoginPassword authenticates with email and password.
func (c *Client) LoginPassword(ctx context.Context, email, password string) (Credentials, error) {
	var creds Credentials
	err := c.doJSON(ctx, http.MethodPost,
		"/auth/login", "/auth/login",
		loginRequest{Email: email, Password: password}, &creds,
	)
	return creds, err
}

// ExchangeOAuthToken trades a Google access token for a portal session.
// The browser redirect that produces the Google token is out of scope here;
// callers obtain it through their own authorization-code exchange.
func (c *Client) ExchangeOAuthToken(ctx context.Context, accessToken string) (Credentials, error) {
	var creds Credentials
	err := c.doJSON(ctx, http.MethodPost,
		"/auth/google/token", "/auth/google/token",
		oauthTokenRequest{Token: accessToken}, &creds,
	)
	return creds, err
}

// Logout invalidates the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/logout", "/auth/logout", nil, nil)
}

// ExtendSession refreshes the session token before it expires.
func (c *Client) ExtendSession(ctx context.Context) (Credentials, error) {
	var creds Credentials
	err := c.doJSON(ctx, http.MethodPost, "/auth/extend", "/auth/extend", nil, &creds)
	return creds, err
}

// Profile returns the authenticated user.
func (c *Client) Profile(ctx context.Context) (model.User, error) {
	var user model.User
	err := c.getJSON(ctx, "/auth/me", "/auth/me", &user)
	return user, err
}
