package auth

import "errors"

// Sentinel kinds for auth errors. The first three mirror the portal's
// error codes so callers can branch on the reason a login failed.
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrEmailNotVerified     = errors.New("email not verified")
	ErrAccountLocked        = errors.New("account locked")
	ErrNotLoggedIn          = errors.New("not logged in")
	ErrOAuthNotConfigured   = errors.New("oauth not configured")
)
