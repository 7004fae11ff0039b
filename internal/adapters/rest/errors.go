package rest

import "fmt"

// Error codes the portal attaches to auth failures.
const (
	CodeEmailNotVerified = "EMAIL_NOT_VERIFIED"
	CodeAccountLocked    = "ACCOUNT_LOCKED"
)

// APIError is a non-2xx portal response.
type APIError struct {
	Status  int    // HTTP status code
	Code    string // server-supplied error code, may be empty
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("portal error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("portal error %d: %s", e.Status, e.Message)
}
