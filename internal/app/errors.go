package app

import "errors"

// Sentinel kinds for client errors.
var (
	ErrNotStarted         = errors.New("client not started")
	ErrDuplicateStatement = errors.New("statement already tracked")
)
