package statement

import (
	"errors"
)

// Callers match these with errors.Is.
var (
	ErrInvalidStatement = errors.New("invalid statement")
)
