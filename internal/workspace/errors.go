package workspace

import "errors"

// Sentinel kinds for workspace errors.
var (
	ErrNoSelection         = errors.New("no project selected")
	ErrTaskNotFound        = errors.New("task not in the active project")
	ErrSelectionSuperseded = errors.New("selection superseded by a newer one")
)
