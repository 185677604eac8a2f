package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means an unknown workflow or execution identifier.
	ErrNotFound = errors.New("not found")
	// ErrNotRunning means pause was requested on a non-running execution.
	ErrNotRunning = errors.New("execution is not running")
	// ErrNotPaused means resume was requested on a non-paused execution.
	ErrNotPaused = errors.New("execution is not paused")
	// ErrEmptyInput is returned by the parse layer for empty data.
	ErrEmptyInput = errors.New("empty input")
	// ErrInvalidFormat is returned for unparseable definition data.
	ErrInvalidFormat = errors.New("invalid format")
)

// InvalidDefinitionError reports a structural problem in a workflow
// definition: empty step list, duplicate or dangling identifiers, or a
// dependency cycle.
type InvalidDefinitionError struct {
	Reason string
}

func (e *InvalidDefinitionError) Error() string {
	return fmt.Sprintf("invalid workflow definition: %s", e.Reason)
}

// IsInvalidDefinition reports whether err is an InvalidDefinitionError.
func IsInvalidDefinition(err error) bool {
	var ide *InvalidDefinitionError
	return errors.As(err, &ide)
}
