package dispatcher

import (
	"errors"
	"fmt"
)

// Dispatcher errors.
var (
	// ErrInvalidConfig indicates a configuration value is unusable.
	ErrInvalidConfig = errors.New("dispatcher: invalid config")

	// ErrClosed indicates the dispatcher has been closed.
	ErrClosed = errors.New("dispatcher: dispatcher is closed")

	// ErrTimeout indicates the handler execution timed out.
	ErrTimeout = errors.New("dispatcher: handler timeout")

	// ErrPanic indicates the handler panicked.
	ErrPanic = errors.New("dispatcher: handler panic")

	// ErrEmptyCommand indicates the input held only the prefix.
	ErrEmptyCommand = errors.New("dispatcher: empty command")
)

// Stage names the pipeline stage an ExecutionError came from.
type Stage string

// Stages that can fail an invocation.
const (
	StageMiddleware Stage = "middleware"
	StageHandler    Stage = "handler"
)

// ExecutionError wraps a failure raised by middleware or by the handler.
// Handler failures are recorded in statistics and history before the
// error is returned.
type ExecutionError struct {
	Command string
	Stage   Stage
	Err     error
}

// Error implements error.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("dispatcher: %s %q failed: %v", e.Stage, e.Command, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}
