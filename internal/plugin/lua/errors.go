package lua

import "errors"

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when a call runs past its deadline.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrMissingFunction is returned when a manifest names a function the
	// script does not define.
	ErrMissingFunction = errors.New("lua function not defined")
)
