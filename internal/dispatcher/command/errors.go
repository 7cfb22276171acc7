package command

import (
	"errors"
	"fmt"
)

// Registry errors.
var (
	// ErrInvalidDescriptor is wrapped by every ValidationError.
	ErrInvalidDescriptor = errors.New("command: invalid descriptor")

	// ErrNameTaken indicates a name collision under CollisionReject.
	ErrNameTaken = errors.New("command: name already registered")

	// ErrAliasTaken indicates an alias collision under CollisionReject.
	ErrAliasTaken = errors.New("command: alias already registered")
)

// ValidationError describes a descriptor rejected at registration.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("command: invalid descriptor: %s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrInvalidDescriptor so callers can match with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidDescriptor
}
