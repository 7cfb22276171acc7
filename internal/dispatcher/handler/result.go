package handler

import (
	"fmt"
	"time"
)

// ResultStatus indicates how an invocation ended.
type ResultStatus uint8

const (
	// StatusOK indicates the handler ran and returned a value.
	StatusOK ResultStatus = iota
	// StatusNotCommand indicates the input did not start with the command prefix.
	StatusNotCommand
	// StatusNotFound indicates no command or alias matched.
	StatusNotFound
	// StatusPermissionDenied indicates the context lacked a required capability.
	StatusPermissionDenied
	// StatusAborted indicates a middleware stopped the pipeline.
	StatusAborted
	// StatusInvalidInput indicates the input could not be tokenized.
	StatusInvalidInput
	// StatusError indicates the handler or a middleware failed.
	StatusError
)

// String returns a string representation of the status.
func (s ResultStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotCommand:
		return "not-command"
	case StatusNotFound:
		return "not-found"
	case StatusPermissionDenied:
		return "permission-denied"
	case StatusAborted:
		return "aborted"
	case StatusInvalidInput:
		return "invalid-input"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name in exported snapshots.
func (s ResultStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the structured outcome of one dispatch. Not-found and permission
// outcomes are results, not errors, so a UI can render them directly.
type Result struct {
	// Status is the outcome.
	Status ResultStatus `json:"status" yaml:"status"`

	// Command is the canonical command name, or the unresolved token.
	Command string `json:"command" yaml:"command"`

	// Value is what the handler returned.
	Value any `json:"value,omitempty" yaml:"value,omitempty"`

	// Message is a human-readable summary.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// Suggestions holds near-matching names for StatusNotFound.
	Suggestions []string `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`

	// Missing holds the permissions lacking for StatusPermissionDenied.
	Missing []string `json:"missing,omitempty" yaml:"missing,omitempty"`

	// Duration is the time spent in EXECUTE.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	// Err is the underlying error for non-OK statuses, if any.
	Err error `json:"-" yaml:"-"`
}

// IsOK returns true if the handler ran successfully.
func (r Result) IsOK() bool {
	return r.Status == StatusOK
}

// IsError returns true if the handler or a middleware failed.
func (r Result) IsError() bool {
	return r.Status == StatusError
}

// Success creates a result carrying the handler value.
func Success(command string, value any) Result {
	return Result{Status: StatusOK, Command: command, Value: value}
}

// NotCommand creates a result for input that is not a command.
func NotCommand() Result {
	return Result{Status: StatusNotCommand}
}

// NotFound creates a not-found result with suggestions.
func NotFound(token string, suggestions []string) Result {
	if suggestions == nil {
		suggestions = []string{}
	}
	msg := fmt.Sprintf("unknown command %q", token)
	if len(suggestions) > 0 {
		msg += fmt.Sprintf("; did you mean %s?", joinQuoted(suggestions))
	}
	return Result{
		Status:      StatusNotFound,
		Command:     token,
		Message:     msg,
		Suggestions: suggestions,
	}
}

// PermissionDenied creates a permission-denied result.
func PermissionDenied(command string, missing []string, err error) Result {
	return Result{
		Status:  StatusPermissionDenied,
		Command: command,
		Message: fmt.Sprintf("permission denied for %q: requires %v", command, missing),
		Missing: missing,
		Err:     err,
	}
}

// Aborted creates a result for a middleware-stopped pipeline.
func Aborted(command, by string) Result {
	msg := fmt.Sprintf("%q was stopped by middleware", command)
	if by != "" {
		msg = fmt.Sprintf("%q was stopped by middleware %q", command, by)
	}
	return Result{Status: StatusAborted, Command: command, Message: msg}
}

// InvalidInput creates a result for input that could not be parsed.
func InvalidInput(err error) Result {
	return Result{Status: StatusInvalidInput, Message: err.Error(), Err: err}
}

// Failure creates an error result.
func Failure(command string, err error) Result {
	return Result{Status: StatusError, Command: command, Message: err.Error(), Err: err}
}

// WithMessage returns a copy of the result with a message.
func (r Result) WithMessage(msg string) Result {
	r.Message = msg
	return r
}

// WithDuration returns a copy of the result with the execution time set.
func (r Result) WithDuration(d time.Duration) Result {
	r.Duration = d
	return r
}

func joinQuoted(names []string) string {
	out := ""
	for i, n := range names {
		switch {
		case i == 0:
		case i == len(names)-1:
			out += " or "
		default:
			out += ", "
		}
		out += fmt.Sprintf("%q", n)
	}
	return out
}
