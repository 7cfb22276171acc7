package hook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/slashcore/internal/dispatcher/execctx"
)

// Wildcard as a command name matches every command.
const Wildcard = "*"

var (
	// ErrNilHook is returned when registering a nil function.
	ErrNilHook = errors.New("hook: function is nil")

	// ErrInvalidKey is returned for malformed "phase:command" keys.
	ErrInvalidKey = errors.New("hook: invalid key")

	// ErrPanic indicates a hook panicked.
	ErrPanic = errors.New("hook: panic")
)

// Phase selects when a hook runs relative to the handler.
type Phase uint8

const (
	// Pre hooks run after middleware and before the handler.
	Pre Phase = iota
	// Post hooks run after the handler, with its result on the context.
	Post
)

// String returns "pre" or "post".
func (p Phase) String() string {
	switch p {
	case Pre:
		return "pre"
	case Post:
		return "post"
	default:
		return "unknown"
	}
}

// ParsePhase parses "pre" or "post", case-insensitively.
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pre":
		return Pre, nil
	case "post":
		return Post, nil
	default:
		return Pre, fmt.Errorf("%w: unknown phase %q", ErrInvalidKey, s)
	}
}

// Func observes an invocation. Post hooks find the handler outcome in
// ec.Result and ec.Err. A returned error is logged and never stops the
// invocation.
type Func func(ctx context.Context, ec *execctx.ExecutionContext, host execctx.Host) error

// Key identifies a hook list.
type Key struct {
	Phase   Phase
	Command string
}

// String renders the key as "phase:command".
func (k Key) String() string {
	return k.Phase.String() + ":" + k.Command
}

// ParseKey parses keys such as "pre:ping" or "post:*".
func ParseKey(s string) (Key, error) {
	phase, cmd, ok := strings.Cut(s, ":")
	if !ok {
		return Key{}, fmt.Errorf("%w: %q is not phase:command", ErrInvalidKey, s)
	}
	p, err := ParsePhase(phase)
	if err != nil {
		return Key{}, err
	}
	cmd = strings.ToLower(strings.TrimSpace(cmd))
	if cmd == "" {
		return Key{}, fmt.Errorf("%w: %q has no command", ErrInvalidKey, s)
	}
	return Key{Phase: p, Command: cmd}, nil
}

// Error records one failed hook.
type Error struct {
	Phase   Phase
	Command string
	Index   int
	Err     error
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("hook %s:%s[%d]: %v", e.Phase, e.Command, e.Index, e.Err)
}

// Unwrap returns the hook's own error.
func (e *Error) Unwrap() error {
	return e.Err
}
