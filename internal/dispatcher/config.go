package dispatcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/slashcore/internal/dispatcher/command"
	"github.com/dshills/slashcore/internal/dispatcher/execctx"
	"github.com/dshills/slashcore/internal/dispatcher/history"
	"github.com/dshills/slashcore/internal/dispatcher/similarity"
)

// ArgMode selects how input after the command token is split.
type ArgMode uint8

const (
	// ArgsFields splits on runs of whitespace.
	ArgsFields ArgMode = iota
	// ArgsShell honors shell-style quoting and escapes.
	ArgsShell
)

// String returns a string representation of the mode.
func (m ArgMode) String() string {
	switch m {
	case ArgsFields:
		return "fields"
	case ArgsShell:
		return "shell"
	default:
		return "unknown"
	}
}

// ParseArgMode parses "fields" or "shell". The empty string selects
// ArgsFields.
func ParseArgMode(s string) (ArgMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fields":
		return ArgsFields, nil
	case "shell":
		return ArgsShell, nil
	default:
		return ArgsFields, fmt.Errorf("dispatcher: unknown arg mode %q", s)
	}
}

// Config holds dispatcher configuration options.
type Config struct {
	// Prefix marks input as a command. It must not be empty.
	Prefix string

	// HistoryCapacity bounds the history ring.
	HistoryCapacity int

	// CollisionPolicy decides what happens when a name or alias is taken.
	CollisionPolicy command.CollisionPolicy

	// ArgMode selects how arguments are tokenized.
	ArgMode ArgMode

	// RecoverFromPanic wraps handler execution in panic recovery.
	RecoverFromPanic bool

	// HandlerTimeout bounds handler execution. Zero means no timeout.
	HandlerTimeout time.Duration

	// SlowThreshold logs a warning for executions that take longer.
	// Zero disables the warning.
	SlowThreshold time.Duration

	// DefaultUser and DefaultSession identify invocations that do not
	// name a user or session.
	DefaultUser    string
	DefaultSession string

	// SuggestionThreshold is the similarity a name must exceed to be
	// suggested for an unknown command.
	SuggestionThreshold float64

	// MaxSuggestions caps the suggestions returned for an unknown command.
	MaxSuggestions int
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Prefix:              "/",
		HistoryCapacity:     history.DefaultCapacity,
		CollisionPolicy:     command.CollisionOverwrite,
		ArgMode:             ArgsFields,
		RecoverFromPanic:    true,
		HandlerTimeout:      0,
		SlowThreshold:       0,
		DefaultUser:         execctx.DefaultUser,
		DefaultSession:      execctx.DefaultSession,
		SuggestionThreshold: similarity.Threshold,
		MaxSuggestions:      similarity.MaxSuggestions,
	}
}

// WithPrefix returns a copy of the config with the command prefix set.
func (c Config) WithPrefix(prefix string) Config {
	if prefix != "" {
		c.Prefix = prefix
	}
	return c
}

// WithHistoryCapacity returns a copy of the config with the history
// capacity set.
func (c Config) WithHistoryCapacity(n int) Config {
	if n > 0 {
		c.HistoryCapacity = n
	}
	return c
}

// WithCollisionPolicy returns a copy of the config with the collision
// policy set.
func (c Config) WithCollisionPolicy(p command.CollisionPolicy) Config {
	c.CollisionPolicy = p
	return c
}

// WithArgMode returns a copy of the config with the argument mode set.
func (c Config) WithArgMode(m ArgMode) Config {
	c.ArgMode = m
	return c
}

// WithPanicRecovery returns a copy of the config with panic recovery set.
func (c Config) WithPanicRecovery(enabled bool) Config {
	c.RecoverFromPanic = enabled
	return c
}

// WithTimeout returns a copy of the config with the handler timeout set.
func (c Config) WithTimeout(timeout time.Duration) Config {
	c.HandlerTimeout = timeout
	return c
}

// WithSlowThreshold returns a copy of the config with the slow-execution
// warning threshold set.
func (c Config) WithSlowThreshold(d time.Duration) Config {
	c.SlowThreshold = d
	return c
}

// WithIdentity returns a copy of the config with the default user and
// session set.
func (c Config) WithIdentity(user, session string) Config {
	if user != "" {
		c.DefaultUser = user
	}
	if session != "" {
		c.DefaultSession = session
	}
	return c
}

// WithSuggestions returns a copy of the config with the suggestion
// threshold and cap set.
func (c Config) WithSuggestions(threshold float64, limit int) Config {
	c.SuggestionThreshold = threshold
	c.MaxSuggestions = limit
	return c
}

// Validate reports configuration values the dispatcher cannot use.
func (c Config) Validate() error {
	if c.Prefix == "" {
		return fmt.Errorf("%w: prefix must not be empty", ErrInvalidConfig)
	}
	if c.HistoryCapacity <= 0 {
		return fmt.Errorf("%w: history capacity must be positive", ErrInvalidConfig)
	}
	if c.SuggestionThreshold < 0 || c.SuggestionThreshold > 1 {
		return fmt.Errorf("%w: suggestion threshold must be within [0,1]", ErrInvalidConfig)
	}
	if c.MaxSuggestions < 0 {
		return fmt.Errorf("%w: max suggestions must not be negative", ErrInvalidConfig)
	}
	if c.HandlerTimeout < 0 {
		return fmt.Errorf("%w: handler timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}
