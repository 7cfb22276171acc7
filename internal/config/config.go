package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/slashcore/internal/dispatcher"
	"github.com/dshills/slashcore/internal/dispatcher/command"
	"github.com/dshills/slashcore/internal/logging"
	"github.com/dshills/slashcore/internal/plugin"
)

// Config is the complete slashcore configuration.
type Config struct {
	Dispatcher DispatcherConfig `toml:"dispatcher" yaml:"dispatcher" json:"dispatcher" envPrefix:"DISPATCHER_"`
	Middleware MiddlewareConfig `toml:"middleware" yaml:"middleware" json:"middleware" envPrefix:"MIDDLEWARE_"`
	Logging    logging.Config   `toml:"logging" yaml:"logging" json:"logging" envPrefix:"LOG_"`
	Plugins    PluginsConfig    `toml:"plugins" yaml:"plugins" json:"plugins" envPrefix:"PLUGINS_"`
}

// DispatcherConfig mirrors dispatcher.Config in a file-friendly form.
// Durations are strings accepted by time.ParseDuration.
type DispatcherConfig struct {
	Prefix              string  `toml:"prefix" yaml:"prefix" json:"prefix" env:"PREFIX"`
	HistoryCapacity     int     `toml:"historyCapacity" yaml:"historyCapacity" json:"historyCapacity" env:"HISTORY_CAPACITY"`
	CollisionPolicy     string  `toml:"collisionPolicy" yaml:"collisionPolicy" json:"collisionPolicy" env:"COLLISION_POLICY"`
	ArgMode             string  `toml:"argMode" yaml:"argMode" json:"argMode" env:"ARG_MODE"`
	RecoverFromPanic    bool    `toml:"recoverFromPanic" yaml:"recoverFromPanic" json:"recoverFromPanic" env:"RECOVER_FROM_PANIC"`
	HandlerTimeout      string  `toml:"handlerTimeout" yaml:"handlerTimeout" json:"handlerTimeout" env:"HANDLER_TIMEOUT"`
	SlowThreshold       string  `toml:"slowThreshold" yaml:"slowThreshold" json:"slowThreshold" env:"SLOW_THRESHOLD"`
	DefaultUser         string  `toml:"defaultUser" yaml:"defaultUser" json:"defaultUser" env:"DEFAULT_USER"`
	DefaultSession      string  `toml:"defaultSession" yaml:"defaultSession" json:"defaultSession" env:"DEFAULT_SESSION"`
	SuggestionThreshold float64 `toml:"suggestionThreshold" yaml:"suggestionThreshold" json:"suggestionThreshold" env:"SUGGESTION_THRESHOLD"`
	MaxSuggestions      int     `toml:"maxSuggestions" yaml:"maxSuggestions" json:"maxSuggestions" env:"MAX_SUGGESTIONS"`
}

// MiddlewareConfig selects the built-in middleware and hooks the CLI host
// installs.
type MiddlewareConfig struct {
	// Logging installs the invocation logging middleware.
	Logging bool `toml:"logging" yaml:"logging" json:"logging" env:"LOGGING"`

	// Audit installs the wildcard audit hooks.
	Audit bool `toml:"audit" yaml:"audit" json:"audit" env:"AUDIT"`

	// RequireSession rejects invocations without a session.
	RequireSession bool `toml:"requireSession" yaml:"requireSession" json:"requireSession" env:"REQUIRE_SESSION"`

	// RatePerSecond and RateBurst configure the per-user rate limiter.
	// A rate of zero disables it.
	RatePerSecond float64 `toml:"ratePerSecond" yaml:"ratePerSecond" json:"ratePerSecond" env:"RATE_PER_SECOND"`
	RateBurst     int     `toml:"rateBurst" yaml:"rateBurst" json:"rateBurst" env:"RATE_BURST"`
}

// PluginsConfig configures plugin discovery.
type PluginsConfig struct {
	// Paths are searched in order. Earlier paths win on duplicate names.
	// Empty means plugin.DefaultPaths.
	Paths []string `toml:"paths" yaml:"paths" json:"paths" env:"PATHS" envSeparator:","`

	// Watch hot-loads plugin directories that appear after startup.
	Watch bool `toml:"watch" yaml:"watch" json:"watch" env:"WATCH"`

	// Atomic validates a whole plugin before registering any of it.
	Atomic bool `toml:"atomic" yaml:"atomic" json:"atomic" env:"ATOMIC"`

	// ExecutionTimeout bounds each call into a plugin script.
	ExecutionTimeout string `toml:"executionTimeout" yaml:"executionTimeout" json:"executionTimeout" env:"EXECUTION_TIMEOUT"`
}

// Default returns the built-in configuration.
func Default() Config {
	d := dispatcher.DefaultConfig()
	return Config{
		Dispatcher: DispatcherConfig{
			Prefix:              d.Prefix,
			HistoryCapacity:     d.HistoryCapacity,
			CollisionPolicy:     d.CollisionPolicy.String(),
			ArgMode:             d.ArgMode.String(),
			RecoverFromPanic:    d.RecoverFromPanic,
			DefaultUser:         d.DefaultUser,
			DefaultSession:      d.DefaultSession,
			SuggestionThreshold: d.SuggestionThreshold,
			MaxSuggestions:      d.MaxSuggestions,
		},
		Middleware: MiddlewareConfig{
			Logging:   true,
			Audit:     true,
			RateBurst: 5,
		},
		Logging: logging.DefaultConfig(),
		Plugins: PluginsConfig{
			ExecutionTimeout: "5s",
		},
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if _, err := c.Dispatcher.ToDispatcher(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	if c.Middleware.RatePerSecond < 0 {
		return fmt.Errorf("%w: middleware.ratePerSecond must not be negative", ErrValidationFailed)
	}
	if c.Middleware.RatePerSecond > 0 && c.Middleware.RateBurst <= 0 {
		return fmt.Errorf("%w: middleware.rateBurst must be positive", ErrValidationFailed)
	}
	if _, err := c.Plugins.Timeout(); err != nil {
		return err
	}
	return nil
}

// ToDispatcher converts the section into a validated dispatcher.Config.
func (d DispatcherConfig) ToDispatcher() (dispatcher.Config, error) {
	policy, err := command.ParseCollisionPolicy(d.CollisionPolicy)
	if err != nil {
		return dispatcher.Config{}, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	mode, err := dispatcher.ParseArgMode(d.ArgMode)
	if err != nil {
		return dispatcher.Config{}, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	timeout, err := parseDuration("dispatcher.handlerTimeout", d.HandlerTimeout)
	if err != nil {
		return dispatcher.Config{}, err
	}
	slow, err := parseDuration("dispatcher.slowThreshold", d.SlowThreshold)
	if err != nil {
		return dispatcher.Config{}, err
	}

	cfg := dispatcher.Config{
		Prefix:              d.Prefix,
		HistoryCapacity:     d.HistoryCapacity,
		CollisionPolicy:     policy,
		ArgMode:             mode,
		RecoverFromPanic:    d.RecoverFromPanic,
		HandlerTimeout:      timeout,
		SlowThreshold:       slow,
		DefaultUser:         d.DefaultUser,
		DefaultSession:      d.DefaultSession,
		SuggestionThreshold: d.SuggestionThreshold,
		MaxSuggestions:      d.MaxSuggestions,
	}
	if err := cfg.Validate(); err != nil {
		return dispatcher.Config{}, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	return cfg, nil
}

// SearchPaths returns the configured paths, or the default paths when none
// are configured.
func (p PluginsConfig) SearchPaths() []string {
	if len(p.Paths) == 0 {
		return plugin.DefaultPaths()
	}
	return p.Paths
}

// Timeout returns the parsed plugin execution timeout.
func (p PluginsConfig) Timeout() (time.Duration, error) {
	return parseDuration("plugins.executionTimeout", p.ExecutionTimeout)
}

func parseDuration(field, s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrValidationFailed, field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrValidationFailed, field)
	}
	return d, nil
}
