package plugin

import (
	"errors"
	"fmt"
)

// Plugin errors.
var (
	// ErrNilPlugin is returned when Load is given a nil plugin.
	ErrNilPlugin = errors.New("plugin: plugin is nil")

	// ErrMissingName is returned when a plugin or manifest has no name.
	ErrMissingName = errors.New("plugin: name is required")

	// ErrMissingCommands is returned when a plugin has no commands list.
	ErrMissingCommands = errors.New("plugin: commands list is required")

	// ErrAlreadyLoaded is returned when a plugin name is already stored.
	ErrAlreadyLoaded = errors.New("plugin: already loaded")

	// ErrInvalidName is returned for manifest names that are not lower-case
	// words joined by hyphens.
	ErrInvalidName = errors.New("plugin: name must be lower-case alphanumeric with hyphens")

	// ErrInvalidVersion is returned for versions that are not semver.
	ErrInvalidVersion = errors.New("plugin: version must be valid semver")

	// ErrInvalidMain is returned when the entry point is not a .lua file.
	ErrInvalidMain = errors.New("plugin: main must be a .lua file")

	// ErrNoManifest is returned when a directory holds no manifest file.
	ErrNoManifest = errors.New("plugin: no manifest found")

	// ErrInvalidManifest wraps schema and decoding failures.
	ErrInvalidManifest = errors.New("plugin: invalid manifest")

	// ErrNilMiddleware is returned for a middleware entry without a function.
	ErrNilMiddleware = errors.New("plugin: middleware function is nil")

	// ErrNilHook is returned for a hook entry without a function.
	ErrNilHook = errors.New("plugin: hook function is nil")
)

// LoadError reports which part of a plugin failed to register.
type LoadError struct {
	Plugin string
	Item   string
	Err    error
}

// Error implements error.
func (e *LoadError) Error() string {
	return fmt.Sprintf("plugin %q: %s: %v", e.Plugin, e.Item, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}
