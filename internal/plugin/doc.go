// Package plugin loads named bundles of commands, middleware and hooks
// into a dispatcher.
//
// A Plugin can be built in Go and handed to a Loader directly, or read from
// disk. A file plugin is a directory holding a manifest (plugin.json,
// plugin.yaml or plugin.toml) and a Lua entry script:
//
//	weather/
//	    plugin.yaml
//	    init.lua
//
// The manifest names script functions for each command handler, middleware
// and hook. Manifests are checked against an embedded JSON schema and
// their versions must be semver. The lua subpackage turns a manifest into
// a Plugin.
//
// # Loading
//
// Load registers commands first, then middleware, then hooks. By default a
// failure partway through leaves earlier registrations in place; a Loader
// created WithAtomic validates everything before registering anything.
// Plugins stay loaded for the life of the process.
//
// # Discovery
//
// Discover scans search paths for plugin directories, and Watcher reports
// directories that appear or change so a host can load new plugins while
// running.
package plugin
