// Package config loads slashcore configuration.
//
// Configuration is resolved in three steps, each overriding the previous:
//
//  1. Built-in defaults (Default).
//  2. A configuration file. The format is chosen by extension: .toml, .yaml,
//     .yml or .json. A missing file is not an error.
//  3. Environment variables prefixed with SLASHCORE_. Values from .env files
//     are used for variables the process environment does not set.
//
// Environment variable names follow the section layout:
//
//	SLASHCORE_DISPATCHER_PREFIX=!
//	SLASHCORE_DISPATCHER_HANDLER_TIMEOUT=5s
//	SLASHCORE_LOG_LEVEL=debug
//	SLASHCORE_PLUGINS_PATHS=/usr/share/slashcore/plugins,./plugins
//
// # Basic Usage
//
//	cfg, err := config.NewLoader().Load("slashcore.toml")
//	if err != nil {
//	    return err
//	}
//	dcfg, err := cfg.Dispatcher.ToDispatcher()
package config
