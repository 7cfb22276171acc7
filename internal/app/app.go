// Package app wires configuration, logging, the dispatcher, the built-in
// commands and the plugin system into one running host.
package app

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/dshills/slashcore/internal/config"
	"github.com/dshills/slashcore/internal/dispatcher"
	"github.com/dshills/slashcore/internal/plugin"
)

// ErrClosed is returned when using a closed application.
var ErrClosed = errors.New("app: closed")

// Application owns every long-lived component of a slashcore host.
type Application struct {
	mu sync.Mutex

	cfg       config.Config
	logger    *slog.Logger
	logCloser io.Closer

	dispatcher *dispatcher.Dispatcher
	watcher    *plugin.Watcher

	// orphans are plugin states that failed to load but may still back
	// commands registered before the failure.
	orphans []io.Closer

	report LoadReport
	closed bool
}

// Options configures the application.
type Options struct {
	// ConfigPath is the configuration file. Empty means defaults plus
	// environment.
	ConfigPath string

	// Config, when set, is used as is and ConfigPath is ignored.
	Config *config.Config

	// EnvFiles are the .env files read before the environment. Nil means
	// ".env".
	EnvFiles []string

	// Logger overrides the logger built from the logging section.
	Logger *slog.Logger

	// SkipPlugins disables plugin discovery and watching.
	SkipPlugins bool
}

// New creates an Application. Plugin load failures are logged and kept in
// the load report; they do not fail New.
func New(opts Options) (*Application, error) {
	a := &Application{}
	b := newBootstrapper(a, opts)
	if err := b.bootstrap(); err != nil {
		return nil, err
	}
	return a, nil
}

// Config returns the resolved configuration.
func (a *Application) Config() config.Config {
	return a.cfg
}

// Logger returns the application logger.
func (a *Application) Logger() *slog.Logger {
	return a.logger
}

// Dispatcher returns the command dispatcher.
func (a *Application) Dispatcher() *dispatcher.Dispatcher {
	return a.dispatcher
}

// LoadReport returns the outcome of every plugin load attempted so far.
func (a *Application) LoadReport() LoadReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.report.clone()
}

// Close shuts the application down in reverse initialization order.
func (a *Application) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	orphans := a.orphans
	a.orphans = nil
	watcher := a.watcher
	a.mu.Unlock()

	var errs []error
	if watcher != nil {
		if err := watcher.Close(); err != nil && !errors.Is(err, plugin.ErrWatcherClosed) {
			errs = append(errs, err)
		}
	}
	if a.dispatcher != nil {
		errs = append(errs, a.dispatcher.Close())
	}
	for _, c := range orphans {
		errs = append(errs, c.Close())
	}
	if a.logCloser != nil {
		errs = append(errs, a.logCloser.Close())
	}
	return errors.Join(errs...)
}

func (a *Application) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}
