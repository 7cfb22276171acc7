package app

import (
	"errors"
	"fmt"
	"os"

	"github.com/dshills/slashcore/internal/logging"
	"github.com/dshills/slashcore/internal/plugin"
	"github.com/dshills/slashcore/internal/plugin/lua"
)

// LoadFailure records one plugin directory that could not be loaded.
type LoadFailure struct {
	Name string
	Path string
	Err  error
}

// LoadReport summarizes plugin loading.
type LoadReport struct {
	Loaded []string
	Failed []LoadFailure
}

func (r LoadReport) clone() LoadReport {
	return LoadReport{
		Loaded: append([]string(nil), r.Loaded...),
		Failed: append([]LoadFailure(nil), r.Failed...),
	}
}

// LoadPlugins discovers plugins under paths and loads each one. Failures
// are logged and recorded in the load report.
func (a *Application) LoadPlugins(paths ...string) {
	for _, found := range plugin.Discover(paths...) {
		if found.Err != nil {
			a.recordFailure(found.Name, found.Path, found.Err)
			continue
		}
		if err := a.loadManifest(found.Manifest); err != nil {
			a.recordFailure(found.Name, found.Path, err)
			continue
		}
		a.recordLoaded(found.Name)
	}
}

// LoadDir loads the plugin in dir.
func (a *Application) LoadDir(dir string) error {
	if a.isClosed() {
		return ErrClosed
	}
	m, err := plugin.LoadManifestFromDir(dir)
	if err != nil {
		a.recordFailure("", dir, err)
		return err
	}
	if err := a.loadManifest(m); err != nil {
		a.recordFailure(m.Name, dir, err)
		return err
	}
	a.recordLoaded(m.Name)
	return nil
}

func (a *Application) loadManifest(m *plugin.Manifest) error {
	timeout, err := a.cfg.Plugins.Timeout()
	if err != nil {
		return err
	}
	opts := []lua.StateOption{
		lua.WithLogger(logging.WithComponent(a.logger, "plugin").With("plugin", m.Name)),
	}
	if timeout > 0 {
		opts = append(opts, lua.WithExecutionTimeout(timeout))
	}

	p, err := lua.Open(m, opts...)
	if err != nil {
		return err
	}
	if err := a.dispatcher.LoadPlugin(p); err != nil {
		a.release(p, err)
		return err
	}
	return nil
}

// release disposes of the state behind a plugin that failed to load. When
// commands of the plugin were registered before the failure, the state
// stays open until Close.
func (a *Application) release(p *plugin.Plugin, loadErr error) {
	if p.Closer == nil {
		return
	}
	if errors.Is(loadErr, plugin.ErrAlreadyLoaded) || !a.backsCommands(p.Name) {
		_ = p.Closer.Close()
		return
	}
	a.mu.Lock()
	a.orphans = append(a.orphans, p.Closer)
	a.mu.Unlock()
}

func (a *Application) backsCommands(pluginName string) bool {
	for _, cmd := range a.dispatcher.Registry().All() {
		if cmd.Plugin == pluginName {
			return true
		}
	}
	return false
}

// Watch hot-loads plugin directories that appear under paths. Paths that
// do not exist are skipped.
func (a *Application) Watch(paths ...string) error {
	logger := logging.WithComponent(a.logger, "plugin-watch")
	w, err := plugin.NewWatcher(a.onPluginDir, plugin.WithWatchLogger(logger))
	if err != nil {
		return err
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			logger.Debug("skipping plugin path", "path", path, "error", err)
			continue
		}
		if err := w.Add(path); err != nil {
			w.Close()
			return fmt.Errorf("watching %s: %w", path, err)
		}
	}

	a.mu.Lock()
	a.watcher = w
	a.mu.Unlock()
	return nil
}

func (a *Application) onPluginDir(dir string) {
	found := plugin.Inspect(dir)
	if found.Err != nil {
		// Files may still be arriving; a later event retries.
		a.logger.Debug("plugin directory not ready", "path", dir, "error", found.Err)
		return
	}
	if a.dispatcher.Plugins().Has(found.Name) {
		a.logger.Info("plugin changed on disk; restart to reload", "plugin", found.Name, "path", dir)
		return
	}
	if err := a.LoadDir(dir); err != nil && !errors.Is(err, ErrClosed) {
		a.logger.Warn("hot plugin load failed", "plugin", found.Name, "path", dir, "error", err)
	}
}

func (a *Application) recordLoaded(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.report.Loaded = append(a.report.Loaded, name)
}

func (a *Application) recordFailure(name, path string, err error) {
	a.logger.Warn("plugin not loaded", "plugin", name, "path", path, "error", err)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.report.Failed = append(a.report.Failed, LoadFailure{Name: name, Path: path, Err: err})
}
