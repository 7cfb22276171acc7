package app

import (
	"github.com/dshills/slashcore/internal/builtin"
	"github.com/dshills/slashcore/internal/config"
	"github.com/dshills/slashcore/internal/dispatcher"
	"github.com/dshills/slashcore/internal/dispatcher/hook"
	"github.com/dshills/slashcore/internal/dispatcher/middleware"
	"github.com/dshills/slashcore/internal/logging"
	"github.com/dshills/slashcore/internal/plugin"
)

// Priorities of the built-in middleware. Logging runs first so throttled
// and rejected invocations are still logged.
const (
	PriorityLogging        = 0
	PriorityRequireSession = 10
	PriorityRateLimit      = 20
)

// bootstrapper handles component initialization with proper cleanup on failure.
type bootstrapper struct {
	app  *Application
	opts Options
}

func newBootstrapper(app *Application, opts Options) *bootstrapper {
	return &bootstrapper{app: app, opts: opts}
}

// bootstrap initializes all components in dependency order.
// On failure, it releases what was already started.
func (b *bootstrapper) bootstrap() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"config", b.initConfig},
		{"logging", b.initLogging},
		{"dispatcher", b.initDispatcher},
		{"builtin commands", b.initBuiltins},
		{"middleware", b.initMiddleware},
		{"plugins", b.initPlugins},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			_ = b.app.Close()
			return &InitError{Component: step.name, Err: err}
		}
	}
	return nil
}

func (b *bootstrapper) initConfig() error {
	if b.opts.Config != nil {
		cfg := *b.opts.Config
		if err := cfg.Validate(); err != nil {
			return err
		}
		b.app.cfg = cfg
		return nil
	}

	var loaderOpts []config.LoaderOption
	if b.opts.EnvFiles != nil {
		loaderOpts = append(loaderOpts, config.WithEnvFiles(b.opts.EnvFiles...))
	}
	cfg, err := config.NewLoader(loaderOpts...).Load(b.opts.ConfigPath)
	if err != nil {
		return err
	}
	b.app.cfg = cfg
	return nil
}

func (b *bootstrapper) initLogging() error {
	if b.opts.Logger != nil {
		b.app.logger = b.opts.Logger
		return nil
	}
	logger, closer, err := logging.New(b.app.cfg.Logging)
	if err != nil {
		return err
	}
	b.app.logger = logger
	b.app.logCloser = closer
	return nil
}

func (b *bootstrapper) initDispatcher() error {
	dcfg, err := b.app.cfg.Dispatcher.ToDispatcher()
	if err != nil {
		return err
	}

	loaderOpts := []plugin.Option{plugin.WithLogger(logging.WithComponent(b.app.logger, "plugin"))}
	if b.app.cfg.Plugins.Atomic {
		loaderOpts = append(loaderOpts, plugin.WithAtomic())
	}

	d, err := dispatcher.New(dcfg,
		dispatcher.WithLogger(logging.WithComponent(b.app.logger, "dispatcher")),
		dispatcher.WithPluginLoader(plugin.NewLoader(loaderOpts...)),
	)
	if err != nil {
		return err
	}
	b.app.dispatcher = d
	return nil
}

func (b *bootstrapper) initBuiltins() error {
	return builtin.Register(b.app.dispatcher)
}

func (b *bootstrapper) initMiddleware() error {
	mc := b.app.cfg.Middleware
	d := b.app.dispatcher
	logger := logging.WithComponent(b.app.logger, "middleware")

	if mc.Logging {
		if err := d.Use("logging", middleware.Logging(logger), PriorityLogging); err != nil {
			return err
		}
	}
	if mc.RequireSession {
		if err := d.Use("require-session", middleware.RequireSession(), PriorityRequireSession); err != nil {
			return err
		}
	}
	if mc.RatePerSecond > 0 {
		if err := d.Use("rate-limit", middleware.RateLimit(mc.RatePerSecond, mc.RateBurst), PriorityRateLimit); err != nil {
			return err
		}
	}
	if mc.Audit {
		hook.InstallAudit(d.Hooks(), logging.WithComponent(b.app.logger, "audit"))
	}
	return nil
}

func (b *bootstrapper) initPlugins() error {
	if b.opts.SkipPlugins {
		return nil
	}
	paths := b.app.cfg.Plugins.SearchPaths()
	b.app.LoadPlugins(paths...)
	if b.app.cfg.Plugins.Watch {
		return b.app.Watch(paths...)
	}
	return nil
}
