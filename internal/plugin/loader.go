package plugin

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dshills/slashcore/internal/dispatcher/command"
	"github.com/dshills/slashcore/internal/dispatcher/hook"
)

// Target receives a plugin's registrations.
type Target interface {
	Register(desc command.Descriptor) (*command.Command, error)
	Use(name string, fn command.Middleware, priority int) error
	AddHook(key string, fn hook.Func) error
}

// Checker is implemented by targets that can dry-run a batch of command
// registrations. Atomic loads use it to catch collisions before committing.
type Checker interface {
	Check(descs []command.Descriptor) error
}

// Loader validates plugins and registers them into a Target, then stores
// them by name. Plugins cannot be unloaded.
type Loader struct {
	loadMu sync.Mutex

	mu      sync.RWMutex
	plugins map[string]*Plugin
	infos   map[string]Info
	order   []string

	atomic bool
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Loader.
type Option func(*Loader)

// WithAtomic makes Load validate every item before registering any of
// them. Without it, a failure partway through leaves earlier registrations
// in place.
func WithAtomic() Option {
	return func(l *Loader) { l.atomic = true }
}

// WithLogger sets the loader logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		plugins: make(map[string]*Plugin),
		infos:   make(map[string]Info),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Atomic reports whether the loader validates before committing.
func (l *Loader) Atomic() bool {
	return l.atomic
}

// Load registers p's commands, then its middleware, then its hooks, and
// stores p by name on success.
func (l *Loader) Load(p *Plugin, t Target) error {
	if p == nil {
		return ErrNilPlugin
	}

	l.loadMu.Lock()
	defer l.loadMu.Unlock()

	if err := l.validateHeader(p); err != nil {
		return err
	}

	descs := l.tagged(p)
	if l.atomic {
		if err := l.validate(p, descs, t); err != nil {
			l.logger.Warn("plugin rejected", "plugin", p.Name, "error", err)
			return err
		}
	}

	names := make([]string, 0, len(descs))
	for _, desc := range descs {
		cmd, err := t.Register(desc)
		if err != nil {
			return l.fail(p, "command "+strconv.Quote(desc.Name), err)
		}
		names = append(names, cmd.Name)
	}

	for i, mw := range p.Middleware {
		if err := t.Use(middlewareName(p, i, mw), mw.Fn, mw.Priority); err != nil {
			return l.fail(p, "middleware "+strconv.Quote(middlewareName(p, i, mw)), err)
		}
	}

	for _, key := range p.hookKeys() {
		for _, fn := range p.Hooks[key] {
			if err := t.AddHook(key, fn); err != nil {
				return l.fail(p, "hook "+strconv.Quote(key), err)
			}
		}
	}

	info := p.info(names, l.now())
	l.mu.Lock()
	l.plugins[p.Name] = p
	l.infos[p.Name] = info
	l.order = append(l.order, p.Name)
	l.mu.Unlock()

	l.logger.Info("plugin loaded",
		"plugin", p.Name,
		"version", p.Version,
		"commands", len(names),
		"middleware", len(p.Middleware),
		"hooks", info.Hooks,
	)
	return nil
}

func (l *Loader) fail(p *Plugin, item string, err error) error {
	lerr := &LoadError{Plugin: p.Name, Item: item, Err: err}
	l.logger.Error("plugin load failed", "plugin", p.Name, "item", item, "error", err)
	return lerr
}

func (l *Loader) validateHeader(p *Plugin) error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrMissingName
	}
	if p.Commands == nil {
		return &LoadError{Plugin: p.Name, Item: "commands", Err: ErrMissingCommands}
	}
	if l.Has(p.Name) {
		return fmt.Errorf("%w: %q", ErrAlreadyLoaded, p.Name)
	}
	return nil
}

// tagged copies the plugin's descriptors, filling author and version from
// the plugin where the command leaves them empty.
func (l *Loader) tagged(p *Plugin) []command.Descriptor {
	out := make([]command.Descriptor, len(p.Commands))
	for i, desc := range p.Commands {
		if desc.Author == "" {
			desc.Author = p.Author
		}
		if desc.Version == "" {
			desc.Version = p.Version
		}
		desc.Plugin = p.Name
		out[i] = desc
	}
	return out
}

// Validate checks p as an atomic load would, without registering anything.
func (l *Loader) Validate(p *Plugin, t Target) error {
	if p == nil {
		return ErrNilPlugin
	}
	if err := l.validateHeader(p); err != nil {
		return err
	}
	return l.validate(p, l.tagged(p), t)
}

func (l *Loader) validate(p *Plugin, descs []command.Descriptor, t Target) error {
	var errs []error
	for _, desc := range descs {
		if err := desc.Validate(); err != nil {
			errs = append(errs, &LoadError{Plugin: p.Name, Item: "command " + strconv.Quote(desc.Name), Err: err})
		}
	}
	if c, ok := t.(Checker); ok && len(errs) == 0 {
		if err := c.Check(descs); err != nil {
			errs = append(errs, &LoadError{Plugin: p.Name, Item: "commands", Err: err})
		}
	}
	for i, mw := range p.Middleware {
		if mw.Fn == nil {
			errs = append(errs, &LoadError{Plugin: p.Name, Item: "middleware " + strconv.Quote(middlewareName(p, i, mw)), Err: ErrNilMiddleware})
		}
	}
	for _, key := range p.hookKeys() {
		if _, err := hook.ParseKey(key); err != nil {
			errs = append(errs, &LoadError{Plugin: p.Name, Item: "hook " + strconv.Quote(key), Err: err})
			continue
		}
		for _, fn := range p.Hooks[key] {
			if fn == nil {
				errs = append(errs, &LoadError{Plugin: p.Name, Item: "hook " + strconv.Quote(key), Err: ErrNilHook})
			}
		}
	}
	return errors.Join(errs...)
}

func middlewareName(p *Plugin, i int, mw MiddlewareSpec) string {
	if mw.Name != "" {
		return p.Name + "/" + mw.Name
	}
	return p.Name + "/middleware#" + strconv.Itoa(i)
}

// Has reports whether a plugin is stored under name.
func (l *Loader) Has(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.plugins[name]
	return ok
}

// Get returns the stored plugin.
func (l *Loader) Get(name string) (*Plugin, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.plugins[name]
	return p, ok
}

// Info returns the description of a stored plugin.
func (l *Loader) Info(name string) (Info, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	info, ok := l.infos[name]
	return info, ok
}

// List returns every stored plugin in load order.
func (l *Loader) List() []Info {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Info, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, l.infos[name])
	}
	return out
}

// Len returns the number of stored plugins.
func (l *Loader) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// Close releases every stored plugin's resources.
func (l *Loader) Close() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var errs []error
	for _, name := range l.order {
		if c := l.plugins[name].Closer; c != nil {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("plugin %q: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}
