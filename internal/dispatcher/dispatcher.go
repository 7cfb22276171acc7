package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dshills/slashcore/internal/dispatcher/command"
	"github.com/dshills/slashcore/internal/dispatcher/execctx"
	"github.com/dshills/slashcore/internal/dispatcher/handler"
	"github.com/dshills/slashcore/internal/dispatcher/history"
	"github.com/dshills/slashcore/internal/dispatcher/hook"
	"github.com/dshills/slashcore/internal/dispatcher/middleware"
	"github.com/dshills/slashcore/internal/dispatcher/similarity"
	"github.com/dshills/slashcore/internal/dispatcher/stats"
	"github.com/dshills/slashcore/internal/notify"
	"github.com/dshills/slashcore/internal/plugin"
)

// Dispatcher resolves command input and runs it through permission checks,
// middleware, hooks and the handler, then records the outcome.
type Dispatcher struct {
	mu sync.RWMutex

	// Core components
	registry *command.Registry
	pipeline *middleware.Pipeline
	hooks    *hook.Bus
	stats    *stats.Collector
	history  *history.Ring
	plugins  *plugin.Loader

	// Notifications
	notifier    *notify.Notifier
	ownNotifier bool

	// Host-supplied collaborators reachable through Service
	services map[string]any

	// Configuration
	config Config
	logger *slog.Logger

	closed bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger. Components log through children
// of it tagged with their name.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithNotifier delivers lifecycle events through n. The caller keeps
// ownership and closes it.
func WithNotifier(n *notify.Notifier) Option {
	return func(d *Dispatcher) {
		if n != nil {
			d.notifier = n
		}
	}
}

// WithService exposes a collaborator to handlers under key.
func WithService(key string, service any) Option {
	return func(d *Dispatcher) {
		d.services[key] = service
	}
}

// WithPluginLoader replaces the default sequential plugin loader.
func WithPluginLoader(l *plugin.Loader) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.plugins = l
		}
	}
}

// New creates a dispatcher with the given configuration.
func New(config Config, opts ...Option) (*Dispatcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	d := &Dispatcher{
		config:   config,
		logger:   slog.Default(),
		services: make(map[string]any),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.registry = command.NewRegistry(
		command.WithPolicy(config.CollisionPolicy),
		command.WithLogger(d.logger.With("component", "registry")),
	)
	d.pipeline = middleware.New()
	d.hooks = hook.NewBus(d.logger.With("component", "hooks"))
	d.stats = stats.NewCollector()
	d.history = history.NewRing(config.HistoryCapacity)
	if d.plugins == nil {
		d.plugins = plugin.NewLoader(plugin.WithLogger(d.logger.With("component", "plugins")))
	}
	if d.notifier == nil {
		d.notifier = notify.New(notify.WithLogger(d.logger.With("component", "notify")))
		d.ownNotifier = true
	}
	d.logger = d.logger.With("component", "dispatcher")
	return d, nil
}

// NewWithDefaults creates a new dispatcher with default configuration.
func NewWithDefaults() *Dispatcher {
	d, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return d
}

// Config returns the dispatcher configuration.
func (d *Dispatcher) Config() Config {
	return d.config
}

// Registry returns the command registry.
func (d *Dispatcher) Registry() *command.Registry {
	return d.registry
}

// Pipeline returns the global middleware pipeline.
func (d *Dispatcher) Pipeline() *middleware.Pipeline {
	return d.pipeline
}

// Hooks returns the hook bus.
func (d *Dispatcher) Hooks() *hook.Bus {
	return d.hooks
}

// Statistics returns the statistics collector.
func (d *Dispatcher) Statistics() *stats.Collector {
	return d.stats
}

// History returns the history ring.
func (d *Dispatcher) History() *history.Ring {
	return d.history
}

// Plugins returns the plugin loader.
func (d *Dispatcher) Plugins() *plugin.Loader {
	return d.plugins
}

// Subscribe registers an observer for every lifecycle event.
func (d *Dispatcher) Subscribe(observer notify.Observer) *notify.Subscription {
	return d.notifier.Subscribe(observer)
}

// SubscribeType registers an observer for the given event types only.
func (d *Dispatcher) SubscribeType(observer notify.Observer, types ...notify.EventType) *notify.Subscription {
	return d.notifier.SubscribeType(observer, types...)
}

// Has implements execctx.Host.
func (d *Dispatcher) Has(nameOrAlias string) bool {
	return d.registry.Has(nameOrAlias)
}

// Names implements execctx.Host.
func (d *Dispatcher) Names() []string {
	return d.registry.Names()
}

// Service implements execctx.Host.
func (d *Dispatcher) Service(key string) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.services[key]
	return s, ok
}

// Logger implements execctx.Host.
func (d *Dispatcher) Logger() *slog.Logger {
	return d.logger
}

// SetService exposes a collaborator to handlers under key.
func (d *Dispatcher) SetService(key string, service any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.services[key] = service
}

// Register adds a command and announces it.
func (d *Dispatcher) Register(desc command.Descriptor) (*command.Command, error) {
	cmd, replaced, err := d.registry.Register(desc)
	if err != nil {
		return nil, err
	}
	d.notifier.Notify(registeredEvent(cmd, replaced))
	return cmd, nil
}

func registeredEvent(cmd *command.Command, replaced bool) notify.Event {
	e := notify.Event{Type: notify.CommandRegistered, Command: cmd.Name, Plugin: cmd.Plugin}
	if replaced {
		e.Message = "replaced"
	}
	return e
}

// Unregister removes a command and announces it. It reports whether the
// command existed.
func (d *Dispatcher) Unregister(name string) bool {
	cmd, ok := d.registry.Unregister(name)
	if !ok {
		return false
	}
	d.notifier.Notify(notify.Event{Type: notify.CommandUnregistered, Command: cmd.Name, Plugin: cmd.Plugin})
	return true
}

// Use adds a global middleware at priority.
func (d *Dispatcher) Use(name string, fn command.Middleware, priority int) error {
	return d.pipeline.Use(name, fn, priority)
}

// AddHook registers a hook for phase and command. The command "*" matches
// every command.
func (d *Dispatcher) AddHook(phase hook.Phase, cmd string, fn hook.Func) error {
	return d.hooks.Register(phase, cmd, fn)
}

// Parse splits command input into the command token and its arguments.
// ok is false when input does not start with the prefix.
func (d *Dispatcher) Parse(input string) (name string, args []string, ok bool, err error) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, d.config.Prefix) {
		return "", nil, false, nil
	}

	tokens, err := tokenize(strings.TrimPrefix(trimmed, d.config.Prefix), d.config.ArgMode)
	if err != nil {
		return "", nil, true, err
	}
	if len(tokens) == 0 {
		return "", nil, true, ErrEmptyCommand
	}
	return tokens[0], tokens[1:], true, nil
}

// Dispatch parses input and executes the command it names.
//
// Input without the prefix yields StatusNotCommand. Unknown commands,
// permission denials and middleware aborts are reported in the result with
// a nil error. A failing handler or middleware yields StatusError and an
// *ExecutionError; handler failures are recorded before returning.
func (d *Dispatcher) Dispatch(ctx context.Context, input string, opts ...execctx.Option) (handler.Result, error) {
	if d.isClosed() {
		return handler.Result{}, ErrClosed
	}

	name, args, ok, err := d.Parse(input)
	if !ok {
		return handler.NotCommand(), nil
	}
	if err != nil {
		return handler.InvalidInput(err), nil
	}
	return d.execute(ctx, name, args, input, opts)
}

// Execute runs a command by name or alias with pre-split arguments.
func (d *Dispatcher) Execute(ctx context.Context, name string, args []string, opts ...execctx.Option) (handler.Result, error) {
	if d.isClosed() {
		return handler.Result{}, ErrClosed
	}
	return d.execute(ctx, name, args, "", opts)
}

func (d *Dispatcher) execute(ctx context.Context, token string, args []string, raw string, opts []execctx.Option) (handler.Result, error) {
	// RESOLVE
	cmd, ok := d.registry.Resolve(token)
	if !ok {
		name := command.Normalize(token)
		suggestions := similarity.SuggestN(
			name,
			d.registry.VisibleNames(),
			d.config.SuggestionThreshold,
			d.config.MaxSuggestions,
		)
		d.logger.Debug("command not found", "command", name, "suggestions", suggestions)
		d.notifier.Notify(notify.Event{
			Type:        notify.CommandNotFound,
			Command:     name,
			Args:        args,
			Suggestions: suggestions,
		})
		return handler.NotFound(name, suggestions), nil
	}

	ec := d.newContext(cmd, args, raw, opts)

	// PERMISSION_CHECK
	if missing := ec.Missing(cmd.Permissions); len(missing) > 0 {
		d.logger.Info("permission denied",
			"command", cmd.Name,
			"user", ec.User,
			"missing", missing,
		)
		d.notifier.Notify(notify.Event{
			Type:         notify.PermissionDenied,
			Command:      cmd.Name,
			InvocationID: ec.InvocationID,
			Args:         ec.Args,
			Missing:      missing,
		})
		return handler.PermissionDenied(cmd.Name, missing, execctx.ErrPermissionDenied), nil
	}

	if cmd.Deprecated {
		msg := fmt.Sprintf("command %q is deprecated", cmd.Name)
		d.logger.Warn(msg, "command", cmd.Name, "plugin", cmd.Plugin)
		d.notifier.Notify(notify.Event{
			Type:         notify.CommandDeprecated,
			Command:      cmd.Name,
			InvocationID: ec.InvocationID,
			Message:      msg,
		})
	}

	// MIDDLEWARE
	outcome, err := d.pipeline.Run(ctx, cmd, ec, d)
	if err != nil {
		eerr := &ExecutionError{Command: cmd.Name, Stage: StageMiddleware, Err: err}
		d.logger.Error("middleware failed", "command", cmd.Name, "middleware", outcome.StoppedBy, "error", err)
		d.notifier.Notify(notify.Event{
			Type:         notify.CommandError,
			Command:      cmd.Name,
			InvocationID: ec.InvocationID,
			Args:         ec.Args,
			Err:          eerr,
		})
		return handler.Failure(cmd.Name, eerr), eerr
	}
	if !outcome.Continue {
		result := handler.Aborted(cmd.Name, outcome.StoppedBy)
		if advisory, ok := ec.Get(middleware.AdvisoryKey); ok {
			if s, ok := advisory.(string); ok && s != "" {
				result = result.WithMessage(s)
			}
		}
		d.logger.Debug("middleware aborted", "command", cmd.Name, "middleware", outcome.StoppedBy)
		d.notifier.Notify(notify.Event{
			Type:         notify.MiddlewareAborted,
			Command:      cmd.Name,
			InvocationID: ec.InvocationID,
			Args:         ec.Args,
			Message:      result.Message,
		})
		return result, nil
	}

	// PRE_HOOKS
	d.hooks.Run(ctx, hook.Pre, cmd.Name, ec, d)

	// EXECUTE
	start := time.Now()
	value, herr := d.invoke(ctx, cmd, ec)
	elapsed := time.Since(start)
	ec.Result, ec.Err = value, herr

	// POST_HOOKS
	d.hooks.Run(ctx, hook.Post, cmd.Name, ec, d)

	// RECORD
	d.record(cmd, ec, start, elapsed)

	if herr != nil {
		eerr := &ExecutionError{Command: cmd.Name, Stage: StageHandler, Err: herr}
		d.logger.Error("command failed", "command", cmd.Name, "duration", elapsed, "error", herr)
		d.notifier.Notify(notify.Event{
			Type:         notify.CommandError,
			Command:      cmd.Name,
			Plugin:       cmd.Plugin,
			InvocationID: ec.InvocationID,
			Args:         ec.Args,
			Err:          eerr,
			Duration:     elapsed,
		})
		return handler.Failure(cmd.Name, eerr).WithDuration(elapsed), eerr
	}

	d.notifier.Notify(notify.Event{
		Type:         notify.CommandExecuted,
		Command:      cmd.Name,
		Plugin:       cmd.Plugin,
		InvocationID: ec.InvocationID,
		Args:         ec.Args,
		Value:        value,
		Duration:     elapsed,
	})
	return handler.Success(cmd.Name, value).WithDuration(elapsed), nil
}

// newContext builds the execution context, applying the configured
// identity before the caller's options.
func (d *Dispatcher) newContext(cmd *command.Command, args []string, raw string, opts []execctx.Option) *execctx.ExecutionContext {
	all := make([]execctx.Option, 0, len(opts)+2)
	all = append(all,
		execctx.WithUser(d.config.DefaultUser),
		execctx.WithSession(d.config.DefaultSession),
	)
	all = append(all, opts...)

	ec := execctx.New(all...)
	ec.Command = cmd.Name
	ec.Args = append([]string{}, args...)
	ec.RawInput = raw
	return ec
}

// invoke runs the handler under the configured timeout and panic recovery.
func (d *Dispatcher) invoke(ctx context.Context, cmd *command.Command, ec *execctx.ExecutionContext) (value any, err error) {
	callCtx := ctx
	if d.config.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.config.HandlerTimeout)
		defer cancel()
	}

	if d.config.RecoverFromPanic {
		defer func() {
			if r := recover(); r != nil {
				stack := make([]byte, 4096)
				n := runtime.Stack(stack, false)
				d.logger.Error("handler panic",
					"command", cmd.Name,
					"panic", r,
					"stack", string(stack[:n]),
				)
				value, err = nil, fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
	}

	value, err = cmd.Handler.Handle(callCtx, ec.Args, ec, d)

	if d.config.HandlerTimeout > 0 && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		if err == nil {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, d.config.HandlerTimeout)
		}
		return nil, fmt.Errorf("%w after %s: %w", ErrTimeout, d.config.HandlerTimeout, err)
	}
	return value, err
}

// record updates statistics and history for a completed attempt.
func (d *Dispatcher) record(cmd *command.Command, ec *execctx.ExecutionContext, start time.Time, elapsed time.Duration) {
	success := ec.Err == nil

	cmd.RecordExecution(elapsed, start)
	d.stats.Record(cmd.Name, elapsed, success, start)

	entry := history.Entry{
		InvocationID:  ec.InvocationID,
		Command:       cmd.Name,
		Args:          ec.Args,
		User:          ec.User,
		Session:       ec.Session,
		ExecutedAt:    start,
		ExecutionTime: elapsed,
		Success:       success,
	}
	if success {
		entry.Result = ec.Result
	} else {
		entry.Error = ec.Err.Error()
	}
	d.history.Append(entry)

	if d.config.SlowThreshold > 0 && elapsed > d.config.SlowThreshold {
		d.logger.Warn("slow command",
			"command", cmd.Name,
			"duration", elapsed,
			"threshold", d.config.SlowThreshold,
		)
	}
}

func (d *Dispatcher) isClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

// Close releases plugin resources and stops a notifier the dispatcher
// created. Dispatch after Close returns ErrClosed.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	err := d.plugins.Close()
	if d.ownNotifier {
		d.notifier.Close()
	}
	return err
}
