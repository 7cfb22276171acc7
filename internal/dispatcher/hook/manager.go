package hook

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/dshills/slashcore/internal/dispatcher/execctx"
)

// Bus stores hooks per (phase, command) and runs them in registration
// order. It is safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	hooks  map[Key][]Func
	logger *slog.Logger
}

// NewBus creates an empty hook bus. A nil logger uses slog.Default().
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		hooks:  make(map[Key][]Func),
		logger: logger,
	}
}

// Register appends fn to the hooks of (phase, command).
func (b *Bus) Register(phase Phase, command string, fn Func) error {
	if fn == nil {
		return ErrNilHook
	}
	command = strings.ToLower(strings.TrimSpace(command))
	if command == "" {
		return fmt.Errorf("%w: empty command", ErrInvalidKey)
	}

	key := Key{Phase: phase, Command: command}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks[key] = append(b.hooks[key], fn)
	return nil
}

// RegisterKey registers fn under a "phase:command" key.
func (b *Bus) RegisterKey(key string, fn Func) error {
	k, err := ParseKey(key)
	if err != nil {
		return err
	}
	return b.Register(k.Phase, k.Command, fn)
}

// Remove drops every hook of (phase, command) and reports how many there
// were.
func (b *Bus) Remove(phase Phase, command string) int {
	key := Key{Phase: phase, Command: strings.ToLower(strings.TrimSpace(command))}

	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.hooks[key])
	delete(b.hooks, key)
	return n
}

// Count returns how many hooks are registered for (phase, command),
// excluding wildcard hooks.
func (b *Bus) Count(phase Phase, command string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.hooks[Key{Phase: phase, Command: strings.ToLower(command)}])
}

// Keys returns the keys with at least one hook, sorted by their string form.
func (b *Bus) Keys() []Key {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]Key, 0, len(b.hooks))
	for k, fns := range b.hooks {
		if len(fns) > 0 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// Run executes the hooks registered for command, then the wildcard hooks,
// for the given phase. Every hook runs even if an earlier one failed;
// failures are logged and returned for inspection.
func (b *Bus) Run(ctx context.Context, phase Phase, command string, ec *execctx.ExecutionContext, host execctx.Host) []error {
	b.mu.RLock()
	specific := append([]Func(nil), b.hooks[Key{Phase: phase, Command: command}]...)
	var wildcard []Func
	if command != Wildcard {
		wildcard = append(wildcard, b.hooks[Key{Phase: phase, Command: Wildcard}]...)
	}
	b.mu.RUnlock()

	var errs []error
	run := func(key string, fns []Func) {
		for i, fn := range fns {
			if err := call(ctx, fn, ec, host); err != nil {
				herr := &Error{Phase: phase, Command: key, Index: i, Err: err}
				b.logger.Warn("hook failed",
					"phase", phase.String(),
					"command", command,
					"key", key,
					"index", i,
					"error", err,
				)
				errs = append(errs, herr)
			}
		}
	}
	run(command, specific)
	run(Wildcard, wildcard)
	return errs
}

func call(ctx context.Context, fn Func, ec *execctx.ExecutionContext, host execctx.Host) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn(ctx, ec, host)
}
