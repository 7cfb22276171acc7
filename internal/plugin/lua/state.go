package lua

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/slashcore/internal/dispatcher/execctx"
)

// DefaultExecutionTimeout bounds a single script call.
const DefaultExecutionTimeout = 5 * time.Second

// State wraps gopher-lua for plugin execution.
//
// gopher-lua's LState is not goroutine-safe. State serializes every call
// with a mutex, so one plugin executes one call at a time.
type State struct {
	L *lua.LState

	mu sync.Mutex

	executionTimeout time.Duration
	logger           *slog.Logger

	// host is the engine facade of the call in flight, nil between calls.
	host execctx.Host

	closed bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithExecutionTimeout sets the per-call timeout. Zero disables it.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(s *State) {
		if d >= 0 {
			s.executionTimeout = d
		}
	}
}

// WithLogger sets the logger used by print and slash.log.
func WithLogger(logger *slog.Logger) StateOption {
	return func(s *State) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewState creates a sandboxed Lua state.
func NewState(opts ...StateOption) (*State, error) {
	s := &State{
		executionTimeout: DefaultExecutionTimeout,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(s.L)
	installSandbox(s)
	return s, nil
}

// openSafeLibraries opens only the libraries without host access.
// io, os, debug and package are never opened.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// DoFile executes a Lua file.
func (s *State) DoFile(path string) error {
	return s.run(context.Background(), nil, func() error {
		return s.L.DoFile(path)
	})
}

// DoString executes a Lua string.
func (s *State) DoString(code string) error {
	return s.run(context.Background(), nil, func() error {
		return s.L.DoString(code)
	})
}

// HasFunction reports whether name is a global function.
func (s *State) HasFunction(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.L.GetGlobal(name).Type() == lua.LTFunction
}

// Call calls a global function with Go arguments converted by the bridge.
func (s *State) Call(ctx context.Context, host execctx.Host, fn string, args ...any) ([]lua.LValue, error) {
	return s.Invoke(ctx, host, fn, func(b *Bridge) []lua.LValue {
		out := make([]lua.LValue, len(args))
		for i, a := range args {
			out[i] = b.ToLuaValue(a)
		}
		return out
	})
}

// Invoke calls a global function. build runs while the state is locked and
// returns the Lua arguments. The call is bounded by ctx and the execution
// timeout; host is reachable from the script through the slash module.
// Returns an empty slice (not nil) if the function returns no values.
func (s *State) Invoke(ctx context.Context, host execctx.Host, fn string, build func(*Bridge) []lua.LValue) ([]lua.LValue, error) {
	var results []lua.LValue
	err := s.run(ctx, host, func() error {
		fnVal := s.L.GetGlobal(fn)
		if fnVal.Type() != lua.LTFunction {
			return fmt.Errorf("%w: %q", ErrMissingFunction, fn)
		}

		var args []lua.LValue
		if build != nil {
			args = build(NewBridge(s.L))
		}

		stackTop := s.L.GetTop()
		s.L.Push(fnVal)
		for _, arg := range args {
			s.L.Push(arg)
		}
		if err := s.L.PCall(len(args), lua.MultRet, nil); err != nil {
			s.L.SetTop(stackTop)
			return err
		}

		nRet := s.L.GetTop() - stackTop
		results = make([]lua.LValue, 0, max(nRet, 0))
		for i := 1; i <= nRet; i++ {
			results = append(results, s.L.Get(stackTop+i))
		}
		s.L.SetTop(stackTop)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// run executes fn under the state lock with the timeout installed on the
// VM and panics recovered.
func (s *State) run(ctx context.Context, host execctx.Host, fn func() error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	callCtx := ctx
	if s.executionTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.executionTimeout)
		defer cancel()
	}
	s.L.SetContext(callCtx)
	s.host = host
	defer func() {
		s.L.RemoveContext()
		s.host = nil
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	err = fn()
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return fmt.Errorf("%w: %v", ctx.Err(), err)
		case errors.Is(callCtx.Err(), context.DeadlineExceeded):
			return fmt.Errorf("%w after %s", ErrExecutionTimeout, s.executionTimeout)
		}
	}
	return err
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the Lua state. After Close every call returns
// ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
