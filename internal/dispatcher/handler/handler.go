// Package handler provides the handler contract and result types for command
// dispatch.
package handler

import (
	"context"
	"errors"

	"github.com/dshills/slashcore/internal/dispatcher/execctx"
)

// ErrNilHandler is returned when a Func with no function is invoked.
var ErrNilHandler = errors.New("handler: function is nil")

// Handler executes a command. Implementations are owned by feature modules;
// the engine treats the returned value as opaque.
type Handler interface {
	// Handle runs the command with its positional arguments.
	// A non-nil error marks the execution as failed.
	Handle(ctx context.Context, args []string, ec *execctx.ExecutionContext, host execctx.Host) (any, error)
}

// Func is a function adapter for the Handler interface.
type Func func(ctx context.Context, args []string, ec *execctx.ExecutionContext, host execctx.Host) (any, error)

// Handle implements Handler.
func (f Func) Handle(ctx context.Context, args []string, ec *execctx.ExecutionContext, host execctx.Host) (any, error) {
	if f == nil {
		return nil, ErrNilHandler
	}
	return f(ctx, args, ec, host)
}

// Static returns a handler that always yields value.
func Static(value any) Handler {
	return Func(func(context.Context, []string, *execctx.ExecutionContext, execctx.Host) (any, error) {
		return value, nil
	})
}

// Simple adapts a function that only needs the arguments.
func Simple(fn func(args []string) (any, error)) Handler {
	return Func(func(_ context.Context, args []string, _ *execctx.ExecutionContext, _ execctx.Host) (any, error) {
		return fn(args)
	})
}
