package lua

import (
	"context"
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/slashcore/internal/dispatcher/command"
	"github.com/dshills/slashcore/internal/dispatcher/execctx"
	"github.com/dshills/slashcore/internal/dispatcher/handler"
	"github.com/dshills/slashcore/internal/dispatcher/hook"
	"github.com/dshills/slashcore/internal/dispatcher/middleware"
)

// contextTable exposes the invocation to a script. Changes a script makes
// to ctx.data are copied back to the execution context.
func contextTable(b *Bridge, ec *execctx.ExecutionContext) (*lua.LTable, *lua.LTable) {
	data := b.L.CreateTable(0, len(ec.Data))
	for k, v := range ec.Data {
		data.RawSetString(k, b.ToLuaValue(v))
	}

	t := b.L.CreateTable(0, 12)
	t.RawSetString("command", lua.LString(ec.Command))
	t.RawSetString("args", b.ToLuaValue(ec.Args))
	t.RawSetString("raw", lua.LString(ec.RawInput))
	t.RawSetString("user", lua.LString(ec.User))
	t.RawSetString("session", lua.LString(ec.Session))
	t.RawSetString("invocation_id", lua.LString(ec.InvocationID))
	t.RawSetString("timestamp", lua.LNumber(ec.Timestamp.Unix()))
	t.RawSetString("permissions", b.ToLuaValue(ec.Permissions()))
	t.RawSetString("admin", lua.LBool(ec.IsAdmin()))
	t.RawSetString("data", data)
	t.RawSetString("result", b.ToLuaValue(ec.Result))
	if ec.Err != nil {
		t.RawSetString("error", lua.LString(ec.Err.Error()))
	}
	return t, data
}

func commandTable(b *Bridge, cmd *command.Command) *lua.LTable {
	t := b.L.CreateTable(0, 5)
	if cmd == nil {
		return t
	}
	t.RawSetString("name", lua.LString(cmd.Name))
	t.RawSetString("category", lua.LString(cmd.Category))
	t.RawSetString("plugin", lua.LString(cmd.Plugin))
	t.RawSetString("permissions", b.ToLuaValue(cmd.Permissions))
	t.RawSetString("deprecated", lua.LBool(cmd.Deprecated))
	return t
}

// copyData writes the script's view of ctx.data back onto ec.
func copyData(ec *execctx.ExecutionContext, data *lua.LTable) {
	if data == nil {
		return
	}
	if m, ok := ToGoValue(data).(map[string]any); ok {
		for k, v := range m {
			ec.Set(k, v)
		}
	}
}

// scriptError turns a trailing string return value into an error.
func scriptError(fn string, results []lua.LValue, at int) error {
	if len(results) <= at {
		return nil
	}
	if s, ok := results[at].(lua.LString); ok && s != "" {
		return fmt.Errorf("%s: %w", fn, errors.New(string(s)))
	}
	return nil
}

// Handler adapts a script function to a command handler.
//
//	function fn(args, ctx) return value [, "error message"] end
func Handler(s *State, fn string) handler.Func {
	return func(ctx context.Context, args []string, ec *execctx.ExecutionContext, host execctx.Host) (any, error) {
		var data *lua.LTable
		results, err := s.Invoke(ctx, host, fn, func(b *Bridge) []lua.LValue {
			var t *lua.LTable
			t, data = contextTable(b, ec)
			return []lua.LValue{b.ToLuaValue(args), t}
		})
		if err != nil {
			return nil, err
		}
		copyData(ec, data)
		if err := scriptError(fn, results, 1); err != nil {
			return nil, err
		}
		if len(results) == 0 {
			return nil, nil
		}
		return ToGoValue(results[0]), nil
	}
}

// Middleware adapts a script function to a command middleware. Returning
// false stops the invocation; a second string return is shown to the user.
// Any other return, including none, continues.
//
//	function fn(cmd, ctx) return ok [, "reason"] end
func Middleware(s *State, fn string) command.Middleware {
	return func(ctx context.Context, cmd *command.Command, ec *execctx.ExecutionContext, host execctx.Host) (bool, error) {
		var data *lua.LTable
		results, err := s.Invoke(ctx, host, fn, func(b *Bridge) []lua.LValue {
			var t *lua.LTable
			t, data = contextTable(b, ec)
			return []lua.LValue{commandTable(b, cmd), t}
		})
		if err != nil {
			return false, err
		}
		copyData(ec, data)
		if len(results) == 0 || results[0] != lua.LFalse {
			return true, nil
		}
		if len(results) > 1 {
			if reason, ok := results[1].(lua.LString); ok && reason != "" {
				ec.Set(middleware.AdvisoryKey, string(reason))
			}
		}
		return false, nil
	}
}

// Hook adapts a script function to a lifecycle hook. Raising an error or
// returning a string reports a failure, which never stops the invocation.
//
//	function fn(ctx) [return "error message"] end
func Hook(s *State, fn string) hook.Func {
	return func(ctx context.Context, ec *execctx.ExecutionContext, host execctx.Host) error {
		var data *lua.LTable
		results, err := s.Invoke(ctx, host, fn, func(b *Bridge) []lua.LValue {
			var t *lua.LTable
			t, data = contextTable(b, ec)
			return []lua.LValue{t}
		})
		if err != nil {
			return err
		}
		copyData(ec, data)
		return scriptError(fn, results, 0)
	}
}
