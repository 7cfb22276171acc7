package lua

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// ModuleName is the global table scripts use to reach the engine.
const ModuleName = "slash"

// removedGlobals can load code from disk or strings and bypass the
// manifest.
var removedGlobals = []string{"dofile", "loadfile", "load", "loadstring", "require", "module"}

// installSandbox strips loaders, routes print to the logger and installs
// the slash module.
func installSandbox(s *State) {
	for _, name := range removedGlobals {
		s.L.SetGlobal(name, lua.LNil)
	}

	s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
		s.logger.Info(joinArgs(L, 1), "source", "lua")
		return 0
	}))

	mod := s.L.SetFuncs(s.L.NewTable(), map[string]lua.LGFunction{
		"log":   s.luaLog,
		"has":   s.luaHas,
		"names": s.luaNames,
	})
	s.L.SetGlobal(ModuleName, mod)
}

// luaLog implements slash.log(level, ...).
func (s *State) luaLog(L *lua.LState) int {
	level := strings.ToLower(L.CheckString(1))
	msg := joinArgs(L, 2)

	logger := s.logger
	if s.host != nil {
		logger = s.host.Logger()
	}
	switch level {
	case "debug":
		logger.Debug(msg, "source", "lua")
	case "warn", "warning":
		logger.Warn(msg, "source", "lua")
	case "error":
		logger.Error(msg, "source", "lua")
	default:
		logger.Info(msg, "source", "lua")
	}
	return 0
}

// luaHas implements slash.has(name).
func (s *State) luaHas(L *lua.LState) int {
	name := L.CheckString(1)
	L.Push(lua.LBool(s.host != nil && s.host.Has(name)))
	return 1
}

// luaNames implements slash.names().
func (s *State) luaNames(L *lua.LState) int {
	var names []string
	if s.host != nil {
		names = s.host.Names()
	}
	L.Push(NewBridge(L).ToLuaValue(names))
	return 1
}

func joinArgs(L *lua.LState, from int) string {
	parts := make([]string, 0, L.GetTop())
	for i := from; i <= L.GetTop(); i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	return strings.Join(parts, " ")
}
