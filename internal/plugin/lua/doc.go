// Package lua runs file plugins on gopher-lua.
//
// A plugin directory holds a manifest and an entry script. The script
// defines global functions; the manifest binds them by name:
//
//	-- init.lua
//	function forecast(args, ctx)
//	    if #args == 0 then
//	        return nil, "city required"
//	    end
//	    return "sunny in " .. args[1]
//	end
//
//	function only_weekdays(cmd, ctx)
//	    return ctx.data.weekday ~= false, "closed on weekends"
//	end
//
//	function audit(ctx)
//	    slash.log("info", ctx.command, ctx.user)
//	end
//
// Handlers receive the argument list and a context table with command,
// args, raw, user, session, invocation_id, timestamp, permissions, admin,
// data, result and error. Middleware receives a command table first.
// Writes to ctx.data are copied back so later stages see them.
//
// # Sandbox
//
// Only the base, table, string and math libraries are opened. dofile,
// loadfile, load, loadstring and require are removed, and print writes to
// the plugin logger. The slash module offers log, has and names.
//
// Every call runs under the state mutex and a per-call timeout:
//
//	p, err := lua.OpenDir(dir, lua.WithExecutionTimeout(2*time.Second))
//	if err != nil {
//	    return err
//	}
//	defer p.Closer.Close()
package lua
