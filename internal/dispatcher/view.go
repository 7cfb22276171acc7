package dispatcher

import (
	"github.com/dshills/slashcore/internal/dispatcher/command"
	"github.com/dshills/slashcore/internal/dispatcher/history"
	"github.com/dshills/slashcore/internal/dispatcher/stats"
	"github.com/dshills/slashcore/internal/plugin"
)

// View is a read-only window onto a Dispatcher for handlers that report on
// engine state. Every method returns copies; nothing reachable from a View
// can register, unregister or record.
type View struct {
	d *Dispatcher
}

// View returns a read-only view of d.
func (d *Dispatcher) View() View {
	return View{d: d}
}

// Prefix returns the command prefix.
func (v View) Prefix() string {
	return v.d.config.Prefix
}

// Lookup resolves a name or alias.
func (v View) Lookup(nameOrAlias string) (command.Info, bool) {
	cmd, ok := v.d.registry.Resolve(nameOrAlias)
	if !ok {
		return command.Info{}, false
	}
	return cmd.Info(), true
}

// Categories returns the non-empty category names, sorted.
func (v View) Categories() []string {
	return v.d.registry.Categories()
}

// Category returns the non-hidden commands of a category in the order they
// joined it.
func (v View) Category(category string) []command.Info {
	return infos(v.d.registry.ByCategory(category))
}

// Commands returns the non-hidden commands in registration order.
func (v View) Commands() []command.Info {
	return infos(v.d.registry.Visible())
}

// Search returns the non-hidden commands matching keyword.
func (v View) Search(keyword string) []command.Info {
	var out []command.Info
	for _, cmd := range v.d.registry.Search(keyword) {
		if !cmd.Hidden {
			out = append(out, cmd.Info())
		}
	}
	return out
}

// History returns up to n of the newest history entries.
func (v View) History(n int) []history.Entry {
	entries := v.d.history.Recent(n)
	for i := range entries {
		entries[i].Args = append([]string(nil), entries[i].Args...)
	}
	return entries
}

// Statistics returns the global aggregates.
func (v View) Statistics() stats.Snapshot {
	return v.d.stats.Snapshot()
}

// MostUsed returns the n most executed commands.
func (v View) MostUsed(n int) []stats.Usage {
	return v.d.stats.MostUsed(n)
}

// Slowest returns the n commands with the highest average execution time.
func (v View) Slowest(n int) []stats.CommandStats {
	return v.d.stats.Slowest(n)
}

// Plugins returns the loaded plugins.
func (v View) Plugins() []plugin.Info {
	return v.d.plugins.List()
}

func infos(cmds []*command.Command) []command.Info {
	out := make([]command.Info, len(cmds))
	for i, cmd := range cmds {
		out[i] = cmd.Info()
	}
	return out
}
