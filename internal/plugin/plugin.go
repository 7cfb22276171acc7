package plugin

import (
	"io"
	"sort"
	"time"

	"github.com/dshills/slashcore/internal/dispatcher/command"
	"github.com/dshills/slashcore/internal/dispatcher/hook"
)

// DefaultMiddlewarePriority is applied to manifest middleware that does not
// declare a priority.
const DefaultMiddlewarePriority = 100

// MiddlewareSpec is a global middleware contributed by a plugin.
type MiddlewareSpec struct {
	Name     string
	Fn       command.Middleware
	Priority int
}

// Plugin is a named bundle of commands, middleware and hooks registered
// together.
type Plugin struct {
	Name        string
	Version     string
	Author      string
	Description string

	Commands   []command.Descriptor
	Middleware []MiddlewareSpec

	// Hooks maps "phase:command" keys to hook functions.
	Hooks map[string][]hook.Func

	// Source is the directory a file plugin was read from.
	Source string

	// Closer releases resources owned by the plugin, such as a script
	// runtime. It may be nil.
	Closer io.Closer
}

// hookKeys returns the hook keys in sorted order so registration is
// deterministic.
func (p *Plugin) hookKeys() []string {
	keys := make([]string, 0, len(p.Hooks))
	for k := range p.Hooks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Info describes a stored plugin.
type Info struct {
	Name        string    `json:"name" yaml:"name"`
	Version     string    `json:"version,omitempty" yaml:"version,omitempty"`
	Author      string    `json:"author,omitempty" yaml:"author,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Source      string    `json:"source,omitempty" yaml:"source,omitempty"`
	Commands    []string  `json:"commands" yaml:"commands"`
	Middleware  int       `json:"middleware" yaml:"middleware"`
	Hooks       int       `json:"hooks" yaml:"hooks"`
	LoadedAt    time.Time `json:"loadedAt" yaml:"loadedAt"`
}

func (p *Plugin) info(commands []string, at time.Time) Info {
	hooks := 0
	for _, fns := range p.Hooks {
		hooks += len(fns)
	}
	return Info{
		Name:        p.Name,
		Version:     p.Version,
		Author:      p.Author,
		Description: p.Description,
		Source:      p.Source,
		Commands:    commands,
		Middleware:  len(p.Middleware),
		Hooks:       hooks,
		LoadedAt:    at,
	}
}
