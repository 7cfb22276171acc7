package lua

import (
	"errors"
	"fmt"

	"github.com/dshills/slashcore/internal/dispatcher/command"
	"github.com/dshills/slashcore/internal/dispatcher/hook"
	"github.com/dshills/slashcore/internal/plugin"
)

// OpenDir loads the manifest in dir and opens it.
func OpenDir(dir string, opts ...StateOption) (*plugin.Plugin, error) {
	m, err := plugin.LoadManifestFromDir(dir)
	if err != nil {
		return nil, err
	}
	return Open(m, opts...)
}

// Open runs the manifest's entry script in a fresh state and binds the
// functions it names. The returned plugin owns the state through Closer.
func Open(m *plugin.Manifest, opts ...StateOption) (*plugin.Plugin, error) {
	s, err := NewState(opts...)
	if err != nil {
		return nil, err
	}
	if err := s.DoFile(m.MainPath()); err != nil {
		s.Close()
		return nil, fmt.Errorf("plugin %q: run %s: %w", m.Name, m.Main, err)
	}
	if err := checkFunctions(s, m); err != nil {
		s.Close()
		return nil, fmt.Errorf("plugin %q: %w", m.Name, err)
	}

	p := &plugin.Plugin{
		Name:        m.Name,
		Version:     m.Version,
		Author:      m.Author,
		Description: m.Description,
		Source:      m.Dir(),
		Closer:      s,
		Commands:    make([]command.Descriptor, 0, len(m.Commands)),
	}

	for _, cm := range m.Commands {
		desc := command.Descriptor{
			Name:        cm.Name,
			Handler:     Handler(s, cm.Handler),
			Description: cm.Description,
			Category:    cm.Category,
			Aliases:     cm.Aliases,
			Permissions: cm.Permissions,
			Parameters:  cm.Parameters,
			Examples:    cm.Examples,
			Hidden:      cm.Hidden,
			Deprecated:  cm.Deprecated,
			Version:     cm.Version,
			Author:      cm.Author,
			Tags:        cm.Tags,
		}
		for _, fn := range cm.Middleware {
			desc.Middleware = append(desc.Middleware, Middleware(s, fn))
		}
		p.Commands = append(p.Commands, desc)
	}

	for _, mm := range m.Middleware {
		name := mm.Name
		if name == "" {
			name = mm.Handler
		}
		p.Middleware = append(p.Middleware, plugin.MiddlewareSpec{
			Name:     name,
			Fn:       Middleware(s, mm.Handler),
			Priority: mm.PriorityOrDefault(),
		})
	}

	if len(m.Hooks) > 0 {
		p.Hooks = make(map[string][]hook.Func, len(m.Hooks))
		for key, fns := range m.Hooks {
			for _, fn := range fns {
				p.Hooks[key] = append(p.Hooks[key], Hook(s, fn))
			}
		}
	}
	return p, nil
}

// checkFunctions reports every function the manifest names that the
// script did not define.
func checkFunctions(s *State, m *plugin.Manifest) error {
	var errs []error
	check := func(what, fn string) {
		if !s.HasFunction(fn) {
			errs = append(errs, fmt.Errorf("%s: %w: %q", what, ErrMissingFunction, fn))
		}
	}
	for _, cm := range m.Commands {
		check("command "+cm.Name, cm.Handler)
		for _, fn := range cm.Middleware {
			check("command "+cm.Name+" middleware", fn)
		}
	}
	for _, mm := range m.Middleware {
		check("middleware", mm.Handler)
	}
	for key, fns := range m.Hooks {
		for _, fn := range fns {
			check("hook "+key, fn)
		}
	}
	return errors.Join(errs...)
}
