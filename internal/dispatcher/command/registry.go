package command

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// CollisionPolicy decides what Register does when a name or alias is
// already in use.
type CollisionPolicy uint8

const (
	// CollisionOverwrite replaces the previous owner and logs a warning.
	CollisionOverwrite CollisionPolicy = iota
	// CollisionReject fails the registration.
	CollisionReject
)

// String returns the policy name used in configuration.
func (p CollisionPolicy) String() string {
	if p == CollisionReject {
		return "reject"
	}
	return "overwrite"
}

// ParseCollisionPolicy parses "overwrite" or "reject".
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "overwrite":
		return CollisionOverwrite, nil
	case "reject":
		return CollisionReject, nil
	default:
		return CollisionOverwrite, fmt.Errorf("command: unknown collision policy %q", s)
	}
}

// Registry owns the command table, the alias table and the category index.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	commands   map[string]*Command
	order      []string
	aliases    map[string]string
	categories map[string][]string

	policy CollisionPolicy
	logger *slog.Logger
	now    func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithPolicy sets the collision policy.
func WithPolicy(p CollisionPolicy) RegistryOption {
	return func(r *Registry) { r.policy = p }
}

// WithLogger sets the logger used for collision warnings.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		commands:   make(map[string]*Command),
		aliases:    make(map[string]string),
		categories: make(map[string][]string),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the configured collision policy.
func (r *Registry) Policy() CollisionPolicy {
	return r.policy
}

// Register validates and installs a command. Under CollisionOverwrite a
// repeated name replaces the earlier command, which keeps its position in
// registration order but loses its old aliases. The returned bool reports
// whether a command was replaced.
func (r *Registry) Register(desc Descriptor) (*Command, bool, error) {
	if err := desc.Validate(); err != nil {
		return nil, false, err
	}
	cmd := desc.build()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.policy == CollisionReject {
		if err := r.checkCollisionsLocked(cmd); err != nil {
			return nil, false, err
		}
	}

	cmd.RegisteredAt = r.now()

	prev, replaced := r.commands[cmd.Name]
	if replaced {
		r.logger.Warn("command overwritten", "command", cmd.Name, "previous_plugin", prev.Plugin, "plugin", cmd.Plugin)
		r.detachAliasesLocked(prev)
		if prev.Category != cmd.Category {
			r.removeFromCategoryLocked(prev)
		}
	} else {
		if owner, ok := r.aliases[cmd.Name]; ok {
			r.logger.Warn("command name shadows alias", "command", cmd.Name, "alias_owner", owner)
		}
		r.order = append(r.order, cmd.Name)
	}

	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		if owner, ok := r.aliases[alias]; ok && owner != cmd.Name {
			r.logger.Warn("alias reassigned", "alias", alias, "from", owner, "to", cmd.Name)
		}
		if _, ok := r.commands[alias]; ok {
			r.logger.Warn("alias shadowed by command name", "alias", alias, "command", cmd.Name)
		}
		r.aliases[alias] = cmd.Name
	}
	if !replaced || prev.Category != cmd.Category {
		r.categories[cmd.Category] = append(r.categories[cmd.Category], cmd.Name)
	}

	return cmd, replaced, nil
}

func (r *Registry) checkCollisionsLocked(cmd *Command) error {
	if _, ok := r.commands[cmd.Name]; ok {
		return fmt.Errorf("%w: %q", ErrNameTaken, cmd.Name)
	}
	if owner, ok := r.aliases[cmd.Name]; ok {
		return fmt.Errorf("%w: %q is an alias of %q", ErrNameTaken, cmd.Name, owner)
	}
	for _, alias := range cmd.Aliases {
		if _, ok := r.commands[alias]; ok {
			return fmt.Errorf("%w: %q is a command name", ErrAliasTaken, alias)
		}
		if owner, ok := r.aliases[alias]; ok {
			return fmt.Errorf("%w: %q belongs to %q", ErrAliasTaken, alias, owner)
		}
	}
	return nil
}

// detachAliasesLocked removes the aliases that still point at cmd.
func (r *Registry) detachAliasesLocked(cmd *Command) {
	for _, alias := range cmd.Aliases {
		if r.aliases[alias] == cmd.Name {
			delete(r.aliases, alias)
		}
	}
}

// removeFromCategoryLocked drops cmd from its category bucket, deleting the
// bucket once empty.
func (r *Registry) removeFromCategoryLocked(cmd *Command) {
	names := r.categories[cmd.Category]
	for i, n := range names {
		if n == cmd.Name {
			names = append(names[:i:i], names[i+1:]...)
			break
		}
	}
	if len(names) == 0 {
		delete(r.categories, cmd.Category)
	} else {
		r.categories[cmd.Category] = names
	}
}

// Unregister removes a command by canonical name together with its aliases
// and category entry. Empty categories disappear.
func (r *Registry) Unregister(name string) (*Command, bool) {
	key := Normalize(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	cmd, ok := r.commands[key]
	if !ok {
		return nil, false
	}
	r.detachAliasesLocked(cmd)
	r.removeFromCategoryLocked(cmd)
	delete(r.commands, key)
	for i, n := range r.order {
		if n == key {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return cmd, true
}

// Resolve looks up a name first, then an alias. Matching is
// case-insensitive.
func (r *Registry) Resolve(nameOrAlias string) (*Command, bool) {
	key := Normalize(nameOrAlias)

	r.mu.RLock()
	defer r.mu.RUnlock()

	if cmd, ok := r.commands[key]; ok {
		return cmd, true
	}
	if target, ok := r.aliases[key]; ok {
		cmd, ok := r.commands[target]
		return cmd, ok
	}
	return nil, false
}

// Get looks up a command by canonical name only.
func (r *Registry) Get(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[Normalize(name)]
	return cmd, ok
}

// Has reports whether a name or alias resolves.
func (r *Registry) Has(nameOrAlias string) bool {
	_, ok := r.Resolve(nameOrAlias)
	return ok
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// All returns every command in registration order.
func (r *Registry) All() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Command, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.commands[name])
	}
	return out
}

// Visible returns the non-hidden commands in registration order.
func (r *Registry) Visible() []*Command {
	all := r.All()
	out := all[:0]
	for _, cmd := range all {
		if !cmd.Hidden {
			out = append(out, cmd)
		}
	}
	return out
}

// Names returns every canonical name in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// VisibleNames returns non-hidden canonical names in registration order.
func (r *Registry) VisibleNames() []string {
	cmds := r.Visible()
	out := make([]string, len(cmds))
	for i, cmd := range cmds {
		out[i] = cmd.Name
	}
	return out
}

// ByCategory returns the non-hidden commands of a category in the order
// they joined it.
func (r *Registry) ByCategory(category string) []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := r.categories[category]
	out := make([]*Command, 0, len(names))
	for _, name := range names {
		if cmd := r.commands[name]; !cmd.Hidden {
			out = append(out, cmd)
		}
	}
	return out
}

// Categories returns the non-empty category names, sorted.
func (r *Registry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.categories))
	for c := range r.categories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// CategoryIndex returns a copy of the category index.
func (r *Registry) CategoryIndex() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]string, len(r.categories))
	for c, names := range r.categories {
		out[c] = append([]string(nil), names...)
	}
	return out
}

// Aliases returns a copy of the alias table.
func (r *Registry) Aliases() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.aliases))
	for a, n := range r.aliases {
		out[a] = n
	}
	return out
}

// Search returns commands whose name, description, tags or aliases contain
// keyword, in registration order. Hidden commands are included.
func (r *Registry) Search(keyword string) []*Command {
	var out []*Command
	for _, cmd := range r.All() {
		if cmd.Matches(keyword) {
			out = append(out, cmd)
		}
	}
	return out
}

// Check reports whether every descriptor would register, without changing
// the registry. Under CollisionReject it also catches collisions between
// the descriptors themselves.
func (r *Registry) Check(descs []Descriptor) error {
	cmds := make([]*Command, 0, len(descs))
	for _, desc := range descs {
		if err := desc.Validate(); err != nil {
			return err
		}
		cmds = append(cmds, desc.build())
	}
	if r.policy != CollisionReject {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	pending := make(map[string]string)
	for _, cmd := range cmds {
		if err := r.checkCollisionsLocked(cmd); err != nil {
			return err
		}
		if _, ok := pending[cmd.Name]; ok {
			return fmt.Errorf("%w: %q is declared twice", ErrNameTaken, cmd.Name)
		}
		pending[cmd.Name] = cmd.Name
		for _, alias := range cmd.Aliases {
			if owner, ok := pending[alias]; ok {
				return fmt.Errorf("%w: %q is also declared by %q", ErrAliasTaken, alias, owner)
			}
			pending[alias] = cmd.Name
		}
	}
	return nil
}
