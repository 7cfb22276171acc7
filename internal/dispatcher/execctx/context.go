// Package execctx provides the execution context handed to command handlers,
// middleware and hooks.
package execctx

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Defaults applied when the caller does not identify the invocation.
const (
	DefaultUser    = "system"
	DefaultSession = "default"
)

// AdminPermission bypasses every per-command permission requirement.
const AdminPermission = "admin"

// Host is the read-only facade of the engine that is running an invocation.
// Handlers and middleware reach collaborators through it; they never see the
// registry or statistics stores directly.
type Host interface {
	// Has reports whether a command name or alias resolves.
	Has(nameOrAlias string) bool

	// Names returns all registered command names in registration order.
	Names() []string

	// Service returns a host-supplied collaborator (AI client, storage, ...).
	Service(key string) (any, bool)

	// Logger returns the engine logger.
	Logger() *slog.Logger
}

// ExecutionContext carries the invocation being executed.
type ExecutionContext struct {
	// InvocationID uniquely identifies this invocation.
	InvocationID string

	// Command is the canonical name of the resolved command.
	Command string

	// Args are the positional arguments after the command token.
	Args []string

	// RawInput is the input string as typed, empty for Execute calls.
	RawInput string

	// Timestamp is when the invocation was created.
	Timestamp time.Time

	User    string
	Session string

	permissions map[string]struct{}

	// Result and Err are populated before post-hooks run.
	Result any
	Err    error

	// Data holds values middleware and hooks pass along the pipeline.
	Data map[string]any
}

// Option configures an ExecutionContext.
type Option func(*ExecutionContext)

// WithUser sets the invoking user.
func WithUser(user string) Option {
	return func(ctx *ExecutionContext) {
		if user != "" {
			ctx.User = user
		}
	}
}

// WithSession sets the session identifier.
func WithSession(session string) Option {
	return func(ctx *ExecutionContext) {
		if session != "" {
			ctx.Session = session
		}
	}
}

// WithPermissions grants capability strings to the invocation.
func WithPermissions(perms ...string) Option {
	return func(ctx *ExecutionContext) {
		for _, p := range perms {
			if p != "" {
				ctx.permissions[p] = struct{}{}
			}
		}
	}
}

// WithTimestamp overrides the invocation timestamp.
func WithTimestamp(ts time.Time) Option {
	return func(ctx *ExecutionContext) {
		ctx.Timestamp = ts
	}
}

// WithData seeds a data value.
func WithData(key string, value any) Option {
	return func(ctx *ExecutionContext) {
		ctx.Data[key] = value
	}
}

// New creates an execution context with default identity and no permissions.
func New(opts ...Option) *ExecutionContext {
	ctx := &ExecutionContext{
		InvocationID: uuid.NewString(),
		Timestamp:    time.Now(),
		User:         DefaultUser,
		Session:      DefaultSession,
		permissions:  make(map[string]struct{}),
		Data:         make(map[string]any),
	}
	for _, opt := range opts {
		opt(ctx)
	}
	return ctx
}

// HasPermission reports whether the capability was granted.
func (ctx *ExecutionContext) HasPermission(perm string) bool {
	_, ok := ctx.permissions[perm]
	return ok
}

// IsAdmin reports whether the invocation carries the admin capability.
func (ctx *ExecutionContext) IsAdmin() bool {
	return ctx.HasPermission(AdminPermission)
}

// Permissions returns the granted capabilities, sorted.
func (ctx *ExecutionContext) Permissions() []string {
	out := make([]string, 0, len(ctx.permissions))
	for p := range ctx.permissions {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Missing returns the required permissions this context lacks.
// An admin context lacks nothing.
func (ctx *ExecutionContext) Missing(required []string) []string {
	if len(required) == 0 || ctx.IsAdmin() {
		return nil
	}
	var missing []string
	for _, p := range required {
		if !ctx.HasPermission(p) {
			missing = append(missing, p)
		}
	}
	return missing
}

// Get returns a data value.
func (ctx *ExecutionContext) Get(key string) (any, bool) {
	v, ok := ctx.Data[key]
	return v, ok
}

// Set stores a data value.
func (ctx *ExecutionContext) Set(key string, value any) {
	if ctx.Data == nil {
		ctx.Data = make(map[string]any)
	}
	ctx.Data[key] = value
}

// Clone returns a copy whose slices and maps are independent of ctx.
func (ctx *ExecutionContext) Clone() *ExecutionContext {
	c := *ctx
	c.Args = append([]string(nil), ctx.Args...)
	c.permissions = make(map[string]struct{}, len(ctx.permissions))
	for p := range ctx.permissions {
		c.permissions[p] = struct{}{}
	}
	c.Data = make(map[string]any, len(ctx.Data))
	for k, v := range ctx.Data {
		c.Data[k] = v
	}
	return &c
}
