// Package command defines registered commands and the registry that owns
// them: the name table, the alias table and the category index.
package command

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dshills/slashcore/internal/dispatcher/execctx"
	"github.com/dshills/slashcore/internal/dispatcher/handler"
)

// DefaultCategory is assigned to commands registered without a category.
const DefaultCategory = "general"

// Middleware intercepts an invocation before hooks and the handler run.
// Returning false stops the pipeline silently; returning an error stops it
// and surfaces the error to the caller.
type Middleware func(ctx context.Context, cmd *Command, ec *execctx.ExecutionContext, host execctx.Host) (bool, error)

// Parameter documents one positional argument.
type Parameter struct {
	Name        string `json:"name" yaml:"name" toml:"name"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty" toml:"type,omitempty"`
	Required    bool   `json:"required,omitempty" yaml:"required,omitempty" toml:"required,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty" toml:"default,omitempty"`
}

// Command is a registered, invocable operation.
type Command struct {
	// Name is the lower-cased registry key.
	Name string

	// OriginalName is the name as it was declared, for display.
	OriginalName string

	Handler handler.Handler

	Description string
	Category    string

	// Aliases are lower-cased alternate lookup keys.
	Aliases []string

	// Permissions are capabilities required to run the command.
	Permissions []string

	// Middleware runs after all global middleware, in declared order.
	Middleware []Middleware

	Parameters []Parameter
	Examples   []string

	Hidden     bool
	Deprecated bool

	Version string
	Author  string
	Tags    []string

	// Plugin names the plugin that registered the command, if any.
	Plugin string

	RegisteredAt time.Time

	mu             sync.Mutex
	executionCount uint64
	lastExecuted   time.Time
	avgNanos       float64
}

// RecordExecution folds one completed attempt into the command's running
// statistics. The mean is updated incrementally.
func (c *Command) RecordExecution(d time.Duration, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.executionCount++
	n := float64(c.executionCount)
	c.avgNanos = (c.avgNanos*(n-1) + float64(d)) / n
	c.lastExecuted = at
}

// ExecutionCount returns how many attempts have been recorded.
func (c *Command) ExecutionCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executionCount
}

// LastExecuted returns the time of the most recent recorded attempt.
func (c *Command) LastExecuted() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastExecuted
}

// AverageExecutionTime returns the running mean execution time.
func (c *Command) AverageExecutionTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.avgNanos)
}

// RequiresPermission reports whether the command declares any permission.
func (c *Command) RequiresPermission() bool {
	return len(c.Permissions) > 0
}

// Usage renders a one-line synopsis such as "/weather <city> [units]".
func (c *Command) Usage(prefix string) string {
	return usage(prefix, c.Name, c.Parameters)
}

func usage(prefix, name string, params []Parameter) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(name)
	for _, p := range params {
		b.WriteByte(' ')
		if p.Required {
			b.WriteString("<" + p.Name + ">")
		} else {
			b.WriteString("[" + p.Name + "]")
		}
	}
	return b.String()
}

// Matches reports whether keyword occurs, case-insensitively, in the name,
// description, tags or aliases.
func (c *Command) Matches(keyword string) bool {
	kw := strings.ToLower(keyword)
	if strings.Contains(c.Name, kw) || strings.Contains(strings.ToLower(c.Description), kw) {
		return true
	}
	for _, tag := range c.Tags {
		if strings.Contains(strings.ToLower(tag), kw) {
			return true
		}
	}
	for _, alias := range c.Aliases {
		if strings.Contains(alias, kw) {
			return true
		}
	}
	return false
}

// Info is a serializable view of a command.
type Info struct {
	Name                 string        `json:"name" yaml:"name"`
	OriginalName         string        `json:"originalName" yaml:"originalName"`
	Description          string        `json:"description,omitempty" yaml:"description,omitempty"`
	Category             string        `json:"category" yaml:"category"`
	Aliases              []string      `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Permissions          []string      `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	Parameters           []Parameter   `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Examples             []string      `json:"examples,omitempty" yaml:"examples,omitempty"`
	Hidden               bool          `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Deprecated           bool          `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	Version              string        `json:"version,omitempty" yaml:"version,omitempty"`
	Author               string        `json:"author,omitempty" yaml:"author,omitempty"`
	Tags                 []string      `json:"tags,omitempty" yaml:"tags,omitempty"`
	Plugin               string        `json:"plugin,omitempty" yaml:"plugin,omitempty"`
	MiddlewareCount      int           `json:"middlewareCount,omitempty" yaml:"middlewareCount,omitempty"`
	ExecutionCount       uint64        `json:"executionCount" yaml:"executionCount"`
	LastExecuted         time.Time     `json:"lastExecuted,omitempty" yaml:"lastExecuted,omitempty"`
	AverageExecutionTime time.Duration `json:"averageExecutionTime" yaml:"averageExecutionTime"`
}

// Usage renders a one-line synopsis such as "/greet <name> [greeting]".
func (i Info) Usage(prefix string) string {
	return usage(prefix, i.Name, i.Parameters)
}

// Info returns a point-in-time snapshot of the command.
func (c *Command) Info() Info {
	c.mu.Lock()
	count, last, avg := c.executionCount, c.lastExecuted, time.Duration(c.avgNanos)
	c.mu.Unlock()

	return Info{
		Name:                 c.Name,
		OriginalName:         c.OriginalName,
		Description:          c.Description,
		Category:             c.Category,
		Aliases:              append([]string(nil), c.Aliases...),
		Permissions:          append([]string(nil), c.Permissions...),
		Parameters:           append([]Parameter(nil), c.Parameters...),
		Examples:             append([]string(nil), c.Examples...),
		Hidden:               c.Hidden,
		Deprecated:           c.Deprecated,
		Version:              c.Version,
		Author:               c.Author,
		Tags:                 append([]string(nil), c.Tags...),
		Plugin:               c.Plugin,
		MiddlewareCount:      len(c.Middleware),
		ExecutionCount:       count,
		LastExecuted:         last,
		AverageExecutionTime: avg,
	}
}
