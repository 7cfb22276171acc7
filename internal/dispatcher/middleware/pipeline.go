// Package middleware provides the global interceptor pipeline and a few
// ready-made interceptors.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/dshills/slashcore/internal/dispatcher/command"
	"github.com/dshills/slashcore/internal/dispatcher/execctx"
)

// DefaultPriority is used when a caller does not care about ordering.
const DefaultPriority = 100

// AdvisoryKey is the ExecutionContext data key a middleware may set to
// explain why it stopped an invocation.
const AdvisoryKey = "middleware.advisory"

var (
	// ErrNilMiddleware is returned when registering a nil function.
	ErrNilMiddleware = errors.New("middleware: function is nil")

	// ErrPanic indicates a middleware panicked.
	ErrPanic = errors.New("middleware: panic")
)

// Entry is one registered global middleware.
type Entry struct {
	Name     string
	Fn       command.Middleware
	Priority int
}

// Pipeline keeps global middleware sorted ascending by priority. Entries
// with equal priority keep their registration order.
type Pipeline struct {
	mu      sync.RWMutex
	entries []Entry
}

// New creates an empty pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

// Use registers fn at priority. An empty name is replaced by a positional
// one so aborts can always be attributed.
func (p *Pipeline) Use(name string, fn command.Middleware, priority int) error {
	if fn == nil {
		return ErrNilMiddleware
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if name == "" {
		name = "middleware#" + strconv.Itoa(len(p.entries))
	}
	p.entries = append(p.entries, Entry{Name: name, Fn: fn, Priority: priority})
	sort.SliceStable(p.entries, func(i, j int) bool {
		return p.entries[i].Priority < p.entries[j].Priority
	})
	return nil
}

// Remove deletes every entry registered under name.
func (p *Pipeline) Remove(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.entries[:0]
	removed := false
	for _, e := range p.entries {
		if e.Name == name {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	p.entries = kept
	return removed
}

// Entries returns the pipeline in execution order.
func (p *Pipeline) Entries() []Entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Entry(nil), p.entries...)
}

// Len returns the number of global entries.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Outcome describes how a pipeline run ended.
type Outcome struct {
	// Continue is true when every middleware allowed the invocation.
	Continue bool

	// StoppedBy names the middleware that returned false or failed.
	StoppedBy string
}

// Run executes global middleware, then cmd's own middleware in declared
// order. The first false return or error stops the run.
func (p *Pipeline) Run(ctx context.Context, cmd *command.Command, ec *execctx.ExecutionContext, host execctx.Host) (Outcome, error) {
	for _, e := range p.Entries() {
		ok, err := call(ctx, e.Fn, cmd, ec, host)
		if err != nil {
			return Outcome{StoppedBy: e.Name}, fmt.Errorf("middleware %q: %w", e.Name, err)
		}
		if !ok {
			return Outcome{StoppedBy: e.Name}, nil
		}
	}

	for i, fn := range cmd.Middleware {
		name := cmd.Name + "#" + strconv.Itoa(i)
		ok, err := call(ctx, fn, cmd, ec, host)
		if err != nil {
			return Outcome{StoppedBy: name}, fmt.Errorf("middleware %q: %w", name, err)
		}
		if !ok {
			return Outcome{StoppedBy: name}, nil
		}
	}

	return Outcome{Continue: true}, nil
}

func call(ctx context.Context, fn command.Middleware, cmd *command.Command, ec *execctx.ExecutionContext, host execctx.Host) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn(ctx, cmd, ec, host)
}
