// Package history keeps a bounded, newest-first log of executed commands.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the number of entries kept when none is configured.
const DefaultCapacity = 100

// Entry records one completed attempt.
type Entry struct {
	ID            string        `json:"id" yaml:"id"`
	InvocationID  string        `json:"invocationId" yaml:"invocationId"`
	Command       string        `json:"command" yaml:"command"`
	Args          []string      `json:"args" yaml:"args"`
	User          string        `json:"user" yaml:"user"`
	Session       string        `json:"session" yaml:"session"`
	ExecutedAt    time.Time     `json:"executedAt" yaml:"executedAt"`
	ExecutionTime time.Duration `json:"executionTime" yaml:"executionTime"`
	Success       bool          `json:"success" yaml:"success"`
	Result        any           `json:"result,omitempty" yaml:"result,omitempty"`
	Error         string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Ring is a fixed-capacity circular buffer of entries. Once full, each
// append evicts the oldest entry.
type Ring struct {
	mu    sync.RWMutex
	buf   []Entry
	head  int // index of the next write
	count int
}

// NewRing creates a ring holding at most capacity entries. A non-positive
// capacity uses DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]Entry, capacity)}
}

// Append adds e as the newest entry, assigning an ID if it has none.
func (r *Ring) Append(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Args = append([]string(nil), e.Args...)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.head] = e
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
	return e
}

// Entries returns every entry, newest first.
func (r *Ring) Entries() []Entry {
	return r.Recent(0)
}

// Recent returns up to n entries, newest first. A non-positive n returns
// all of them.
func (r *Ring) Recent(n int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		idx := (r.head - 1 - i + len(r.buf)) % len(r.buf)
		out[i] = r.buf[idx]
	}
	return out
}

// Latest returns the newest entry.
func (r *Ring) Latest() (Entry, bool) {
	recent := r.Recent(1)
	if len(recent) == 0 {
		return Entry{}, false
	}
	return recent[0], true
}

// Len returns the number of stored entries.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Capacity returns the maximum number of entries.
func (r *Ring) Capacity() int {
	return len(r.buf)
}
