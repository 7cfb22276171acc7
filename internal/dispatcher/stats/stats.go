// Package stats collects running execution statistics for dispatched
// commands.
package stats

import (
	"sort"
	"sync"
	"time"
)

// mean is an incrementally maintained average.
type mean struct {
	n   uint64
	avg float64
}

// add folds sample into the mean as avg = (avg*(n-1) + sample) / n, with n
// counted after the increment.
func (m *mean) add(sample time.Duration) {
	m.n++
	n := float64(m.n)
	m.avg = (m.avg*(n-1) + float64(sample)) / n
}

func (m mean) value() time.Duration {
	return time.Duration(m.avg)
}

// CommandStats holds statistics for a single command.
type CommandStats struct {
	Name                 string        `json:"name" yaml:"name"`
	Count                uint64        `json:"count" yaml:"count"`
	ErrorCount           uint64        `json:"errorCount" yaml:"errorCount"`
	AverageExecutionTime time.Duration `json:"averageExecutionTime" yaml:"averageExecutionTime"`
	MinExecutionTime     time.Duration `json:"minExecutionTime" yaml:"minExecutionTime"`
	MaxExecutionTime     time.Duration `json:"maxExecutionTime" yaml:"maxExecutionTime"`
	LastExecuted         time.Time     `json:"lastExecuted" yaml:"lastExecuted"`
}

type commandEntry struct {
	stats CommandStats
	mean  mean
}

// Snapshot is a copy of the global statistics.
type Snapshot struct {
	TotalExecuted        uint64            `json:"totalExecuted" yaml:"totalExecuted"`
	SuccessCount         uint64            `json:"successCount" yaml:"successCount"`
	ErrorCount           uint64            `json:"errorCount" yaml:"errorCount"`
	AverageExecutionTime time.Duration     `json:"averageExecutionTime" yaml:"averageExecutionTime"`
	Usage                map[string]uint64 `json:"usage" yaml:"usage"`
}

// Usage pairs a command with its execution count.
type Usage struct {
	Name  string `json:"name" yaml:"name"`
	Count uint64 `json:"count" yaml:"count"`
}

// Collector aggregates completed attempts. Counts never decrease and
// statistics of unregistered commands are retained.
type Collector struct {
	mu sync.RWMutex

	total   mean
	success uint64
	errors  uint64

	usage    map[string]uint64
	commands map[string]*commandEntry
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		usage:    make(map[string]uint64),
		commands: make(map[string]*commandEntry),
	}
}

// Record folds one completed attempt into the global and per-command
// aggregates.
func (c *Collector) Record(name string, d time.Duration, success bool, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total.add(d)
	if success {
		c.success++
	} else {
		c.errors++
	}
	c.usage[name]++

	e := c.commands[name]
	if e == nil {
		e = &commandEntry{stats: CommandStats{Name: name, MinExecutionTime: d, MaxExecutionTime: d}}
		c.commands[name] = e
	}
	e.mean.add(d)
	e.stats.Count = e.mean.n
	e.stats.AverageExecutionTime = e.mean.value()
	e.stats.LastExecuted = at
	if !success {
		e.stats.ErrorCount++
	}
	if d < e.stats.MinExecutionTime {
		e.stats.MinExecutionTime = d
	}
	if d > e.stats.MaxExecutionTime {
		e.stats.MaxExecutionTime = d
	}
}

// TotalExecuted returns the number of recorded attempts.
func (c *Collector) TotalExecuted() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.total.n
}

// Snapshot returns a copy of the global statistics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	usage := make(map[string]uint64, len(c.usage))
	for k, v := range c.usage {
		usage[k] = v
	}
	return Snapshot{
		TotalExecuted:        c.total.n,
		SuccessCount:         c.success,
		ErrorCount:           c.errors,
		AverageExecutionTime: c.total.value(),
		Usage:                usage,
	}
}

// Command returns statistics for one command.
func (c *Collector) Command(name string) (CommandStats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.commands[name]
	if !ok {
		return CommandStats{}, false
	}
	return e.stats, true
}

// Commands returns statistics for every recorded command, sorted by name.
func (c *Collector) Commands() []CommandStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CommandStats, 0, len(c.commands))
	for _, e := range c.commands {
		out = append(out, e.stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MostUsed returns the n most executed commands. Ties are ordered by name.
// A non-positive n returns all of them.
func (c *Collector) MostUsed(n int) []Usage {
	c.mu.RLock()
	out := make([]Usage, 0, len(c.usage))
	for name, count := range c.usage {
		out = append(out, Usage{Name: name, Count: count})
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

// Slowest returns the n commands with the highest mean execution time.
func (c *Collector) Slowest(n int) []CommandStats {
	out := c.Commands()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AverageExecutionTime > out[j].AverageExecutionTime
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
