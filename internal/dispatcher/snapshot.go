package dispatcher

import (
	"encoding/json"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/slashcore/internal/dispatcher/command"
	"github.com/dshills/slashcore/internal/dispatcher/stats"
	"github.com/dshills/slashcore/internal/plugin"
)

// Snapshot is a serializable copy of the dispatcher's state for backup and
// inspection. Restoring a snapshot is not supported.
type Snapshot struct {
	Commands          []command.Info       `json:"commands" yaml:"commands"`
	Aliases           map[string]string    `json:"aliases" yaml:"aliases"`
	Categories        map[string][]string  `json:"categories" yaml:"categories"`
	Statistics        stats.Snapshot       `json:"statistics" yaml:"statistics"`
	CommandStatistics []stats.CommandStats `json:"commandStatistics" yaml:"commandStatistics"`
	Plugins           []plugin.Info        `json:"plugins" yaml:"plugins"`
	Timestamp         time.Time            `json:"timestamp" yaml:"timestamp"`
}

// Snapshot captures the current commands, aliases, categories, statistics
// and plugins.
func (d *Dispatcher) Snapshot() Snapshot {
	all := d.registry.All()
	infos := make([]command.Info, 0, len(all))
	for _, cmd := range all {
		infos = append(infos, cmd.Info())
	}

	return Snapshot{
		Commands:          infos,
		Aliases:           d.registry.Aliases(),
		Categories:        d.registry.CategoryIndex(),
		Statistics:        d.stats.Snapshot(),
		CommandStatistics: d.stats.Commands(),
		Plugins:           d.plugins.List(),
		Timestamp:         time.Now(),
	}
}

// WriteJSON writes the snapshot as indented JSON.
func (s Snapshot) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// WriteYAML writes the snapshot as YAML.
func (s Snapshot) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}
