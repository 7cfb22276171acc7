package plugin

import (
	"os"
	"path/filepath"
	"sort"
)

// Discovered describes a plugin directory found on disk.
type Discovered struct {
	Name     string
	Path     string
	Manifest *Manifest
	Err      error
}

// DefaultPaths returns the default plugin search paths: the user config
// directory first, then the working directory.
func DefaultPaths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "slashcore", "plugins"))
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".slashcore", "plugins"))
	}
	return paths
}

// Discover inspects every subdirectory of the search paths. Missing paths
// are skipped. When two directories declare the same plugin name, the one
// in the earlier path wins. Results are sorted by name.
func Discover(paths ...string) []Discovered {
	found := make(map[string]Discovered)
	for _, base := range paths {
		entries, err := os.ReadDir(base)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() || entry.Name()[0] == '.' {
				continue
			}
			d := Inspect(filepath.Join(base, entry.Name()))
			if _, exists := found[d.Name]; !exists {
				found[d.Name] = d
			}
		}
	}

	out := make([]Discovered, 0, len(found))
	for _, d := range found {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Inspect loads the manifest of one plugin directory. The directory name
// stands in for the plugin name when the manifest cannot be read.
func Inspect(dir string) Discovered {
	d := Discovered{Name: filepath.Base(dir), Path: dir}

	m, err := LoadManifestFromDir(dir)
	if err != nil {
		d.Err = err
		return d
	}
	if _, err := os.Stat(m.MainPath()); err != nil {
		d.Err = err
		return d
	}
	d.Name = m.Name
	d.Manifest = m
	return d
}
