package plugin_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/slashcore/internal/plugin"
)

func TestDiscover(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	writePlugin(t, first, "weather", "plugin.json", jsonManifest, true)
	writePlugin(t, second, "weather-copy", "plugin.json", jsonManifest, true)
	writePlugin(t, second, "alpha", "plugin.toml", `
name = "alpha"
[[commands]]
name = "a"
handler = "a"
`, true)
	writePlugin(t, second, "nomain", "plugin.json", `{"name": "nomain", "commands": []}`, false)
	os.MkdirAll(filepath.Join(second, "empty"), 0o755)
	os.MkdirAll(filepath.Join(second, ".hidden"), 0o755)

	found := plugin.Discover(first, filepath.Join(first, "missing"), second)

	names := make([]string, len(found))
	for i, d := range found {
		names[i] = d.Name
	}
	want := []string{"alpha", "empty", "nomain", "weather"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}

	byName := make(map[string]plugin.Discovered)
	for _, d := range found {
		byName[d.Name] = d
	}
	if byName["weather"].Path != filepath.Join(first, "weather") {
		t.Errorf("earlier path should win, got %q", byName["weather"].Path)
	}
	if byName["alpha"].Err != nil || byName["alpha"].Manifest == nil {
		t.Errorf("alpha should load cleanly: %v", byName["alpha"].Err)
	}
	if byName["empty"].Err == nil {
		t.Error("directory without manifest should report an error")
	}
	if byName["nomain"].Err == nil {
		t.Error("missing entry script should report an error")
	}
}

func TestWatcherReportsNewPluginDir(t *testing.T) {
	base := t.TempDir()
	changed := make(chan string, 4)

	report := func(dir string) {
		select {
		case changed <- dir:
		default:
		}
	}
	w, err := plugin.NewWatcher(report, plugin.WithWatchDelay(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if err := w.Add(base); err != nil {
		t.Fatalf("Add: %v", err)
	}
	dir := writePlugin(t, base, "weather", "plugin.json", jsonManifest, true)

	select {
	case got := <-changed:
		if filepath.Clean(got) != filepath.Clean(dir) {
			t.Errorf("expected %q, got %q", dir, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the new plugin directory")
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Add(base); err != plugin.ErrWatcherClosed {
		t.Errorf("expected ErrWatcherClosed, got %v", err)
	}
}
