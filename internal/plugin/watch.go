package plugin

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDelay coalesces bursts of file events for one plugin
// directory.
const DefaultWatchDelay = 250 * time.Millisecond

// ErrWatcherClosed is returned when using a closed watcher.
var ErrWatcherClosed = errors.New("plugin: watcher is closed")

// Watcher reports plugin directories that appear or change under the
// watched search paths. Each report is debounced per directory.
type Watcher struct {
	mu sync.Mutex

	fsw      *fsnotify.Watcher
	onChange func(dir string)
	delay    time.Duration
	logger   *slog.Logger

	bases   map[string]bool
	pending map[string]*time.Timer

	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithWatchDelay sets the debounce delay.
func WithWatchDelay(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithWatchLogger sets the watcher logger.
func WithWatchLogger(l *slog.Logger) WatchOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher starts a watcher that calls onChange with a plugin directory
// after files in it settle.
func NewWatcher(onChange func(dir string), opts ...WatchOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		onChange: onChange,
		delay:    DefaultWatchDelay,
		logger:   slog.Default(),
		bases:    make(map[string]bool),
		pending:  make(map[string]*time.Timer),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Add watches a search path and its existing plugin directories.
func (w *Watcher) Add(base string) error {
	abs, err := filepath.Abs(base)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWatcherClosed
	}
	if w.bases[abs] {
		return nil
	}
	if err := w.fsw.Add(abs); err != nil {
		return err
	}
	w.bases[abs] = true

	entries, err := os.ReadDir(abs)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			_ = w.fsw.Add(filepath.Join(abs, entry.Name()))
		}
	}
	return nil
}

// Close stops the watcher and cancels pending reports.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	for dir, t := range w.pending {
		t.Stop()
		delete(w.pending, dir)
	}
	w.mu.Unlock()

	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("plugin watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Rename) {
		return
	}

	dir := w.pluginDir(ev.Name)
	if dir == "" {
		return
	}
	if ev.Op.Has(fsnotify.Create) && dir == ev.Name {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			_ = w.fsw.Add(dir)
		}
	}
	w.schedule(dir)
}

// pluginDir maps an event path to the plugin directory it belongs to, or
// "" when it is outside every watched search path.
func (w *Watcher) pluginDir(path string) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	parent := filepath.Dir(path)
	if w.bases[parent] {
		return path
	}
	if w.bases[filepath.Dir(parent)] {
		return parent
	}
	return ""
}

func (w *Watcher) schedule(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if t, ok := w.pending[dir]; ok {
		t.Reset(w.delay)
		return
	}
	w.pending[dir] = time.AfterFunc(w.delay, func() {
		w.mu.Lock()
		delete(w.pending, dir)
		closed := w.closed
		w.mu.Unlock()
		if !closed {
			w.onChange(dir)
		}
	})
}
