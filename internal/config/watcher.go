package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"noesis/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the config file for changes and reloads the engine policy
// without restarting. Only hot-reloadable sections (engine, logging) take
// effect; storage and reasoning changes need a restart.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	path        string
	onReload    func(*Config)
	lastEvent   time.Time
	debounceDur time.Duration
	pending     bool
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher creates a watcher for the given config file path. onReload is
// called with the freshly loaded config after each settled change.
func NewWatcher(path string, onReload func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fw,
		path:        path,
		onReload:    onReload,
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the watch loop runs in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Watch the directory: editors replace files on save, which drops
	// per-file watches.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		logging.ConfigWarn("Config watch failed for %s: %v", w.path, err)
	} else {
		logging.Config("Watching config file: %s", w.path)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.ConfigWarn("Error closing config watcher: %v", err)
	}
	logging.Config("Config watcher stopped")
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.lastEvent = time.Now()
			w.pending = true
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.ConfigWarn("Config watcher error: %v", err)

		case <-ticker.C:
			w.maybeReload()
		}
	}
}

// maybeReload fires the reload callback once events have settled past the
// debounce window.
func (w *Watcher) maybeReload() {
	w.mu.Lock()
	if !w.pending || time.Since(w.lastEvent) < w.debounceDur {
		w.mu.Unlock()
		return
	}
	w.pending = false
	w.mu.Unlock()

	cfg, err := Load(w.path)
	if err != nil {
		logging.ConfigWarn("Config reload failed, keeping previous config: %v", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		logging.ConfigWarn("Reloaded config invalid, keeping previous config: %v", err)
		return
	}

	logging.Config("Config reloaded from %s", w.path)
	if err := logging.ReloadConfig(); err != nil {
		logging.ConfigWarn("Logging config reload failed: %v", err)
	}
	if w.onReload != nil {
		w.onReload(cfg)
	}
}
