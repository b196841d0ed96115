package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher holds the current Config and reloads it from disk whenever the
// backing file changes. Reloads are debounced and swapped in whole:
// callers always read a complete Config via Current(), not a
// partially-applied one. Components that were given a *Config when they
// were built keep that Config; in `octobrain serve` the memory manager
// and MCP server do not read Current(), so a changed setting reaches
// them only on the next start.
type Watcher struct {
	path    string
	current atomic.Pointer[Config]
	fsw     *fsnotify.Watcher
	done    chan struct{}
}

// WatchFile starts watching path for changes, reloading cfg on write
// events. If path does not exist (no user config file was ever
// created), WatchFile still returns a Watcher serving cfg unchanged;
// editor-created files (most save as rename+create) are also picked up
// since the watch is re-armed on the containing directory.
func WatchFile(path string, cfg *Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{path: path, fsw: fsw, done: make(chan struct{})}
	w.current.Store(cfg)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// Close stops the watch goroutine and releases the underlying fsnotify
// watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	var debounce *time.Timer
	for {
		select {
		case <-w.done:
			if debounce != nil {
				debounce.Stop()
			}
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, w.reload)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) reload() {
	next, err := Load(w.path)
	if err != nil {
		slog.Warn("config reload failed, keeping previous configuration",
			slog.String("path", w.path), slog.String("error", err.Error()))
		return
	}
	w.current.Store(next)
	slog.Info("configuration reloaded", slog.String("path", w.path))
}
