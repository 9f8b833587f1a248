package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval is the quiet period after the last config-file event
// before a reload fires, so editor write-then-rename sequences trigger once.
const debounceInterval = 500 * time.Millisecond

// ConfigWatcher watches the orchestrator's configuration file and invokes a
// callback after changes settle.
type ConfigWatcher struct {
	path     string
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	debounce *debouncer
}

// NewConfigWatcher builds a watcher for the file at path. The parent
// directory is watched rather than the file itself: most editors replace the
// file by rename, which would silently detach a direct watch.
func NewConfigWatcher(path string, logger *slog.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %q: %w", filepath.Dir(abs), err)
	}
	return &ConfigWatcher{
		path:     abs,
		logger:   logger,
		watcher:  w,
		debounce: newDebouncer(debounceInterval),
	}, nil
}

// Watch blocks until ctx is done, calling onChange after each settled change
// to the watched file. onChange errors are logged, not fatal; the watcher
// keeps running so a later fix is picked up.
func (cw *ConfigWatcher) Watch(ctx context.Context, onChange func() error) {
	cw.logger.Info("watching configuration file", "path", cw.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !cw.relevant(event) {
				continue
			}
			cw.logger.Debug("config file event", "op", event.Op.String())
			cw.debounce.trigger(func() {
				cw.logger.Info("configuration changed, reloading", "path", cw.path)
				if err := onChange(); err != nil {
					cw.logger.Error("config reload failed, keeping previous state", "error", err)
				}
			})
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Warn("config watcher error", "error", err)
		}
	}
}

// Close stops the watcher and cancels any pending debounced reload.
func (cw *ConfigWatcher) Close() error {
	cw.debounce.stop()
	return cw.watcher.Close()
}

func (cw *ConfigWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return name == cw.path
}

// debouncer coalesces rapid triggers into one callback after a quiet period.
type debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
