package dynalite

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultReloadDebounce collapses the burst of events editors produce when
// saving a file.
const defaultReloadDebounce = 250 * time.Millisecond

// ConfigWatcher reloads the Dynalite configuration file when it changes.
//
// The containing directory is watched rather than the file, so editors that
// save by renaming a temporary file are picked up. Files that fail to load
// are logged and ignored; the running configuration stays in place.
type ConfigWatcher struct {
	path     string
	onChange func(*Config)
	debounce time.Duration

	watcher *fsnotify.Watcher

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewConfigWatcher watches path and calls onChange with each valid new
// configuration.
func NewConfigWatcher(path string, onChange func(*Config), logger Logger) (*ConfigWatcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("change callback is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	return &ConfigWatcher{
		path:     abs,
		onChange: onChange,
		debounce: defaultReloadDebounce,
		watcher:  w,
		done:     make(chan struct{}),
		logger:   logger,
	}, nil
}

// Start begins processing file events in the background.
func (w *ConfigWatcher) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop ends the watch. Safe to call multiple times.
func (w *ConfigWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		_ = w.watcher.Close()
	})
}

func (w *ConfigWatcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logError("config watcher error", err)
		}
	}
}

func (w *ConfigWatcher) reload() {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		w.logError("ignoring invalid dynalite config", err)
		return
	}
	w.loggerMu.RLock()
	logger := w.logger
	w.loggerMu.RUnlock()
	if logger != nil {
		logger.Info("dynalite config changed", "path", w.path, "bridges", len(cfg.Bridges))
	}
	w.onChange(cfg)
}

func (w *ConfigWatcher) logError(msg string, err error) {
	w.loggerMu.RLock()
	logger := w.logger
	w.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
