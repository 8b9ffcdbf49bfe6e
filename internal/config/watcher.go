package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dreamforge/imagegen/errors"
	"github.com/dreamforge/imagegen/logger"
)

// ReloadCallback is invoked with the freshly loaded config after a reload.
type ReloadCallback func(*Config) error

// Watcher watches the active project config file for changes and
// triggers reload callbacks, debounced against rapid successive writes.
type Watcher struct {
	configPath     string
	watcher        *fsnotify.Watcher
	callbacks      []ReloadCallback
	mu             sync.RWMutex
	debounceTimer  *time.Timer
	debouncePeriod time.Duration

	ownWriteMu sync.Mutex
	ownWrite   bool
}

// NewWatcher creates a watcher on configPath. The caller must call Start.
func NewWatcher(configPath string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	if err := fw.Add(configPath); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "failed to watch config file %s", configPath)
	}

	return &Watcher{
		configPath:     configPath,
		watcher:        fw,
		debouncePeriod: 500 * time.Millisecond,
	}, nil
}

// OnReload registers a callback fired after every successful reload.
func (w *Watcher) OnReload(cb ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// MarkOwnWrite marks the next write to configPath as self-originated, so
// the following fsnotify event doesn't trigger a redundant reload.
func (w *Watcher) MarkOwnWrite() {
	w.ownWriteMu.Lock()
	defer w.ownWriteMu.Unlock()
	w.ownWrite = true
}

func (w *Watcher) checkOwnWrite() bool {
	w.ownWriteMu.Lock()
	defer w.ownWriteMu.Unlock()

	if w.ownWrite {
		w.ownWrite = false
		return true
	}
	return false
}

// Start begins watching for changes in a background goroutine.
func (w *Watcher) Start() {
	go w.watchLoop()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if isBackupFile(event.Name) {
					continue
				}

				if w.checkOwnWrite() {
					logger.Debugw("config watcher ignoring own write", "file", event.Name)
					continue
				}

				logger.Infow("config watcher detected change", "file", event.Name, "op", event.Op.String())
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	w.debounceTimer = time.AfterFunc(w.debouncePeriod, func() {
		if err := w.reload(); err != nil {
			logger.Errorw("config reload failed", "error", err)
		}
	})
}

func (w *Watcher) reload() error {
	Reset()

	newConfig, err := Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	logger.Infow("config reloaded", "path", w.configPath)

	w.mu.RLock()
	callbacks := make([]ReloadCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, cb := range callbacks {
		if err := cb(newConfig); err != nil {
			logger.Warnw("config reload callback error", "error", err)
		}
	}

	return nil
}

// Stop stops watching and releases the underlying fsnotify handle.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func isBackupFile(path string) bool {
	base := filepath.Base(path)
	return base == "imagegen.yaml.back1" || base == "imagegen.yaml.back2" || base == "imagegen.yaml.back3"
}
