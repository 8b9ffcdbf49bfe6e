package modeconfig

import (
	"github.com/fsnotify/fsnotify"

	"github.com/dreamforge/imagegen/errors"
	"github.com/dreamforge/imagegen/logger"
)

// Watcher reloads a FileProvider when its backing YAML file changes on
// disk. The admin reload endpoint does not go through it; it calls
// FileProvider.Reload directly.
type Watcher struct {
	path     string
	provider *FileProvider
	fw       *fsnotify.Watcher
}

// NewWatcher wires fw to provider. The caller must call Start.
func NewWatcher(path string, provider *FileProvider) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create mode config watcher")
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "failed to watch mode config %s", path)
	}
	return &Watcher{path: path, provider: provider, fw: fw}, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	go w.loop()
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := w.Reload(); err != nil {
					logger.Errorw("mode config reload failed", "error", err)
				}
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			logger.Warnw("mode config watcher error", "error", err)
		}
	}
}

// Reload re-reads the mode document into the provider. The fsnotify loop
// calls it on every write or create event.
func (w *Watcher) Reload() error {
	if err := w.provider.ReloadFrom(w.path); err != nil {
		return err
	}
	logger.Infow("mode config reloaded", "path", w.path)
	return nil
}

// Stop releases the fsnotify handle.
func (w *Watcher) Stop() error {
	return w.fw.Close()
}
