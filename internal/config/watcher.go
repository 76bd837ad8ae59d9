package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the configuration file on change and hands the new
// config to a callback. A reload that fails validation is dropped and the
// previous config stays active.
type Watcher struct {
	logger   *zap.Logger
	path     string
	onChange func(*Config)
	fsw      *fsnotify.Watcher
	done     chan struct{}
}

// NewWatcher creates a watcher for the given config file.
func NewWatcher(logger *zap.Logger, path string, onChange func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace files on save, which drops a
	// watch on the file itself.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		logger:   logger,
		path:     path,
		onChange: onChange,
		fsw:      fsw,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching until Stop is called.
func (w *Watcher) Start() {
	go w.loop()
}

// Stop ends watching.
func (w *Watcher) Stop() {
	close(w.done)
	w.fsw.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.logger.Warn("config reload rejected", zap.Error(err))
				continue
			}
			w.logger.Info("config reloaded", zap.String("path", w.path))
			w.onChange(cfg)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}
