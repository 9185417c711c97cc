package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// ErrWatcherFailed indicates the filesystem watcher could not start.
var ErrWatcherFailed = errors.New("failed to initialize config watcher")

// Watcher reloads a config file when it changes on disk.
//
// The parent directory is watched rather than the file, so editors and
// orchestrators that replace the file by rename are still seen.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
}

// NewWatcher starts watching the directory holding path.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	return &Watcher{path: abs, watcher: w}, nil
}

// Run blocks until ctx is done or the watcher is closed. Each write, create
// or rename of the file reloads it through LoadWithFile and passes the
// result to onChange. A failed reload passes a nil config and the error.
func (w *Watcher) Run(ctx context.Context, onChange func(*Config, error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			cfg, err := LoadWithFile(w.path)
			onChange(cfg, err)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			onChange(nil, fmt.Errorf("watching %s: %w", w.path, err))
		}
	}
}

// Close stops the watcher. Run returns once its channels drain.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
