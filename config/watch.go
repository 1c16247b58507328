package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch notifies onChange whenever the library document at path is
// written or replaced. Watching covers the parent directory, which is
// more reliable than watching the file directly across editors that
// rename-and-replace. The returned stop function releases the watcher.
//
// The core never reloads by itself; Watch is for collaborators that own
// process lifecycle and want to restart or rebuild on change.
func Watch(path string, onChange func()) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					onChange()
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("agent library watch error", "path", path, "error", werr)
			}
		}
	}()

	return watcher.Close, nil
}
