package store

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"theoption-trader/internal/logger"
)

// Watch calls onChange whenever the file at path is written or replaced.
// The directory is watched so editors that save via rename are seen too.
// It returns once the watcher is running; ctx stops it.
func Watch(ctx context.Context, path string, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				logger.Info(ctx, "Config file changed", "path", path, "op", ev.Op.String())
				onChange()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn(ctx, "Config watcher error", "error", err)
			}
		}
	}()
	return nil
}
