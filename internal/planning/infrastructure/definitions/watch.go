package definitions

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch loads the plan file at path and passes the result to fn, then
// reloads it after every change until ctx is done. Changes closer together
// than debounce produce a single reload.
func Watch(ctx context.Context, path string, loc *time.Location, debounce time.Duration, fn func(*Definition, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch plan file: %w", err)
	}
	defer w.Close()

	// editors often replace the file on save, which drops a watch on the
	// file itself
	dir, name := filepath.Split(filepath.Clean(path))
	if dir == "" {
		dir = "."
	}
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch plan file: %w", err)
	}

	fn(LoadIn(path, loc))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				defer timer.Stop()
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			fn(LoadIn(path, loc))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch plan file: %w", err)
		}
	}
}
