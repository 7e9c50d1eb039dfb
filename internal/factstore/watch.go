package factstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"casebot/internal/logger"
)

// Watch calls onChange after the file at path is written, created, renamed or
// removed, coalescing bursts of events that arrive within debounce. It watches
// the parent directory so the file may be created or replaced later. Watch
// blocks until ctx is done.
func Watch(ctx context.Context, path string, debounce time.Duration, log *logger.Logger, onChange func()) error {
	if log == nil {
		log = logger.Discard()
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&relevant == 0 {
				continue
			}
			log.WithField("op", ev.Op.String()).Debug("fact file changed")
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("fact file watcher error")
		case <-timer.C:
			onChange()
		}
	}
}
