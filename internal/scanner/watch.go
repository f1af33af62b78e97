package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"journeymap/internal/logging"
)

// debounceDelay batches bursts of filesystem events (a camera import drops
// hundreds of files) into a single rescan.
const debounceDelay = 2 * time.Second

// Watch monitors the media directory for changes and triggers a scan after
// each quiet period. It blocks until ctx is cancelled.
func (sc *Scanner) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addRecursive(watcher, sc.config.MediaDir, sc.config.SkipHidden); err != nil {
		return err
	}

	logging.Info("Watching %s for changes", sc.config.MediaDir)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// New directories must be added to the watch set before
			// anything inside them produces events.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addRecursive(watcher, event.Name, sc.config.SkipHidden); err != nil {
						logging.Warn("Failed to watch new directory %s: %v", event.Name, err)
					}
				}
			}

			logging.Debug("Filesystem event: %s", event)
			if timer == nil {
				timer = time.NewTimer(debounceDelay)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounceDelay)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("Watcher error: %v", err)

		case <-timerC:
			timer = nil
			timerC = nil
			if _, err := sc.Scan(ctx); err != nil && !errors.Is(err, ErrScanInProgress) {
				logging.Error("Watch-triggered scan failed: %v", err)
			}
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string, skipHidden bool) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			logging.Warn("Cannot watch %s: %v", path, err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if skipHidden && path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			logging.Warn("Cannot watch %s: %v", path, err)
		}
		return nil
	})
}
