package detector

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/driftsync/driftsync/internal/logging"
)

// Watcher triggers rescans of a workspace when the filesystem changes.
// fsnotify events are debounced and coalesced into a single signal; the
// watcher then runs a full ScanDirectory so change semantics are identical
// to a manual scan.
type Watcher struct {
	detector *Detector
	root     string
	debounce time.Duration
}

// NewWatcher wraps a detector for the given workspace root.
func NewWatcher(d *Detector, root string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{detector: d, root: root, debounce: debounce}
}

// Run watches until ctx is cancelled, invoking onChanges for every scan
// that produced at least one change. The initial scan also reports.
func (w *Watcher) Run(ctx context.Context, onChanges func(ChangeSet)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, w.root); err != nil {
		return err
	}

	if set, err := w.detector.ScanDirectory(w.root); err == nil && len(set.Changes) > 0 {
		onChanges(set)
	}

	// fsnotify does not watch recursively; newly created directories are
	// added as their create events arrive.
	dirty := false
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = addRecursive(watcher, ev.Name)
				}
			}
			if !dirty {
				dirty = true
				timer.Reset(w.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("watch error", zap.Error(err))

		case <-timer.C:
			dirty = false
			set, err := w.detector.ScanDirectory(w.root)
			if err != nil {
				logging.Error("rescan failed", zap.String("root", w.root), zap.Error(err))
				continue
			}
			if len(set.Changes) > 0 {
				onChanges(set)
			}
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() {
			if addErr := watcher.Add(path); addErr != nil {
				return fmt.Errorf("watch %q: %w", path, addErr)
			}
		}
		return nil
	})
}
