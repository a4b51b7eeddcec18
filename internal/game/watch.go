package game

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// FileWatcher polls YAML modification times under a directory tree and
// triggers a callback on change. New and removed files count as changes.
type FileWatcher struct {
	Root      string
	Interval  time.Duration
	onChange  func(string) // called with path that changed
	lastMTime map[string]time.Time
}

// NewFileWatcher creates a watcher for a directory tree and interval.
func NewFileWatcher(root string, interval time.Duration, onChange func(string)) *FileWatcher {
	return &FileWatcher{
		Root:      root,
		Interval:  interval,
		onChange:  onChange,
		lastMTime: make(map[string]time.Time),
	}
}

// Run polls until ctx is done.
func (w *FileWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	// prime cache
	w.scan(true)
	for {
		select {
		case <-ticker.C:
			w.scan(false)
		case <-ctx.Done():
			return
		}
	}
}

// scan checks mtimes and invokes onChange for files that changed since last scan.
func (w *FileWatcher) scan(prime bool) {
	seen := make(map[string]bool, len(w.lastMTime))
	_ = filepath.WalkDir(w.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// directory missing or unreadable; keep going
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(p, ".yaml") {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		seen[p] = true
		mt := fi.ModTime()
		last, ok := w.lastMTime[p]
		w.lastMTime[p] = mt
		if prime {
			return nil
		}
		if !ok || mt.After(last) {
			w.notify(p)
		}
		return nil
	})
	for p := range w.lastMTime {
		if !seen[p] {
			delete(w.lastMTime, p)
			if !prime {
				w.notify(p)
			}
		}
	}
}

func (w *FileWatcher) notify(p string) {
	if w.onChange != nil {
		w.onChange(p)
	}
}
