package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a Watcher waits for a burst of writes to settle.
const DefaultDebounce = 500 * time.Millisecond

// ErrWatcherClosed is returned by Wait after Close.
var ErrWatcherClosed = errors.New("workspace watcher closed")

// Watcher reports changes that invalidate a discovered workspace: a package
// manifest written, created or removed, an extra file (the plan file)
// changed, or a branch switch in the root repository.
type Watcher struct {
	w            *fsnotify.Watcher
	manifestName string
	files        map[string]struct{}
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration
}

// NewWatcher watches the workspace root, every package directory and the
// directories holding extra. Manifests created in a new package directory are
// only seen once that directory is discovered.
func NewWatcher(ws *Workspace, manifestName string, extra ...string) (*Watcher, error) {
	if manifestName == "" {
		manifestName = DefaultManifestName
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace watcher: %w", err)
	}
	w := &Watcher{w: fw, manifestName: manifestName, files: make(map[string]struct{}), Debounce: DefaultDebounce}

	dirs := map[string]struct{}{ws.Root: {}}
	for _, e := range ws.entries {
		dirs[e.Dir] = struct{}{}
	}
	for _, f := range extra {
		abs, err := filepath.Abs(f)
		if err != nil {
			fw.Close()
			return nil, err
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	// A branch switch rewrites HEAD; commits only move refs.
	head := filepath.Join(ws.Root, ".git", "HEAD")
	if _, err := os.Stat(head); err == nil {
		w.files[head] = struct{}{}
		dirs[filepath.Dir(head)] = struct{}{}
	}

	// Directories rather than files, so editors that replace files on save
	// keep being observed.
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return w, nil
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	if filepath.Base(ev.Name) == w.manifestName {
		return true
	}
	_, ok := w.files[ev.Name]
	return ok
}

// Wait blocks until a relevant change has settled and returns the last path
// that changed.
func (w *Watcher) Wait(ctx context.Context) (string, error) {
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	var (
		changed string
		settle  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case ev, ok := <-w.w.Events:
			if !ok {
				return "", ErrWatcherClosed
			}
			if !w.relevant(ev) {
				continue
			}
			changed = ev.Name
			settle = time.After(debounce)
		case err, ok := <-w.w.Errors:
			if !ok {
				return "", ErrWatcherClosed
			}
			return "", fmt.Errorf("watch workspace: %w", err)
		case <-settle:
			return changed, nil
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.w.Close()
}
