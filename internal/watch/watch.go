// Package watch observes the appearance and disappearance of a hub's
// i2c-dev bus node in /dev, used to bound how long an update waits after a
// reset before re-reading the hub's dual-bank state.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

func present(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DevWatcher watches a directory (normally /dev) for Create/Remove events on
// device nodes. It is advisory only: the authoritative signal that a hub has
// left or re-entered ISP mode is still the register poll in internal/mst;
// DevWatcher exists so the CLI does not hammer a bus node that is mid
// re-enumeration after a reset.
type DevWatcher struct {
	root string
}

// New returns a DevWatcher rooted at root (e.g. "/dev").
func New(root string) *DevWatcher {
	return &DevWatcher{root: root}
}

// WaitForRemoval blocks until the device node at path is removed, ctx is
// cancelled, or the node is already absent.
func (w *DevWatcher) WaitForRemoval(ctx context.Context, path string) error {
	return w.waitFor(ctx, path, fsnotify.Remove, false)
}

// WaitForReappearance blocks until the device node at path is (re)created,
// ctx is cancelled, or the node already exists.
func (w *DevWatcher) WaitForReappearance(ctx context.Context, path string) error {
	return w.waitFor(ctx, path, fsnotify.Create, true)
}

// waitFor blocks until op fires for path, ctx is cancelled, or the node's
// current presence already matches wantPresent.
func (w *DevWatcher) waitFor(ctx context.Context, path string, op fsnotify.Op, wantPresent bool) error {
	if present(path) == wantPresent {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("watch: could not create fsnotify watcher, skipping advisory wait", "err", err)
		return nil
	}
	defer watcher.Close()

	if err := watcher.Add(w.root); err != nil {
		slog.Warn("watch: could not watch directory, skipping advisory wait", "dir", w.root, "err", err)
		return nil
	}

	// Re-check after Add closes the race between the initial stat and the
	// watch registration.
	if present(path) == wantPresent {
		return nil
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) == target && ev.Op&op != 0 {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch: fsnotify error", "err", err)
		}
	}
}
