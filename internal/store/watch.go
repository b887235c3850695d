package store

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the write+rename event pair produced by an
// atomic save into a single callback.
const watchDebounce = 200 * time.Millisecond

// Watch observes a file-backed store directory and invokes fn whenever the
// given key's file is modified by another process. Events are debounced
// with a single timer. Blocks until ctx is cancelled.
//
// This is the cross-process reconciliation hook: two pipelines sharing one
// store directory race last-writer-wins on the file itself, and each side
// reloads on the other's writes to converge.
func Watch(ctx context.Context, f *File, key string, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(f.Dir()); err != nil {
		return err
	}

	target := filepath.Base(f.Path(key))

	// Initialized as stopped; the first matching event starts it.
	debounce := time.NewTimer(watchDebounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-debounce.C:
			fn()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			_ = err
		}
	}
}
