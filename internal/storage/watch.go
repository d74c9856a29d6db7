// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/threadchat/internal/logging"
	"github.com/jeranaias/threadchat/internal/util"
)

// DefaultDebounce is how long the store directory must be quiet before a
// change is reported.
const DefaultDebounce = 300 * time.Millisecond

// Change is a batch of file events in the store directory.
type Change struct {
	// Paths that changed, sorted.
	Paths []string

	// At is the time of the last event in the batch.
	At time.Time
}

// Watch reports changes to the files in dir until ctx is cancelled. Bursts
// of events are coalesced: fn runs once the directory has been quiet for
// debounce. fn is never called concurrently with itself.
func Watch(ctx context.Context, dir string, debounce time.Duration, logger *slog.Logger, fn func(Change)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger = logging.OrDiscard(logger).With("component", "watch")

	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create watch directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &dirWatcher{
		watcher:  watcher,
		debounce: debounce,
		logger:   logger,
		fn:       fn,
		pending:  make(map[string]time.Time),
	}
	go w.run(ctx)
	return nil
}

type dirWatcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
	fn       func(Change)

	mu      sync.Mutex
	pending map[string]time.Time
	last    time.Time
}

func (w *dirWatcher) run(ctx context.Context) {
	defer w.watcher.Close()

	tick := w.debounce / 3
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if util.IsTempFile(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			w.mu.Lock()
			now := time.Now()
			w.pending[event.Name] = now
			w.last = now
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)

		case <-ticker.C:
			if change, ok := w.flush(); ok {
				w.fn(change)
			}
		}
	}
}

// flush returns the pending batch once the directory has been quiet for the
// debounce window.
func (w *dirWatcher) flush() (Change, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 || time.Since(w.last) < w.debounce {
		return Change{}, false
	}

	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	change := Change{Paths: paths, At: w.last}
	w.pending = make(map[string]time.Time)
	return change, true
}
