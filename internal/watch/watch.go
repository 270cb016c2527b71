// Package watch triggers rebuilds when declaration or project files change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/phobologic/c3complete/internal/discover"
)

// DefaultDebounce is used when a non-positive debounce is configured.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reports batches of changed files under a root.
type Watcher struct {
	root     string
	match    discover.Matcher
	debounce time.Duration
	logger   *slog.Logger
	fsw      *fsnotify.Watcher
}

// New watches every directory under root that discovery would search.
// Changes to files selected by match are reported by Run.
func New(root string, match discover.Matcher, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if err := match.Validate(); err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{root: root, match: match, debounce: debounce, logger: logger, fsw: fsw}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	visited := make(map[string]bool)
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && discover.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		// Symlinked directories could loop
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil || visited[resolved] {
			return filepath.SkipDir
		}
		visited[resolved] = true
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// Run delivers debounced batches of changed root-relative paths to
// onChange until ctx is done. onChange runs on the Run goroutine, so
// batches never overlap. Run closes the watcher before returning.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, changed []string)) error {
	defer w.fsw.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if rel, ok := w.handle(event); ok {
				pending[rel] = struct{}{}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			clear(pending)
			w.logger.Debug("files changed", slog.Int("count", len(changed)))
			onChange(ctx, changed)
		}
	}
}

// handle returns the root-relative path of a relevant event. New
// directories are added to the watch set.
func (w *Watcher) handle(event fsnotify.Event) (string, bool) {
	if event.Op&fsnotify.Chmod == event.Op {
		return "", false
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("watching new directory", slog.String("error", err.Error()))
			}
			return "", false
		}
	}
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if !w.match.Match(rel) {
		return "", false
	}
	return rel, true
}
