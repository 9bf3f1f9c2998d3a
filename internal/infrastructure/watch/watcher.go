// Package watch reports new or changed knowledge-base files after a quiet period.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 2 * time.Second

// Handler receives the changed files of one quiet period, sorted, as absolute paths.
type Handler func(ctx context.Context, paths []string) error

type Watcher struct {
	dir      string
	debounce time.Duration
	handler  Handler
}

func New(dir string, debounce time.Duration, handler Handler) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{dir: dir, debounce: debounce, handler: handler}
}

// Run blocks until ctx is done. Hidden files and directories are ignored; new
// directories are watched as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := addTree(fsw, w.dir); err != nil {
		return err
	}
	slog.Info("kb_watch_started", "dir", w.dir, "debounce_ms", w.debounce.Milliseconds())

	pending := make(map[string]struct{})
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if event.Has(fsnotify.Create) {
					if err := addTree(fsw, event.Name); err != nil {
						slog.Warn("kb_watch_add_failed", "dir", event.Name, "error", err)
					}
				}
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("kb_watch_error", "error", err)
		case <-timer.C:
			paths := drain(pending)
			if err := w.handler(ctx, paths); err != nil {
				slog.Error("kb_watch_handler_failed", "files", len(paths), "error", err)
			}
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	return !isHidden(filepath.Base(event.Name))
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~")
}

func addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func drain(pending map[string]struct{}) []string {
	paths := make([]string, 0, len(pending))
	for path := range pending {
		paths = append(paths, path)
		delete(pending, path)
	}
	sort.Strings(paths)
	return paths
}
