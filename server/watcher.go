package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to scene files under a set of directories. Rapid
// bursts of events on one file are collapsed into a single callback once the
// file has been quiet for the debounce interval.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dirs     []string
	pattern  string
	debounce time.Duration
	onChange func(path string)
	stdout   io.Writer
	stderr   io.Writer

	mu      sync.Mutex
	pending map[string]*time.Timer
	changes uint64
}

// NewWatcher creates a watcher for files whose base name matches pattern.
func NewWatcher(dirs []string, pattern string, debounce time.Duration, onChange func(path string), stdout, stderr io.Writer) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:  fsWatcher,
		dirs:     dirs,
		pattern:  pattern,
		debounce: debounce,
		onChange: onChange,
		stdout:   stdout,
		stderr:   stderr,
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Start adds the directories and runs the event loop until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	for _, dir := range w.dirs {
		if err := w.watchDirRecursive(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		w.logInfo("watching scenes: %s", dir)
	}
	go w.eventLoop(ctx)
	return nil
}

// watchDirRecursive adds root and its subdirectories, skipping hidden ones
func (w *Watcher) watchDirRecursive(root string) error {
	if _, err := os.Stat(root); err != nil {
		return err
	}
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
}

// Matches reports whether path names a scene file.
func (w *Watcher) Matches(path string) bool {
	ok, err := filepath.Match(w.pattern, filepath.Base(path))
	return err == nil && ok
}

func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.stopPending()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.watchDirRecursive(event.Name); err != nil {
						w.logError("failed to watch %s: %v", event.Name, err)
					}
					continue
				}
			}
			if event.Has(fsnotify.Chmod) || !w.Matches(event.Name) {
				continue
			}
			w.schedule(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logError("watcher error: %v", err)
		}
	}
}

// schedule (re)starts the debounce timer of path
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.changes++
		w.mu.Unlock()
		w.onChange(path)
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

// Changes returns the number of callbacks delivered so far.
func (w *Watcher) Changes() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changes
}

// Close stops the watcher
func (w *Watcher) Close() error {
	w.stopPending()
	return w.watcher.Close()
}

func (w *Watcher) logInfo(format string, args ...any) {
	fmt.Fprintf(w.stdout, "[WATCH] "+format+"\n", args...)
}

func (w *Watcher) logError(format string, args ...any) {
	fmt.Fprintf(w.stderr, "[WATCH ERROR] "+format+"\n", args...)
}
