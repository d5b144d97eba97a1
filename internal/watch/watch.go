// Package watch wires github.com/fsnotify/fsnotify to the working tree so
// the CLI can offer a live-refreshing status view, grounded on the
// teacher's internal/change.AutoTracker (watchLoop/handleFSEvent): a
// recursively-added fsnotify.Watcher whose Events/Errors channels drive a
// callback. Unlike the teacher's tracker, this package keeps no tracked-set
// state of its own — the staging index already owns that — it only signals
// that *something* under root changed, on any Create/Write/Remove/Rename.
package watch

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ignoreDirs mirrors the teacher's AutoTracker.ignoreDirs, minus its
// tig-specific entry and plus minigit's own metadata directory.
var ignoreDirs = map[string]bool{
	".minigit":     true,
	".git":         true,
	"node_modules": true,
	"vendor":       true,
}

// Watcher recursively watches a directory tree for filesystem changes.
type Watcher struct {
	fw   *fsnotify.Watcher
	root string
	log  *zap.Logger
}

// New creates a Watcher rooted at root and adds every non-ignored
// subdirectory to it. The caller must call Run to start receiving events.
func New(root string, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{fw: fw, root: root, log: logger}
	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr == nil && shouldIgnore(rel) {
			return filepath.SkipDir
		}
		return w.fw.Add(path)
	})
}

// Close releases the underlying inotify/kqueue handle.
func (w *Watcher) Close() error {
	return w.fw.Close()
}

// Run blocks, invoking onChange once per filesystem event, until stop is
// closed. A newly-created directory is added to the watch set the same way
// the teacher's handleFSEvent does for fsnotify.Create.
func (w *Watcher) Run(stop <-chan struct{}, onChange func()) {
	for {
		select {
		case <-stop:
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if w.handleEvent(event) {
				onChange()
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.Error("watcher error", zap.Error(err))
			}
		}
	}
}

// handleEvent reports whether the event is one the caller should react to,
// after adding newly-created directories to the watch set.
func (w *Watcher) handleEvent(event fsnotify.Event) bool {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || shouldIgnore(rel) {
		return false
	}
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
			_ = w.fw.Add(event.Name)
		}
	}
	return true
}

// shouldIgnore reports whether relPath falls under one of ignoreDirs,
// either as its own top-level name or as an ancestor directory component.
func shouldIgnore(relPath string) bool {
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		if ignoreDirs[part] {
			return true
		}
	}
	return false
}
