// Package checkout implements the working-tree reconciliation engine (C5),
// per spec.md §4.5: delete paths absent from the target, then materialise
// the target's files, in that order so a path present in both ends up
// overwritten rather than deleted-then-missing.
package checkout

import (
	"path/filepath"

	"minigit/internal/objstore"
	"minigit/internal/vfs"
)

// Engine reconciles a working tree against a target file map.
type Engine struct {
	fs    vfs.FS
	root  string
	store *objstore.Store
}

// New returns a checkout engine rooted at workRoot (the repository's working
// directory), reading blob content from store.
func New(fs vfs.FS, workRoot string, store *objstore.Store) *Engine {
	return &Engine{fs: fs, root: workRoot, store: store}
}

// Reconcile deletes working-tree paths present in fromFiles but absent from
// toFiles, then writes every path in toFiles with its blob content.
func (e *Engine) Reconcile(fromFiles, toFiles map[string]string) error {
	for path := range fromFiles {
		if _, ok := toFiles[path]; ok {
			continue
		}
		abs := filepath.Join(e.root, path)
		if e.fs.Exists(abs) {
			if err := e.fs.Remove(abs); err != nil {
				return err
			}
		}
	}

	for path, oid := range toFiles {
		content, err := e.store.GetBlob(oid)
		if err != nil {
			return err
		}
		abs := filepath.Join(e.root, path)
		if err := e.fs.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return err
		}
		if err := e.fs.WriteFile(abs, content, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// WritePath materialises a single path with the given content, used by the
// merge engine to write conflict-marked files and resolved merge outputs.
func (e *Engine) WritePath(path string, content []byte) error {
	abs := filepath.Join(e.root, path)
	if err := e.fs.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	return e.fs.WriteFile(abs, content, 0o644)
}

// RemovePath deletes a single working-tree path if present, used by the
// merge engine when a path is removed by the merge result.
func (e *Engine) RemovePath(path string) error {
	abs := filepath.Join(e.root, path)
	if !e.fs.Exists(abs) {
		return nil
	}
	return e.fs.Remove(abs)
}

// ReadPath reads a single working-tree path's current content.
func (e *Engine) ReadPath(path string) ([]byte, error) {
	return e.fs.ReadFile(filepath.Join(e.root, path))
}

// Exists reports whether a working-tree path currently exists.
func (e *Engine) Exists(path string) bool {
	return e.fs.Exists(filepath.Join(e.root, path))
}
