// Package index implements the staging area (C3): the set of working-tree
// paths scheduled for the next commit, per spec.md §3/§4.3/§6.1.
package index

import (
	"path/filepath"
	"sort"
	"strings"

	"minigit/internal/atomicfile"
	"minigit/internal/vfs"
)

const indexFile = "index"

// Index is the in-memory staged-path set, persisted as one path per line.
type Index struct {
	fs    vfs.FS
	dir   string
	paths map[string]bool
}

// New returns an empty Index rooted at dir (the repository's ".minigit").
func New(fs vfs.FS, dir string) *Index {
	return &Index{fs: fs, dir: dir, paths: map[string]bool{}}
}

// Load reads the index file. Blank lines are ignored, per spec.md §5.
func (x *Index) Load() error {
	x.paths = map[string]bool{}
	data, err := x.fs.ReadFile(filepath.Join(x.dir, indexFile))
	if err != nil {
		if vfs.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			x.paths[line] = true
		}
	}
	return nil
}

// Save writes the index back to disk in sorted order.
func (x *Index) Save() error {
	names := x.sortedPaths()
	var b strings.Builder
	for _, p := range names {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	return atomicfile.Write(x.fs, filepath.Join(x.dir, indexFile), []byte(b.String()))
}

// Add stages path. Duplicate adds are no-ops.
func (x *Index) Add(path string) {
	x.paths[path] = true
}

// Contains reports whether path is currently staged.
func (x *Index) Contains(path string) bool {
	return x.paths[path]
}

// Clear empties the index, as happens after a successful commit.
func (x *Index) Clear() {
	x.paths = map[string]bool{}
}

// Len reports how many paths are staged.
func (x *Index) Len() int {
	return len(x.paths)
}

// sortedPaths returns staged paths in the deterministic total order that
// both commit serialization and OID derivation rely on (spec.md §4.4 step 5).
func (x *Index) sortedPaths() []string {
	names := make([]string, 0, len(x.paths))
	for p := range x.paths {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}

// SortedPaths exposes the deterministic iteration order (spec.md §4.4).
func (x *Index) SortedPaths() []string {
	return x.sortedPaths()
}
