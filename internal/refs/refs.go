// Package refs implements the reference store (C2): HEAD, the branch map,
// and the optional MERGE_HEAD, per spec.md §3/§4.2/§6.1.
package refs

import (
	"path/filepath"
	"sort"
	"strings"

	"minigit/internal/atomicfile"
	"minigit/internal/vfs"
)

const (
	headFile      = "HEAD"
	branchesFile  = "refs/branches"
	mergeHeadFile = "MERGE_HEAD"
)

// MergeHead records an in-progress conflicted merge (spec.md §3).
type MergeHead struct {
	Branch string
	Ours   string
	Theirs string
}

// Refs holds the in-memory view of a repository's refs, loaded from and
// saved back to the files named in spec.md §6.1. Re-architected as explicit
// state threaded through the façade rather than a process-wide singleton,
// per spec.md §9's re-architecture guidance.
type Refs struct {
	fs  vfs.FS
	dir string

	HeadBranch string
	HeadOID    string
	Branches   map[string]string
	MergeHead  *MergeHead
}

// New returns an empty Refs rooted at dir (the repository's ".minigit").
func New(fs vfs.FS, dir string) *Refs {
	return &Refs{
		fs:         fs,
		dir:        dir,
		HeadBranch: "master",
		Branches:   map[string]string{"master": ""},
	}
}

// Load reads HEAD, refs/branches and MERGE_HEAD from disk. Missing files are
// tolerated (a fresh init); malformed lines are skipped rather than failing
// the load, per spec.md §5/§7.
func (r *Refs) Load() error {
	r.Branches = map[string]string{}

	if data, err := r.fs.ReadFile(filepath.Join(r.dir, branchesFile)); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			name, oid, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			r.Branches[name] = oid
		}
	} else if !vfs.IsNotExist(err) {
		return err
	}

	if data, err := r.fs.ReadFile(filepath.Join(r.dir, headFile)); err == nil {
		line := strings.TrimSpace(string(data))
		if name, oid, ok := strings.Cut(line, ":"); ok {
			r.HeadBranch = name
			r.HeadOID = oid
		}
	} else if !vfs.IsNotExist(err) {
		return err
	}

	if len(r.Branches) == 0 {
		r.Branches[r.HeadBranch] = r.HeadOID
	}
	if _, ok := r.Branches[r.HeadBranch]; !ok {
		r.Branches[r.HeadBranch] = r.HeadOID
	}

	r.MergeHead = nil
	if data, err := r.fs.ReadFile(filepath.Join(r.dir, mergeHeadFile)); err == nil {
		mh := &MergeHead{}
		for _, line := range strings.Split(string(data), "\n") {
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			switch key {
			case "branch":
				mh.Branch = value
			case "ours":
				mh.Ours = value
			case "theirs":
				mh.Theirs = value
			}
		}
		if mh.Branch != "" {
			r.MergeHead = mh
		}
	} else if !vfs.IsNotExist(err) {
		return err
	}

	return nil
}

// Save writes HEAD and refs/branches back to disk.
func (r *Refs) Save() error {
	names := make([]string, 0, len(r.Branches))
	for name := range r.Branches {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(r.Branches[name])
		b.WriteByte('\n')
	}
	if err := atomicfile.Write(r.fs, filepath.Join(r.dir, branchesFile), []byte(b.String())); err != nil {
		return err
	}

	head := r.HeadBranch + ":" + r.HeadOID + "\n"
	return atomicfile.Write(r.fs, filepath.Join(r.dir, headFile), []byte(head))
}

// SetHead moves HEAD (and the current branch pointer) to oid.
func (r *Refs) SetHead(oid string) {
	r.HeadOID = oid
	r.Branches[r.HeadBranch] = oid
}

// SetMergeHead persists a conflicted merge's in-progress record.
func (r *Refs) SetMergeHead(branch, ours, theirs string) error {
	r.MergeHead = &MergeHead{Branch: branch, Ours: ours, Theirs: theirs}
	data := "branch:" + branch + "\nours:" + ours + "\ntheirs:" + theirs + "\n"
	return atomicfile.Write(r.fs, filepath.Join(r.dir, mergeHeadFile), []byte(data))
}

// ClearMergeHead removes MERGE_HEAD, the way a successful commit does.
func (r *Refs) ClearMergeHead() error {
	r.MergeHead = nil
	path := filepath.Join(r.dir, mergeHeadFile)
	if !r.fs.Exists(path) {
		return nil
	}
	return r.fs.Remove(path)
}
