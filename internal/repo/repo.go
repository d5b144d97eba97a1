// Package repo implements the repository façade (C9): it binds the object
// store, reference store, index, checkout, history and merge engines and
// exposes the nine user-facing operations of spec.md §4.9/§6.3. State is
// threaded explicitly through one Repo value per spec.md §9's
// re-architecture guidance — no process-wide singleton maps.
package repo

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"minigit/internal/checkout"
	"minigit/internal/clock"
	"minigit/internal/history"
	"minigit/internal/index"
	"minigit/internal/merge"
	"minigit/internal/objstore"
	"minigit/internal/refs"
	"minigit/internal/stagecache"
	"minigit/internal/vcserr"
	"minigit/internal/vcsdiff"
	"minigit/internal/vfs"
)

const (
	dotDir      = ".minigit"
	objectsDir  = dotDir + "/objects"
	branchesDir = dotDir + "/refs"
	cacheDir    = dotDir + "/cache/staged"
)

// Repo is the façade. Construct with Open after Init has created the
// on-disk layout, or call Init directly on a fresh working directory.
type Repo struct {
	fs    vfs.FS
	root  string
	clock clock.Clock
	log   *zap.Logger

	store    *objstore.Store
	refs     *refs.Refs
	index    *index.Index
	checkout *checkout.Engine
	history  *history.Engine
	merge    *merge.Engine
	cache    *stagecache.Cache // optional; nil when caching is disabled
}

// Options configures a Repo beyond its mandatory filesystem and clock
// collaborators (spec.md §6.4).
type Options struct {
	CacheSize int  // object-store LRU size; <=0 uses the store's default
	UseCache  bool // enable the staged-OID/ancestor-set cache (SPEC_FULL.md §3)
	Logger    *zap.Logger
}

// Init creates a fresh repository rooted at root. Fails already-initialised
// if .minigit already exists.
func Init(fs vfs.FS, root string, clk clock.Clock, opts Options) (*Repo, error) {
	if fs.Exists(dotPath(root)) {
		return nil, vcserr.New(vcserr.AlreadyInitialised, dotPath(root))
	}
	if err := fs.MkdirAll(dotPath(root), 0o755); err != nil {
		return nil, err
	}
	r, err := open(fs, root, clk, opts)
	if err != nil {
		return nil, err
	}
	r.refs.HeadBranch = "master"
	r.refs.HeadOID = ""
	r.refs.Branches = map[string]string{"master": ""}
	if err := r.refs.Save(); err != nil {
		return nil, err
	}
	if err := r.index.Save(); err != nil {
		return nil, err
	}
	r.logInfo("init", "", nil)
	return r, nil
}

// Open loads an existing repository rooted at root. Fails not-initialised if
// .minigit is absent.
func Open(fsys vfs.FS, root string, clk clock.Clock, opts Options) (*Repo, error) {
	if !fsys.Exists(dotPath(root)) {
		return nil, vcserr.New(vcserr.NotInitialised, dotPath(root))
	}
	r, err := open(fsys, root, clk, opts)
	if err != nil {
		return nil, err
	}
	if err := r.refs.Load(); err != nil {
		return nil, err
	}
	if err := r.index.Load(); err != nil {
		return nil, err
	}
	return r, nil
}

func open(fsys vfs.FS, root string, clk clock.Clock, opts Options) (*Repo, error) {
	store, err := objstore.New(fsys, join(root, objectsDir), opts.CacheSize)
	if err != nil {
		return nil, err
	}
	r := &Repo{
		fs:       fsys,
		root:     root,
		clock:    clk,
		log:      opts.Logger,
		store:    store,
		refs:     refs.New(fsys, join(root, dotDir)),
		index:    index.New(fsys, join(root, dotDir)),
		checkout: checkout.New(fsys, root, store),
	}
	if opts.UseCache {
		cache, err := stagecache.Open(join(root, cacheDir))
		if err != nil {
			return nil, err
		}
		r.cache = cache
	}
	r.history = history.New(store, r.cache)
	r.merge = merge.New(store, r.history, r.checkout)
	return r, nil
}

// Close releases any held resources (the staged-OID cache database).
func (r *Repo) Close() error {
	if r.cache != nil {
		return r.cache.Close()
	}
	return nil
}

func dotPath(root string) string { return join(root, dotDir) }

func join(root, rel string) string {
	if root == "" {
		return rel
	}
	return root + "/" + rel
}

func (r *Repo) logInfo(op, oid string, extra []zap.Field) {
	if r.log == nil {
		return
	}
	fields := append([]zap.Field{zap.String("op", op)}, extra...)
	if oid != "" {
		fields = append(fields, zap.String("oid", oid))
	}
	r.log.Info("repo operation", fields...)
}

func (r *Repo) logError(op string, err error) {
	if r.log == nil {
		return
	}
	r.log.Error("repo operation failed", zap.String("op", op), zap.Error(err))
}

// Add stages path, per spec.md §4.3/§4.9. Fails missing-path if the file
// does not exist in the working tree, invalid-path if its name would corrupt
// commit serialization (spec.md §9 design note #1).
func (r *Repo) Add(path string) error {
	if !objstore.ValidPath(path) {
		err := vcserr.New(vcserr.InvalidPath, path)
		r.logError("add", err)
		return err
	}
	if !r.fs.Exists(join(r.root, path)) {
		err := vcserr.New(vcserr.MissingPath, path)
		r.logError("add", err)
		return err
	}
	content, err := r.fs.ReadFile(join(r.root, path))
	if err != nil {
		return err
	}
	oid, err := r.store.PutBlob(content)
	if err != nil {
		return err
	}
	r.index.Add(path)
	if r.cache != nil {
		_ = r.cache.SetStagedOID(path, oid)
	}
	if err := r.index.Save(); err != nil {
		return err
	}
	r.logInfo("add", oid, []zap.Field{zap.String("path", path)})
	return nil
}

// Commit builds a new commit from the parent's snapshot with the index's
// staged paths overlaid, per spec.md §4.4/§3's "full snapshot of tracked
// paths": a commit carries every path the parent carried, plus/overriding
// whatever was staged since. A staged path that has vanished from the
// working tree is dropped from the snapshot (an explicit removal); a
// tracked path that was never re-staged simply carries forward unchanged.
// See DESIGN.md for why this cumulative reading, not a per-commit
// re-staging requirement, is the grounded one.
func (r *Repo) Commit(message string) (string, error) {
	if r.index.Len() == 0 {
		err := vcserr.New(vcserr.NothingToCommit, "")
		r.logError("commit", err)
		return "", err
	}

	parent := r.refs.HeadOID
	files, err := r.parentFileMap(parent)
	if err != nil {
		return "", err
	}

	for _, path := range r.index.SortedPaths() {
		abs := join(r.root, path)
		if !r.fs.Exists(abs) {
			delete(files, path) // staged path removed from disk: drop from snapshot
			continue
		}
		content, err := r.fs.ReadFile(abs)
		if err != nil {
			return "", err
		}
		oid, err := r.store.PutBlob(content)
		if err != nil {
			return "", err
		}
		files[path] = oid
	}

	commit := &objstore.Commit{
		Message:   message,
		Timestamp: r.clock.Now(),
		Parent:    parent,
		Files:     sortedEntries(files),
	}
	oid, err := r.store.PutCommit(commit)
	if err != nil {
		return "", err
	}

	r.refs.SetHead(oid)
	r.index.Clear()
	wasConflicted := r.refs.MergeHead != nil
	if wasConflicted {
		if err := r.refs.ClearMergeHead(); err != nil {
			return "", err
		}
	}
	if err := r.refs.Save(); err != nil {
		return "", err
	}
	if err := r.index.Save(); err != nil {
		return "", err
	}
	if r.cache != nil {
		_ = r.cache.ClearStaged()
	}
	r.logInfo("commit", oid, []zap.Field{zap.String("parent", parent)})
	return oid, nil
}

func (r *Repo) parentFileMap(parent string) (map[string]string, error) {
	if parent == "" {
		return map[string]string{}, nil
	}
	c, err := r.store.GetCommit(parent)
	if err != nil {
		return nil, err
	}
	return c.FileMap(), nil
}

func sortedEntries(files map[string]string) []objstore.FileEntry {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	entries := make([]objstore.FileEntry, 0, len(paths))
	for _, p := range paths {
		entries = append(entries, objstore.FileEntry{Path: p, OID: files[p]})
	}
	return entries
}

// LogEntry is one commit surfaced by Log, newest first.
type LogEntry struct {
	OID       string
	Message   string
	Timestamp string
	Parent    string
}

// Log walks HEAD's parent chain, newest first, stopping after limit entries
// (0 or negative means unlimited).
func (r *Repo) Log(limit int) ([]LogEntry, error) {
	var entries []LogEntry
	oid := r.refs.HeadOID
	for oid != "" {
		c, err := r.store.GetCommit(oid)
		if err != nil {
			return nil, err
		}
		entries = append(entries, LogEntry{OID: c.OID, Message: c.Message, Timestamp: c.Timestamp, Parent: c.Parent})
		if limit > 0 && len(entries) >= limit {
			break
		}
		oid = c.Parent
	}
	return entries, nil
}

// StatusEntry describes one staged path's relationship to the working tree.
type StatusEntry struct {
	Path  string
	State string // "staged" | "modified" | "deleted"
}

// Status reports, for every staged path, whether the working-tree file
// still matches the OID it had at stage time. Resolves spec.md §9 design
// note #7 (the source's tautological status check) by comparing against the
// staged-OID cache rather than re-deriving the same hash that was just
// written. Without the cache, or with no recorded OID for a path, a present
// file is reported as "staged".
func (r *Repo) Status() ([]StatusEntry, error) {
	paths := r.index.SortedPaths()
	out := make([]StatusEntry, 0, len(paths))
	for _, path := range paths {
		abs := join(r.root, path)
		if !r.fs.Exists(abs) {
			out = append(out, StatusEntry{Path: path, State: "deleted"})
			continue
		}
		state := "staged"
		if r.cache != nil {
			if stagedOID, ok := r.cache.StagedOID(path); ok {
				content, err := r.fs.ReadFile(abs)
				if err != nil {
					return nil, err
				}
				if currentOID := objstore.HashForStatus(content); currentOID != stagedOID {
					state = "modified"
				}
			}
		}
		out = append(out, StatusEntry{Path: path, State: state})
	}
	return out, nil
}

// Diff implements spec.md §6.3's four diff forms:
//   - no args: working tree vs staged (index) content
//   - "--staged" / "--cached": staged (index) vs HEAD
//   - one commit OID: working tree vs that commit
//   - two commit OIDs: commit vs commit
func (r *Repo) Diff(args ...string) (string, error) {
	switch len(args) {
	case 0:
		return r.diffWorkingVsStaged()
	case 1:
		if args[0] == "--staged" || args[0] == "--cached" {
			return r.diffStagedVsHead()
		}
		return r.diffWorkingVsCommit(args[0])
	case 2:
		return r.diffCommitVsCommit(args[0], args[1])
	default:
		return "", fmt.Errorf("diff: too many arguments")
	}
}

func (r *Repo) diffWorkingVsStaged() (string, error) {
	var out string
	for _, path := range r.index.SortedPaths() {
		staged, err := r.blobAt(path, r.index)
		if err != nil {
			return "", err
		}
		working, _ := r.fs.ReadFile(join(r.root, path))
		out += vcsdiff.Unified(path, staged, working)
	}
	return out, nil
}

func (r *Repo) diffStagedVsHead() (string, error) {
	headFiles, err := r.parentFileMap(r.refs.HeadOID)
	if err != nil {
		return "", err
	}
	var out string
	for _, path := range r.index.SortedPaths() {
		headOID := headFiles[path]
		var headContent []byte
		if headOID != "" {
			headContent, err = r.store.GetBlob(headOID)
			if err != nil {
				return "", err
			}
		}
		staged, err := r.blobAt(path, r.index)
		if err != nil {
			return "", err
		}
		out += vcsdiff.Unified(path, headContent, staged)
	}
	return out, nil
}

func (r *Repo) diffWorkingVsCommit(oid string) (string, error) {
	files, err := r.parentFileMap(oid)
	if err != nil {
		return "", err
	}
	var out string
	for _, path := range sortedKeys(files) {
		content, err := r.store.GetBlob(files[path])
		if err != nil {
			return "", err
		}
		working, _ := r.fs.ReadFile(join(r.root, path))
		out += vcsdiff.Unified(path, content, working)
	}
	return out, nil
}

func (r *Repo) diffCommitVsCommit(oidA, oidB string) (string, error) {
	a, err := r.parentFileMap(oidA)
	if err != nil {
		return "", err
	}
	b, err := r.parentFileMap(oidB)
	if err != nil {
		return "", err
	}
	paths := map[string]bool{}
	for p := range a {
		paths[p] = true
	}
	for p := range b {
		paths[p] = true
	}
	names := make([]string, 0, len(paths))
	for p := range paths {
		names = append(names, p)
	}
	sort.Strings(names)

	var out string
	for _, path := range names {
		var contentA, contentB []byte
		if oid := a[path]; oid != "" {
			contentA, err = r.store.GetBlob(oid)
			if err != nil {
				return "", err
			}
		}
		if oid := b[path]; oid != "" {
			contentB, err = r.store.GetBlob(oid)
			if err != nil {
				return "", err
			}
		}
		out += vcsdiff.Unified(path, contentA, contentB)
	}
	return out, nil
}

// blobAt resolves the content that would be committed for path right now:
// its current working-tree bytes if staged (the index records paths, not
// content, so "staged content" means "the file as it stands").
func (r *Repo) blobAt(path string, idx *index.Index) ([]byte, error) {
	if !idx.Contains(path) {
		return nil, nil
	}
	abs := join(r.root, path)
	if !r.fs.Exists(abs) {
		return nil, nil
	}
	return r.fs.ReadFile(abs)
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Branch creates a new branch pointing at the current HEAD commit. Fails
// branch-exists if name is already taken.
func (r *Repo) Branch(name string) error {
	if _, ok := r.refs.Branches[name]; ok {
		err := vcserr.New(vcserr.BranchExists, name)
		r.logError("branch", err)
		return err
	}
	r.refs.Branches[name] = r.refs.HeadOID
	if err := r.refs.Save(); err != nil {
		return err
	}
	r.logInfo("branch", r.refs.HeadOID, []zap.Field{zap.String("name", name)})
	return nil
}

// BranchInfo is one entry returned by ListBranches.
type BranchInfo struct {
	Name    string
	OID     string
	Current bool
}

// ListBranches returns every known branch, sorted by name.
func (r *Repo) ListBranches() []BranchInfo {
	names := make([]string, 0, len(r.refs.Branches))
	for name := range r.refs.Branches {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]BranchInfo, 0, len(names))
	for _, name := range names {
		out = append(out, BranchInfo{Name: name, OID: r.refs.Branches[name], Current: name == r.refs.HeadBranch})
	}
	return out
}

// Checkout reconciles the working tree to target per spec.md §4.5. Fails
// dirty-index if the index is non-empty, unknown-branch if target is not a
// known branch name.
func (r *Repo) Checkout(target string) error {
	if r.index.Len() != 0 {
		err := vcserr.New(vcserr.DirtyIndex, "")
		r.logError("checkout", err)
		return err
	}
	targetOID, ok := r.refs.Branches[target]
	if !ok {
		err := vcserr.New(vcserr.UnknownBranch, target)
		r.logError("checkout", err)
		return err
	}

	fromFiles, err := r.parentFileMap(r.refs.HeadOID)
	if err != nil {
		return err
	}
	toFiles, err := r.parentFileMap(targetOID)
	if err != nil {
		return err
	}
	if err := r.checkout.Reconcile(fromFiles, toFiles); err != nil {
		return err
	}

	r.refs.HeadBranch = target
	r.refs.HeadOID = targetOID
	if err := r.refs.Save(); err != nil {
		return err
	}
	r.logInfo("checkout", targetOID, []zap.Field{zap.String("branch", target)})
	return nil
}

// MergeResult is the typed outcome Merge returns, mirroring merge.Outcome
// plus the conflicted-paths list spec.md §7's merge-conflict error carries.
type MergeResult struct {
	Outcome   merge.Outcome
	NewHead   string
	Conflicts []string
}

// Merge combines branchName into the current branch per spec.md §4.8.
func (r *Repo) Merge(branchName string) (*MergeResult, error) {
	theirs, ok := r.refs.Branches[branchName]
	if !ok {
		err := vcserr.New(vcserr.UnknownBranch, branchName)
		r.logError("merge", err)
		return nil, err
	}
	if branchName == r.refs.HeadBranch {
		err := vcserr.New(vcserr.SelfMerge, branchName)
		r.logError("merge", err)
		return nil, err
	}
	if r.index.Len() != 0 {
		err := vcserr.New(vcserr.DirtyIndex, "")
		r.logError("merge", err)
		return nil, err
	}

	ours := r.refs.HeadOID
	if ours == "" && theirs == "" {
		err := vcserr.New(vcserr.NothingToMerge, "")
		r.logError("merge", err)
		return nil, err
	}
	if theirs == "" {
		err := vcserr.New(vcserr.NothingToMerge, branchName)
		r.logError("merge", err)
		return nil, err
	}

	alreadyUpToDate, fastForward, err := r.merge.FastForwardCheck(ours, theirs)
	if err != nil {
		return nil, err
	}
	if alreadyUpToDate {
		err := vcserr.New(vcserr.AlreadyUpToDate, branchName)
		r.logError("merge", err)
		return nil, err
	}
	if fastForward {
		if err := r.merge.FastForward(ours, theirs); err != nil {
			return nil, err
		}
		r.refs.SetHead(theirs)
		if err := r.refs.Save(); err != nil {
			return nil, err
		}
		r.logInfo("merge", theirs, []zap.Field{zap.String("kind", "fast-forward")})
		return &MergeResult{Outcome: merge.FastForward, NewHead: theirs}, nil
	}

	base, err := r.history.NearestCommonAncestor(ours, theirs)
	if err != nil {
		return nil, err
	}
	if base == "" {
		err := vcserr.New(vcserr.UnrelatedHistories, branchName)
		r.logError("merge", err)
		return nil, err
	}

	merged, conflicts, err := r.merge.ThreeWay(base, ours, theirs, branchName)
	if err != nil {
		return nil, err
	}

	if len(conflicts) > 0 {
		for path := range merged {
			r.index.Add(path)
		}
		for _, path := range conflicts {
			if r.checkout.Exists(path) {
				r.index.Add(path)
			}
		}
		if err := r.index.Save(); err != nil {
			return nil, err
		}
		if err := r.refs.SetMergeHead(branchName, ours, theirs); err != nil {
			return nil, err
		}
		r.logInfo("merge", "", []zap.Field{zap.String("kind", "conflict"), zap.Strings("paths", conflicts)})
		return &MergeResult{Outcome: merge.Conflicted, Conflicts: conflicts}, vcserr.Conflict(conflicts)
	}

	for path := range merged {
		r.index.Add(path)
	}
	if err := r.index.Save(); err != nil {
		return nil, err
	}
	oid, err := r.Commit(fmt.Sprintf("Merge branch '%s'", branchName))
	if err != nil {
		return nil, err
	}
	r.logInfo("merge", oid, []zap.Field{zap.String("kind", "three-way")})
	return &MergeResult{Outcome: merge.Merged, NewHead: oid}, nil
}
