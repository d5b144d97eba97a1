// Package merge implements the merge engine (C8), per spec.md §4.8:
// fast-forward detection, the three-way per-path decision table, and
// conflict-marked file writes. Grounded on the teacher's internal/change
// auto-tracker's three-way reconciliation idiom, generalized from the
// teacher's hierarchical parcel model to this engine's flat (path, blob-OID)
// commit files.
package merge

import (
	"bytes"
	"sort"

	"minigit/internal/checkout"
	"minigit/internal/history"
	"minigit/internal/objstore"
)

// Outcome tags how a merge resolved, a typed variant per spec.md §9's
// guidance to avoid sentinel strings.
type Outcome int

const (
	FastForward Outcome = iota
	AlreadyUpToDate
	Merged
	Conflicted
)

// pathDecision is the outcome of applying the §4.8 step-5 decision table to
// one path: either a resolved OID (empty means the path is absent/deleted)
// or a conflict carrying the literal marked bytes to write.
type pathDecision struct {
	conflict    bool
	resolvedOID string
	content     []byte
}

// Engine runs merges for one repository.
type Engine struct {
	store    *objstore.Store
	history  *history.Engine
	checkout *checkout.Engine
}

// New returns a merge engine over the given object store, history walker,
// and checkout engine.
func New(store *objstore.Store, hist *history.Engine, co *checkout.Engine) *Engine {
	return &Engine{store: store, history: hist, checkout: co}
}

// FastForwardCheck reports the three trivial cases of spec.md §4.8 step 3
// that don't require a three-way merge: whether theirs is already reachable
// from ours (already-up-to-date), or ours is reachable from theirs
// (fast-forward). Returns (alreadyUpToDate, fastForward).
func (e *Engine) FastForwardCheck(ours, theirs string) (alreadyUpToDate, fastForward bool, err error) {
	if ours == "" {
		return false, true, nil
	}
	if theirs == "" {
		return false, false, nil
	}
	if alreadyUpToDate, err = e.history.IsAncestor(ours, theirs); err != nil {
		return false, false, err
	}
	if alreadyUpToDate {
		return true, false, nil
	}
	fastForward, err = e.history.IsAncestor(theirs, ours)
	return false, fastForward, err
}

// FastForward reconciles the working tree to theirs' file set, the way C5
// does for any checkout (spec.md §4.8 step 3).
func (e *Engine) FastForward(ours, theirs string) error {
	oursFiles, err := e.fileMap(ours)
	if err != nil {
		return err
	}
	theirsFiles, err := e.fileMap(theirs)
	if err != nil {
		return err
	}
	return e.checkout.Reconcile(oursFiles, theirsFiles)
}

func (e *Engine) fileMap(oid string) (map[string]string, error) {
	if oid == "" {
		return map[string]string{}, nil
	}
	c, err := e.store.GetCommit(oid)
	if err != nil {
		return nil, err
	}
	return c.FileMap(), nil
}

// ThreeWay performs the per-path decision table of spec.md §4.8 step 5 over
// base, ours and theirs, writing resolved content or conflict markers into
// the working tree as it goes. It returns the map of cleanly resolved,
// surviving paths (filled whether or not other paths conflicted; conflicted
// and deleted paths are not in it) and the list of conflicted paths (empty
// if none).
func (e *Engine) ThreeWay(base, ours, theirs, theirsBranch string) (merged map[string]string, conflicts []string, err error) {
	baseFiles, err := e.fileMap(base)
	if err != nil {
		return nil, nil, err
	}
	oursFiles, err := e.fileMap(ours)
	if err != nil {
		return nil, nil, err
	}
	theirsFiles, err := e.fileMap(theirs)
	if err != nil {
		return nil, nil, err
	}

	paths := unionKeys(baseFiles, oursFiles, theirsFiles)
	merged = map[string]string{}

	for _, path := range paths {
		b, o, t := baseFiles[path], oursFiles[path], theirsFiles[path]
		decision, err := e.decide(path, b, o, t, theirsBranch)
		if err != nil {
			return nil, nil, err
		}
		if decision.conflict {
			conflicts = append(conflicts, path)
			if err := e.checkout.WritePath(path, decision.content); err != nil {
				return nil, nil, err
			}
			continue
		}
		if decision.resolvedOID == "" {
			if err := e.checkout.RemovePath(path); err != nil {
				return nil, nil, err
			}
			continue
		}
		// Materialise immediately rather than deferring to a later
		// reconcile pass: a clean resolution must land in the working
		// tree even when an unrelated path elsewhere in the same merge
		// conflicts.
		content, err := e.store.GetBlob(decision.resolvedOID)
		if err != nil {
			return nil, nil, err
		}
		if err := e.checkout.WritePath(path, content); err != nil {
			return nil, nil, err
		}
		merged[path] = decision.resolvedOID
	}

	sort.Strings(conflicts)
	return merged, conflicts, nil
}

// decide applies the decision table of spec.md §4.8 step 5 to one path.
// B, O, T are the blob OIDs at base/ours/theirs (empty string = absent).
// The three non-conflict rows collapse into one rule each since "keep" and
// "take" both just mean "resolve to this OID, possibly empty" once the
// working-tree write is handled uniformly by the caller:
func (e *Engine) decide(path, b, o, t, theirsBranch string) (pathDecision, error) {
	switch {
	case o == t:
		// Unchanged; identical independent add; or removed on both sides.
		return pathDecision{resolvedOID: o}, nil
	case b == o && b != t:
		// Only theirs changed (including deletion when t == "").
		return pathDecision{resolvedOID: t}, nil
	case b == t && b != o:
		// Only ours changed (including deletion when o == "").
		return pathDecision{resolvedOID: o}, nil
	default:
		return e.conflictMark(path, o, t, theirsBranch)
	}
}

// conflictMark materialises the literal conflict-marked bytes of spec.md
// §4.8 step 5 for one path, newline-normalising each side first.
func (e *Engine) conflictMark(path, oursOID, theirsOID, theirsBranch string) (pathDecision, error) {
	oursContent, err := e.blobOrEmpty(oursOID)
	if err != nil {
		return pathDecision{}, err
	}
	theirsContent, err := e.blobOrEmpty(theirsOID)
	if err != nil {
		return pathDecision{}, err
	}

	var buf bytes.Buffer
	buf.WriteString("<<<<<<< HEAD\n")
	buf.Write(normalizeTrailingNewline(oursContent))
	buf.WriteString("=======\n")
	buf.Write(normalizeTrailingNewline(theirsContent))
	buf.WriteString(">>>>>>> ")
	buf.WriteString(theirsBranch)
	buf.WriteByte('\n')

	return pathDecision{conflict: true, content: buf.Bytes()}, nil
}

func (e *Engine) blobOrEmpty(oid string) ([]byte, error) {
	if oid == "" {
		return nil, nil
	}
	return e.store.GetBlob(oid)
}

// normalizeTrailingNewline appends a trailing newline to non-empty content
// that lacks one, per spec.md §4.8 step 5, so conflict markers sit on their
// own line.
func normalizeTrailingNewline(content []byte) []byte {
	if len(content) == 0 {
		return content
	}
	if content[len(content)-1] == '\n' {
		return content
	}
	out := make([]byte, len(content)+1)
	copy(out, content)
	out[len(content)] = '\n'
	return out
}

func unionKeys(maps ...map[string]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range maps {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}
