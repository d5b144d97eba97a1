// Package history implements the commit-graph walker (C6): ancestor sets,
// ancestry queries, and nearest-common-ancestor, per spec.md §4.6. Grounded
// on keshon-bvc/internal/command/merge/base.go's explicit-worklist traversal
// style, which spec.md §9 explicitly prefers over a pointer-graph model.
package history

import (
	"minigit/internal/objstore"
	"minigit/internal/stagecache"
)

// Engine walks parent links over an object store.
type Engine struct {
	store *objstore.Store
	cache *stagecache.Cache // optional; nil disables the ancestor-set memo
}

// New returns a history engine reading commits from store, optionally
// memoizing ancestor sets in cache (may be nil).
func New(store *objstore.Store, cache *stagecache.Cache) *Engine {
	return &Engine{store: store, cache: cache}
}

// Ancestors returns oid's ancestor set, oid included, by walking parent
// links with an explicit worklist until an empty parent is reached.
func (e *Engine) Ancestors(oid string) ([]string, error) {
	if oid == "" {
		return nil, nil
	}
	if e.cache != nil {
		if memo, ok := e.cache.AncestorsMemo(oid); ok {
			return memo, nil
		}
	}

	seen := map[string]bool{}
	order := []string{}
	stack := []string{oid}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)

		c, err := e.store.GetCommit(id)
		if err != nil {
			return nil, err
		}
		if c.Parent != "" {
			stack = append(stack, c.Parent)
		}
	}

	if e.cache != nil {
		_ = e.cache.SetAncestorsMemo(oid, order)
	}
	return order, nil
}

// IsAncestor reports whether candidate appears in child's parent chain
// (child included, per spec.md §8's "is_ancestor(c, c) is true" property).
func (e *Engine) IsAncestor(child, candidate string) (bool, error) {
	if child == "" || candidate == "" {
		return false, nil
	}
	set, err := e.Ancestors(child)
	if err != nil {
		return false, err
	}
	for _, id := range set {
		if id == candidate {
			return true, nil
		}
	}
	return false, nil
}

// NearestCommonAncestor returns the first OID encountered while walking b's
// parent chain that also appears in a's ancestor set, or "" if either input
// is empty or the chains are disjoint. Because merge commits in this engine
// record only one parent (spec.md §3), this linear walk is well-defined
// (spec.md §4.6).
func (e *Engine) NearestCommonAncestor(a, b string) (string, error) {
	if a == "" || b == "" {
		return "", nil
	}
	aSet, err := e.Ancestors(a)
	if err != nil {
		return "", err
	}
	aIndex := make(map[string]bool, len(aSet))
	for _, id := range aSet {
		aIndex[id] = true
	}

	id := b
	seen := map[string]bool{}
	for id != "" && !seen[id] {
		seen[id] = true
		if aIndex[id] {
			return id, nil
		}
		c, err := e.store.GetCommit(id)
		if err != nil {
			return "", err
		}
		id = c.Parent
	}
	return "", nil
}
