package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minigit/internal/objstore"
	"minigit/internal/vfs"
)

func newChain(t *testing.T) (*objstore.Store, string, string, string) {
	t.Helper()
	fs := vfs.NewMemoryFilesystem()
	store, err := objstore.New(fs, ".minigit/objects", 0)
	require.NoError(t, err)

	c1, err := store.PutCommit(&objstore.Commit{Message: "c1", Timestamp: "t1", Parent: ""})
	require.NoError(t, err)
	c2, err := store.PutCommit(&objstore.Commit{Message: "c2", Timestamp: "t2", Parent: c1})
	require.NoError(t, err)
	c3, err := store.PutCommit(&objstore.Commit{Message: "c3", Timestamp: "t3", Parent: c2})
	require.NoError(t, err)
	return store, c1, c2, c3
}

func TestAncestorsIncludesSelf(t *testing.T) {
	store, c1, c2, c3 := newChain(t)
	e := New(store, nil)

	set, err := e.Ancestors(c3)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{c1, c2, c3}, set)
}

func TestIsAncestorReflexive(t *testing.T) {
	store, _, _, c3 := newChain(t)
	e := New(store, nil)

	ok, err := e.IsAncestor(c3, c3)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsAncestorTrueAndFalse(t *testing.T) {
	store, c1, _, c3 := newChain(t)
	e := New(store, nil)

	ok, err := e.IsAncestor(c3, c1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.IsAncestor(c1, c3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNearestCommonAncestorOnLinearChain(t *testing.T) {
	store, c1, c2, c3 := newChain(t)
	e := New(store, nil)

	base, err := e.NearestCommonAncestor(c3, c2)
	require.NoError(t, err)
	assert.Equal(t, c2, base)

	_ = c1
}

func TestNearestCommonAncestorSymmetric(t *testing.T) {
	fs := vfs.NewMemoryFilesystem()
	store, err := objstore.New(fs, ".minigit/objects", 0)
	require.NoError(t, err)

	base, err := store.PutCommit(&objstore.Commit{Message: "base", Timestamp: "t0", Parent: ""})
	require.NoError(t, err)
	a, err := store.PutCommit(&objstore.Commit{Message: "a", Timestamp: "t1", Parent: base})
	require.NoError(t, err)
	b, err := store.PutCommit(&objstore.Commit{Message: "b", Timestamp: "t1", Parent: base})
	require.NoError(t, err)

	e := New(store, nil)
	abBase, err := e.NearestCommonAncestor(a, b)
	require.NoError(t, err)
	baBase, err := e.NearestCommonAncestor(b, a)
	require.NoError(t, err)
	assert.Equal(t, base, abBase)
	assert.Equal(t, abBase, baBase)
}

func TestNearestCommonAncestorEmptyInput(t *testing.T) {
	store, _, _, c3 := newChain(t)
	e := New(store, nil)

	base, err := e.NearestCommonAncestor("", c3)
	require.NoError(t, err)
	assert.Equal(t, "", base)
}

func TestNearestCommonAncestorDisjointHistories(t *testing.T) {
	fs := vfs.NewMemoryFilesystem()
	store, err := objstore.New(fs, ".minigit/objects", 0)
	require.NoError(t, err)

	a, err := store.PutCommit(&objstore.Commit{Message: "a", Timestamp: "t1", Parent: ""})
	require.NoError(t, err)
	b, err := store.PutCommit(&objstore.Commit{Message: "b", Timestamp: "t2", Parent: ""})
	require.NoError(t, err)

	e := New(store, nil)
	base, err := e.NearestCommonAncestor(a, b)
	require.NoError(t, err)
	assert.Equal(t, "", base)
}
