package repo

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minigit/internal/clock"
	"minigit/internal/merge"
	"minigit/internal/vcserr"
	"minigit/internal/vfs"
)

func newTestRepo(t *testing.T) (*Repo, vfs.FS) {
	t.Helper()
	fs := vfs.NewMemoryFilesystem()
	clk := clock.Fixed{At: time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)}
	r, err := Init(fs, "", clk, Options{UseCache: true})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, fs
}

func writeFile(t *testing.T, fs vfs.FS, path, content string) {
	t.Helper()
	require.NoError(t, fs.WriteFile(path, []byte(content), 0o644))
}

// Scenario 1: happy path.
func TestHappyPathCommit(t *testing.T) {
	r, fs := newTestRepo(t)
	writeFile(t, fs, "a.txt", "hello\n")
	require.NoError(t, r.Add("a.txt"))
	oid, err := r.Commit("c1")
	require.NoError(t, err)

	assert.Equal(t, oid, r.refs.HeadOID)
	c, err := r.store.GetCommit(oid)
	require.NoError(t, err)
	assert.Equal(t, "", c.Parent)
	require.Len(t, c.Files, 1)
	assert.Equal(t, "a.txt", c.Files[0].Path)

	blob, err := r.store.GetBlob(c.Files[0].OID)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(blob))
}

// Scenario 2: linear log, newest first.
func TestLinearLog(t *testing.T) {
	r, fs := newTestRepo(t)
	writeFile(t, fs, "a.txt", "hello\n")
	require.NoError(t, r.Add("a.txt"))
	c1, err := r.Commit("c1")
	require.NoError(t, err)

	writeFile(t, fs, "a.txt", "hello\nworld\n")
	require.NoError(t, r.Add("a.txt"))
	c2, err := r.Commit("c2")
	require.NoError(t, err)

	entries, err := r.Log(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, c2, entries[0].OID)
	assert.Equal(t, c1, entries[1].OID)
	assert.Equal(t, c1, entries[0].Parent)
}

func TestCommitEmptyIndexFails(t *testing.T) {
	r, _ := newTestRepo(t)
	_, err := r.Commit("nothing")
	require.Error(t, err)
	assert.True(t, vcserr.Is(err, vcserr.NothingToCommit))
}

func TestAddMissingPathFails(t *testing.T) {
	r, _ := newTestRepo(t)
	err := r.Add("nope.txt")
	require.Error(t, err)
	assert.True(t, vcserr.Is(err, vcserr.MissingPath))
}

func TestAddInvalidPathFails(t *testing.T) {
	r, fs := newTestRepo(t)
	writeFile(t, fs, "bad:name.txt", "x")
	err := r.Add("bad:name.txt")
	require.Error(t, err)
	assert.True(t, vcserr.Is(err, vcserr.InvalidPath))
}

// Scenario 3: fast-forward merge.
func TestFastForwardMerge(t *testing.T) {
	r, fs := newTestRepo(t)
	writeFile(t, fs, "a.txt", "hello\n")
	require.NoError(t, r.Add("a.txt"))
	_, err := r.Commit("c1")
	require.NoError(t, err)

	require.NoError(t, r.Branch("feat"))
	require.NoError(t, r.Checkout("feat"))

	writeFile(t, fs, "a.txt", "X\n")
	require.NoError(t, r.Add("a.txt"))
	featHead, err := r.Commit("c2")
	require.NoError(t, err)

	require.NoError(t, r.Checkout("master"))
	result, err := r.Merge("feat")
	require.NoError(t, err)
	assert.Equal(t, merge.FastForward, result.Outcome)
	assert.Equal(t, featHead, r.refs.HeadOID)

	content, err := fs.ReadFile("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "X\n", string(content))
	assert.Nil(t, r.refs.MergeHead)
}

// Scenario 5: conflict merge.
func TestConflictMerge(t *testing.T) {
	r, fs := newTestRepo(t)
	writeFile(t, fs, "a.txt", "hello\n")
	require.NoError(t, r.Add("a.txt"))
	_, err := r.Commit("c1")
	require.NoError(t, err)

	require.NoError(t, r.Branch("feat"))

	writeFile(t, fs, "a.txt", "M\n")
	require.NoError(t, r.Add("a.txt"))
	_, err = r.Commit("master change")
	require.NoError(t, err)

	require.NoError(t, r.Checkout("feat"))
	writeFile(t, fs, "a.txt", "F\n")
	require.NoError(t, r.Add("a.txt"))
	_, err = r.Commit("feat change")
	require.NoError(t, err)

	require.NoError(t, r.Checkout("master"))
	result, err := r.Merge("feat")
	require.Error(t, err)
	assert.True(t, vcserr.Is(err, vcserr.MergeConflict))
	require.NotNil(t, result)
	assert.Equal(t, merge.Conflicted, result.Outcome)
	assert.Equal(t, []string{"a.txt"}, result.Conflicts)

	require.NotNil(t, r.refs.MergeHead)

	content, err := fs.ReadFile("a.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "<<<<<<< HEAD\n"))
	assert.Contains(t, string(content), "M\n")
	assert.Contains(t, string(content), "=======\n")
	assert.Contains(t, string(content), "F\n")
}

func TestSelfMergeFails(t *testing.T) {
	r, fs := newTestRepo(t)
	writeFile(t, fs, "a.txt", "hello\n")
	require.NoError(t, r.Add("a.txt"))
	_, err := r.Commit("c1")
	require.NoError(t, err)

	_, err = r.Merge("master")
	require.Error(t, err)
	assert.True(t, vcserr.Is(err, vcserr.SelfMerge))
}

func TestCheckoutDirtyIndexFails(t *testing.T) {
	r, fs := newTestRepo(t)
	writeFile(t, fs, "a.txt", "hello\n")
	require.NoError(t, r.Add("a.txt"))

	err := r.Checkout("master")
	require.Error(t, err)
	assert.True(t, vcserr.Is(err, vcserr.DirtyIndex))
}

func TestCheckoutUnknownBranchFails(t *testing.T) {
	r, _ := newTestRepo(t)
	err := r.Checkout("ghost")
	require.Error(t, err)
	assert.True(t, vcserr.Is(err, vcserr.UnknownBranch))
}

func TestBranchExistsFails(t *testing.T) {
	r, _ := newTestRepo(t)
	require.NoError(t, r.Branch("feat"))
	err := r.Branch("feat")
	require.Error(t, err)
	assert.True(t, vcserr.Is(err, vcserr.BranchExists))
}

func TestStatusDetectsModifiedSinceStage(t *testing.T) {
	r, fs := newTestRepo(t)
	writeFile(t, fs, "a.txt", "hello\n")
	require.NoError(t, r.Add("a.txt"))

	entries, err := r.Status()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "staged", entries[0].State)

	writeFile(t, fs, "a.txt", "hello world\n")
	entries, err = r.Status()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "modified", entries[0].State)
}

func TestInitTwiceFails(t *testing.T) {
	fs := vfs.NewMemoryFilesystem()
	clk := clock.System{}
	r1, err := Init(fs, "", clk, Options{})
	require.NoError(t, err)
	r1.Close()

	_, err = Init(fs, "", clk, Options{})
	require.Error(t, err)
	assert.True(t, vcserr.Is(err, vcserr.AlreadyInitialised))
}

func TestOpenNotInitialisedFails(t *testing.T) {
	fs := vfs.NewMemoryFilesystem()
	_, err := Open(fs, "", clock.System{}, Options{})
	require.Error(t, err)
	assert.True(t, vcserr.Is(err, vcserr.NotInitialised))
}

// diff(X, X) produces empty output for every commit X.
func TestDiffSameCommitIsEmpty(t *testing.T) {
	r, fs := newTestRepo(t)
	writeFile(t, fs, "a.txt", "hello\n")
	require.NoError(t, r.Add("a.txt"))
	oid, err := r.Commit("c1")
	require.NoError(t, err)

	out, err := r.Diff(oid, oid)
	require.NoError(t, err)
	assert.Empty(t, out)
}

// Scenario 4: three-way clean merge where each branch tip only restages the
// file it touched. The merge commit must carry every tracked file forward,
// including a.txt which neither branch's tip commit re-staged.
func TestThreeWayCleanMerge(t *testing.T) {
	r, fs := newTestRepo(t)
	writeFile(t, fs, "a.txt", "a\n")
	require.NoError(t, r.Add("a.txt"))
	_, err := r.Commit("c1")
	require.NoError(t, err)

	require.NoError(t, r.Branch("feat"))

	writeFile(t, fs, "b.txt", "b\n")
	require.NoError(t, r.Add("b.txt"))
	masterHead, err := r.Commit("c2")
	require.NoError(t, err)

	require.NoError(t, r.Checkout("feat"))
	writeFile(t, fs, "c.txt", "c\n")
	require.NoError(t, r.Add("c.txt"))
	_, err = r.Commit("c3")
	require.NoError(t, err)

	require.NoError(t, r.Checkout("master"))
	result, err := r.Merge("feat")
	require.NoError(t, err)
	assert.Equal(t, merge.Merged, result.Outcome)

	c, err := r.store.GetCommit(result.NewHead)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"a.txt": mustBlobOID(t, r, "a\n"),
		"b.txt": mustBlobOID(t, r, "b\n"),
		"c.txt": mustBlobOID(t, r, "c\n"),
	}, c.FileMap())

	for path, want := range map[string]string{"a.txt": "a\n", "b.txt": "b\n", "c.txt": "c\n"} {
		content, err := fs.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, want, string(content))
	}

	_ = masterHead
}

func mustBlobOID(t *testing.T, r *Repo, content string) string {
	t.Helper()
	oid, err := r.store.PutBlob([]byte(content))
	require.NoError(t, err)
	return oid
}
