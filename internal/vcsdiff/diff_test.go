package vcsdiff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdenticalInputsProduceNoOutput(t *testing.T) {
	out := Unified("a.txt", []byte("hello\nworld\n"), []byte("hello\nworld\n"))
	assert.Empty(t, out)
}

func TestSingleInsertedLine(t *testing.T) {
	ops := Compute([]byte("hello\n"), []byte("hello\nworld\n"))

	var adds, dels int
	for _, op := range ops {
		switch op.Kind {
		case Add:
			adds++
		case Delete:
			dels++
		}
	}
	assert.Equal(t, 1, adds)
	assert.Equal(t, 0, dels)
}

func TestFormatHeaders(t *testing.T) {
	out := Format("a.txt", Compute([]byte("a\n"), []byte("b\n")))
	assert.Contains(t, out, "--- a/a.txt\n")
	assert.Contains(t, out, "+++ b/a.txt\n")
	assert.Contains(t, out, "-a\n")
	assert.Contains(t, out, "+b\n")
}

func TestEmptyOldContent(t *testing.T) {
	out := Unified("new.txt", nil, []byte("line1\nline2\n"))
	assert.Contains(t, out, "+line1\n")
	assert.Contains(t, out, "+line2\n")
}

func TestNoTrailingNewlineNoPhantomLine(t *testing.T) {
	ops := Compute([]byte("a\nb"), []byte("a\nb"))
	assert.False(t, HasChanges(ops))
}
