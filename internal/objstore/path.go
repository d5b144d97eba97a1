package objstore

import "strings"

// ValidPath reports whether a path is safe to record in a commit's files
// line. Paths containing ':' or ',' would corrupt the §6.2 text encoding;
// spec.md §9 design note #1 resolves this by rejecting such paths at
// add-time rather than escaping them.
func ValidPath(path string) bool {
	return !strings.ContainsAny(path, ":,\n")
}
