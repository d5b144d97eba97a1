// Package atomicfile provides the temp-file-then-rename write used by the
// reference store and the index so a crash mid-write never leaves a torn
// canonical file in place (a hardening of spec.md §5, not a format change).
package atomicfile

import (
	"github.com/google/uuid"

	"minigit/internal/vfs"
)

// Write writes data to a uuid-suffixed temp file beside path, then renames
// it into place.
func Write(fs vfs.FS, path string, data []byte) error {
	tmp := path + ".tmp-" + uuid.New().String()
	if err := fs.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return fs.Rename(tmp, path)
}
