package vfs

import (
	"os"
	"path/filepath"
)

// OSFilesystem is the production FS backed by the standard library.
type OSFilesystem struct{}

// NewOSFilesystem returns a real-disk FS.
func NewOSFilesystem() *OSFilesystem {
	return &OSFilesystem{}
}

func (OSFilesystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (OSFilesystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (OSFilesystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

func (OSFilesystem) Remove(path string) error {
	return os.Remove(path)
}

func (OSFilesystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (OSFilesystem) ReadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (OSFilesystem) Rename(oldPath, newPath string) error {
	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		return err
	}
	return os.Rename(oldPath, newPath)
}
