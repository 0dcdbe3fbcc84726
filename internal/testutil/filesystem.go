package testutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"scenedeck/internal/deck"
	osfs "scenedeck/internal/fs"
)

// FailingFS wraps the real filesystem and lets tests inject failures into
// individual primitives. A nil hook means the call passes through.
type FailingFS struct {
	deck.FileSystem

	mu       sync.Mutex
	RenameFn func(oldPath, newPath string) error
	CopyFn   func(src, dst string) error
	RemoveFn func(path string) error
	WriteFn  func(path string) error

	MkdirTempFn func(dir string) error
	RemoveAllFn func(path string) error

	writes []string
	copies []string
}

// NewFailingFS creates a FailingFS over the OS filesystem with no failures.
func NewFailingFS() *FailingFS {
	return &FailingFS{FileSystem: osfs.NewOSFileSystem()}
}

func (f *FailingFS) Rename(oldPath, newPath string) error {
	if f.RenameFn != nil {
		if err := f.RenameFn(oldPath, newPath); err != nil {
			return err
		}
	}
	return f.FileSystem.Rename(oldPath, newPath)
}

func (f *FailingFS) CopyFile(src, dst string) error {
	if f.CopyFn != nil {
		if err := f.CopyFn(src, dst); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.copies = append(f.copies, dst)
	f.mu.Unlock()
	return f.FileSystem.CopyFile(src, dst)
}

func (f *FailingFS) Remove(path string) error {
	if f.RemoveFn != nil {
		if err := f.RemoveFn(path); err != nil {
			return err
		}
	}
	return f.FileSystem.Remove(path)
}

func (f *FailingFS) WriteFile(path string, data []byte) error {
	if f.WriteFn != nil {
		if err := f.WriteFn(path); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.writes = append(f.writes, path)
	f.mu.Unlock()
	return f.FileSystem.WriteFile(path, data)
}

func (f *FailingFS) MkdirTemp(dir, pattern string) (string, error) {
	if f.MkdirTempFn != nil {
		if err := f.MkdirTempFn(dir); err != nil {
			return "", err
		}
	}
	return f.FileSystem.MkdirTemp(dir, pattern)
}

func (f *FailingFS) RemoveAll(path string) error {
	if f.RemoveAllFn != nil {
		if err := f.RemoveAllFn(path); err != nil {
			return err
		}
	}
	return f.FileSystem.RemoveAll(path)
}

// Writes returns the paths passed to successful WriteFile calls.
func (f *FailingFS) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

// Copies returns the destinations of CopyFile calls that were attempted.
func (f *FailingFS) Copies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.copies...)
}

// WriteTestFile creates path (and parents) with data.
func WriteTestFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// ReadTestFile returns the content of path, failing the test on error.
func ReadTestFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return data
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ListDir returns the names in dir, failing the test on error.
func ListDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

var _ deck.FileSystem = (*FailingFS)(nil)
