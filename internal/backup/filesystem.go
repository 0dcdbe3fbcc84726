package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"scenedeck/internal/deck"
	"scenedeck/internal/errors"
)

// FileSystemTarget stores backup objects as files under a root directory,
// one file per key:
//
//	<root>/
//	  assets/<sha256>               (asset content)
//	  snapshots/<id>/manifest.json  (snapshot manifest)
//	  snapshots/<id>/...            (index, trash index, project)
type FileSystemTarget struct {
	root string
}

// NewFileSystemTarget creates a target rooted at root, creating it if
// needed.
func NewFileSystemTarget(root string) (*FileSystemTarget, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup root: %w", err)
	}
	return &FileSystemTarget{root: root}, nil
}

func (t *FileSystemTarget) path(key string) (string, error) {
	p := filepath.FromSlash(key)
	if !filepath.IsLocal(p) {
		return "", fmt.Errorf("invalid backup key %q", key)
	}
	return filepath.Join(t.root, p), nil
}

// Put writes the object atomically. size must match the bytes read from r.
func (t *FileSystemTarget) Put(key string, r io.Reader, size int64) error {
	dest, err := t.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != size {
		return fmt.Errorf("size mismatch for %s: expected %d bytes, got %d", key, size, written)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	committed = true
	return nil
}

// Get copies the object to w. A missing key is a NOT_FOUND error.
func (t *FileSystemTarget) Get(key string, w io.Writer) error {
	src, err := t.path(key)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFound(key)
		}
		return fmt.Errorf("failed to open %s: %w", key, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	return nil
}

func (t *FileSystemTarget) Exists(key string) (bool, error) {
	p, err := t.path(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking %s: %w", key, err)
	}
	return true, nil
}

// ValidateSetup checks that the root is a writable directory.
func (t *FileSystemTarget) ValidateSetup() error {
	info, err := os.Stat(t.root)
	if err != nil {
		return fmt.Errorf("backup root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("backup root is not a directory: %s", t.root)
	}
	probe, err := os.CreateTemp(t.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("backup root not writable: %w", err)
	}
	probe.Close()
	return os.Remove(probe.Name())
}

var _ deck.BackupTarget = (*FileSystemTarget)(nil)
