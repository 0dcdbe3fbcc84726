package deck

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
)

// FileSystem provides the file primitives used by the vault components.
// It abstracts file access so tests can inject failures (for example a
// rename that fails across devices).
type FileSystem interface {
	// ReadFile reads the whole file into memory.
	ReadFile(path string) ([]byte, error)

	// WriteFile replaces path with data using a temp file and rename in the
	// same directory, so readers never observe a partial file.
	WriteFile(path string, data []byte) error

	// Stat returns file info for path.
	Stat(path string) (fs.FileInfo, error)

	// Rename moves oldPath to newPath.
	Rename(oldPath, newPath string) error

	// CopyFile copies the bytes of src to a new file at dst.
	CopyFile(src, dst string) error

	// Remove deletes a single file.
	Remove(path string) error

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string) error

	// ReadDir lists the entries of a directory.
	ReadDir(path string) ([]fs.DirEntry, error)

	// MkdirTemp creates a new directory in dir (the OS default when empty)
	// named after pattern, as os.MkdirTemp does.
	MkdirTemp(dir, pattern string) (string, error)

	// RemoveAll deletes path and everything below it. A missing path is not
	// an error.
	RemoveAll(path string) error
}

// Hasher computes content digests. The returned string is lower-case hex.
type Hasher interface {
	Sum(data []byte) string
}

// SHA256Hasher hashes content with SHA-256.
type SHA256Hasher struct{}

func (SHA256Hasher) Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
