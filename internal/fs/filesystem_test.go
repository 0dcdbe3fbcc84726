package fs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOSFileSystem_WriteFile(t *testing.T) {
	t.Run("creates file with content", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "index.json")
		fsys := NewOSFileSystem()

		if err := fsys.WriteFile(path, []byte(`{"version":1}`)); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading file: %v", err)
		}
		if string(data) != `{"version":1}` {
			t.Errorf("content = %q", data)
		}
	})

	t.Run("replaces existing file and leaves no temp files", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "project.sdp")
		fsys := NewOSFileSystem()

		if err := fsys.WriteFile(path, []byte("old")); err != nil {
			t.Fatalf("first WriteFile() error = %v", err)
		}
		if err := fsys.WriteFile(path, []byte("new")); err != nil {
			t.Fatalf("second WriteFile() error = %v", err)
		}

		data, _ := os.ReadFile(path)
		if string(data) != "new" {
			t.Errorf("content = %q, want %q", data, "new")
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected only the target file, found %d entries", len(entries))
		}
	})

	t.Run("fails when directory is missing", func(t *testing.T) {
		fsys := NewOSFileSystem()
		if err := fsys.WriteFile(filepath.Join(t.TempDir(), "missing", "f"), []byte("x")); err == nil {
			t.Error("expected error for missing parent directory")
		}
	})
}

func TestOSFileSystem_CopyFile(t *testing.T) {
	t.Run("copies bytes", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "src.png")
		dst := filepath.Join(dir, "dst.png")
		if err := os.WriteFile(src, []byte("pixels"), 0644); err != nil {
			t.Fatal(err)
		}

		if err := NewOSFileSystem().CopyFile(src, dst); err != nil {
			t.Fatalf("CopyFile() error = %v", err)
		}

		data, _ := os.ReadFile(dst)
		if string(data) != "pixels" {
			t.Errorf("content = %q, want %q", data, "pixels")
		}
		if _, err := os.Stat(src); err != nil {
			t.Errorf("source should remain: %v", err)
		}
	})

	t.Run("refuses to overwrite destination", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "src")
		dst := filepath.Join(dir, "dst")
		os.WriteFile(src, []byte("a"), 0644)
		os.WriteFile(dst, []byte("b"), 0644)

		if err := NewOSFileSystem().CopyFile(src, dst); err == nil {
			t.Error("expected error when destination exists")
		}
		data, _ := os.ReadFile(dst)
		if string(data) != "b" {
			t.Errorf("destination was modified: %q", data)
		}
	})

	t.Run("missing source", func(t *testing.T) {
		dir := t.TempDir()
		if err := NewOSFileSystem().CopyFile(filepath.Join(dir, "nope"), filepath.Join(dir, "dst")); err == nil {
			t.Error("expected error for missing source")
		}
		if _, err := os.Stat(filepath.Join(dir, "dst")); !os.IsNotExist(err) {
			t.Error("destination should not be created")
		}
	})
}

func TestOSFileSystem_MkdirTempRemoveAll(t *testing.T) {
	parent := t.TempDir()
	fsys := NewOSFileSystem()

	dir, err := fsys.MkdirTemp(parent, "deck-paste-*")
	if err != nil {
		t.Fatalf("MkdirTemp() error = %v", err)
	}
	if filepath.Dir(dir) != parent || !strings.HasPrefix(filepath.Base(dir), "deck-paste-") {
		t.Errorf("MkdirTemp() = %q, want deck-paste-* under %q", dir, parent)
	}
	if err := os.WriteFile(filepath.Join(dir, "pasted.png"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := fsys.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll() error = %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("%s still exists after RemoveAll", dir)
	}
	if err := fsys.RemoveAll(dir); err != nil {
		t.Errorf("RemoveAll(missing) error = %v, want nil", err)
	}
}
