package safeio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSafeFSAllowsAbsoluteUnderRoot(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(p, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	fs, err := NewSafeFS(dir)
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}
	if _, err := fs.SafeReadFile(p); err != nil {
		t.Fatalf("SafeReadFile absolute: %v", err)
	}
}

func TestSafeWriteFileReplacesAtomically(t *testing.T) {
	fs, err := EnsureSafeFS(filepath.Join(t.TempDir(), "projects"))
	if err != nil {
		t.Fatalf("EnsureSafeFS: %v", err)
	}
	for _, body := range []string{"first", "second"} {
		if err := fs.SafeWriteFile("p.json", []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", body, err)
		}
	}
	got, err := fs.SafeReadFile("p.json")
	if err != nil || string(got) != "second" {
		t.Fatalf("read back %q, %v", got, err)
	}
	entries, _ := fs.SafeReadDir(".")
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func TestSafeWriteFileRejectsTraversal(t *testing.T) {
	fs, err := NewSafeFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewSafeFS: %v", err)
	}
	if err := fs.SafeWriteFile("../escape.json", []byte("x"), 0o644); !errors.Is(err, ErrTraversal) {
		t.Fatalf("expected traversal error, got %v", err)
	}
	if err := fs.SafeWriteFile("/etc/escape.json", []byte("x"), 0o644); err == nil {
		t.Fatalf("absolute path outside root must fail")
	}
}
