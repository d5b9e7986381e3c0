package fsutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Dockerfile")

	if err := WriteFileAtomic(path, []byte("FROM python:3.11-slim\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "FROM python:3.11-slim\n" {
		t.Errorf("content = %q", data)
	}

	// overwrite replaces content completely
	if err := WriteFileAtomic(path, []byte("FROM python:3.12-slim\n"), 0o644); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "FROM python:3.12-slim\n" {
		t.Errorf("content after overwrite = %q", data)
	}

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1", len(entries))
	}
}

func TestDigestTreeStable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app/main.py", "app = object()\n")
	writeFile(t, dir, "requirements.txt", "fastapi==0.110.0\n")

	first, err := DigestTree(dir)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}

	// touching mtimes must not change the digest
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "app/main.py"), future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	second, err := DigestTree(dir)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if first != second {
		t.Error("digest changed after mtime-only update")
	}

	// identical content in a different directory digests identically
	other := t.TempDir()
	writeFile(t, other, "app/main.py", "app = object()\n")
	writeFile(t, other, "requirements.txt", "fastapi==0.110.0\n")
	third, err := DigestTree(other)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if first != third {
		t.Error("identical trees digest differently")
	}
}

func TestDigestTreeContentSensitive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app/main.py", "app = object()\n")

	first, err := DigestTree(dir)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}

	writeFile(t, dir, "app/main.py", "app = object()  # edited\n")
	second, err := DigestTree(dir)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if first == second {
		t.Error("digest unchanged after content edit")
	}

	// renaming a file changes the digest too
	writeFile(t, dir, "app/main.py", "app = object()\n")
	reverted, err := DigestTree(dir)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if reverted != first {
		t.Error("digest did not revert with content")
	}
}

func TestDigestTreeExcludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app/main.py", "app = object()\n")

	base, err := DigestTree(dir, "Dockerfile.generated")
	if err != nil {
		t.Fatalf("digest: %v", err)
	}

	// default and extra exclusions do not contribute
	writeFile(t, dir, "__pycache__/main.cpython-311.pyc", "bytecode")
	writeFile(t, dir, ".git/HEAD", "ref: refs/heads/main\n")
	writeFile(t, dir, "Dockerfile.generated", "FROM python\n")

	got, err := DigestTree(dir, "Dockerfile.generated")
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if got != base {
		t.Error("excluded paths changed the digest")
	}
}
