package lock

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const pollEvery = 50 * time.Millisecond

// FileLocker implements Locker with exclusive lock files in a
// directory. A lock is held while its file exists; Acquire polls
// until creation succeeds or ctx is cancelled.
type FileLocker struct {
	dir string
}

// NewFileLocker creates a FileLocker storing lock files in dir. An
// empty dir falls back to a subdirectory of the system temp dir.
func NewFileLocker(dir string) *FileLocker {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "asgiship-lock")
	}
	return &FileLocker{dir: dir}
}

func (l *FileLocker) Acquire(ctx context.Context, key string) (Lock, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating lock dir %s: %w", l.dir, err)
	}

	path := filepath.Join(l.dir, sanitize(key)+".lock")
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprintf(f, "pid %d\n", os.Getpid())
			f.Close()
			return &fileLock{path: path}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("creating lock file %s: %w", path, err)
		}

		// a holder that crashed without releasing leaves the file
		// behind; reclaim it when its pid is gone
		if holderDead(path) {
			_ = os.Remove(path)
			continue
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock %s (remove %s if its holder is gone): %w", key, path, ctx.Err())
		case <-time.After(pollEvery):
		}
	}
}

// holderDead reports whether the lock file names a pid that no longer
// exists. An unreadable or malformed file counts as live, so only a
// positively dead holder is ever reclaimed.
func holderDead(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "pid %d", &pid); err != nil || pid <= 0 {
		return false
	}
	if pid == os.Getpid() {
		return false
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) != nil
}

type fileLock struct {
	path string
}

func (l *fileLock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("releasing lock %s: %w", l.path, err)
	}
	return nil
}

func sanitize(key string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', ':', '@', ' ':
			return '-'
		}
		return r
	}, key)
}
