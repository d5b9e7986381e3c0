// Package fsutil provides the filesystem primitives shared by the build
// pipeline: atomic file publication and stable content digests over
// directory trees.
package fsutil

import (
	"fmt"
	"os"
	"path"
)

// WriteFileAtomic writes data to filePath via a temp file and rename, so
// readers either see the old content or the new content, never a partial
// write. Atomicity holds only within a single filesystem.
func WriteFileAtomic(filePath string, data []byte, perm os.FileMode) error {
	dir := path.Dir(filePath)
	tmp, err := os.CreateTemp(dir, ".asgiship-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	writeErr := func() error {
		if err := tmp.Chmod(perm); err != nil {
			return err
		}
		if _, err := tmp.Write(data); err != nil {
			return err
		}
		return tmp.Sync()
	}()
	if closeErr := tmp.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		return fmt.Errorf("write temp file: %w", writeErr)
	}

	if err := os.Rename(tmpName, filePath); err != nil {
		return fmt.Errorf("publish %s: %w", filePath, err)
	}

	// fsync the directory so the rename survives power loss
	dfd, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer dfd.Close()
	return dfd.Sync()
}
