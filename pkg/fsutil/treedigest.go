package fsutil

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/opencontainers/go-digest"
)

// defaultExcludes are path prefixes that never contribute to a tree
// digest. They match what a build context would ignore anyway.
var defaultExcludes = []string{
	".git",
	"__pycache__",
	".venv",
	"venv",
}

// DigestTree walks root and returns a digest that depends only on the
// relative path, mode bits, and content of every regular file. Two trees
// with identical content digest identically regardless of where they
// live, when they were written, or in which order the filesystem lists
// them. Path segments named in exclude are skipped on top of the
// defaults.
func DigestTree(root string, exclude ...string) (digest.Digest, error) {
	type entry struct {
		rel  string
		mode fs.FileMode
		path string
	}

	var entries []entry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if excluded(rel, exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, entry{rel: filepath.ToSlash(rel), mode: info.Mode().Perm(), path: p})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })

	digester := digest.SHA256.Digester()
	hash := digester.Hash()
	for _, e := range entries {
		fmt.Fprintf(hash, "%s %04o\n", e.rel, e.mode)

		f, err := os.Open(e.path)
		if err != nil {
			return "", fmt.Errorf("open %s: %w", e.path, err)
		}
		_, err = io.Copy(hash, f)
		_ = f.Close()
		if err != nil {
			return "", fmt.Errorf("hash %s: %w", e.path, err)
		}
	}

	return digester.Digest(), nil
}

func excluded(rel string, extra []string) bool {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, part := range parts {
		for _, ex := range defaultExcludes {
			if part == ex {
				return true
			}
		}
		for _, ex := range extra {
			if part == ex {
				return true
			}
		}
	}
	return false
}
