package build

import (
	"fmt"

	"github.com/opencontainers/go-digest"
)

// depsKey is the cache key of the dependency-install layer. It covers
// the pinned base, the system package list, and the manifest bytes, and
// deliberately nothing else: application code edits must leave it
// untouched.
func depsKey(base digest.Digest, systemPackages []string, manifest digest.Digest) digest.Digest {
	digester := digest.SHA256.Digester()
	hash := digester.Hash()

	fmt.Fprintf(hash, "base %s\n", base)
	for _, pkg := range systemPackages {
		fmt.Fprintf(hash, "pkg %s\n", pkg)
	}
	fmt.Fprintf(hash, "manifest %s\n", manifest)

	return digester.Digest()
}
