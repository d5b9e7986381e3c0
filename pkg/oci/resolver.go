// Package oci talks to container registries: it resolves the base image
// a build assumes and publishes the built image. Layer content is never
// pulled here; only manifests move.
package oci

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/opencontainers/go-digest"
)

// BaseImage is a resolved base runtime: the normalized tag plus the
// manifest digest it pointed at when the build started.
type BaseImage struct {
	Reference string        // normalized tag reference, e.g. "index.docker.io/library/python:3.11-slim"
	Digest    digest.Digest // manifest digest at resolution time
	MediaType string
}

// Pinned returns the digest-anchored reference used in the rendered
// recipe, so a rebuild sees the exact same base even if the tag moves.
func (b *BaseImage) Pinned() string {
	return b.Reference + "@" + b.Digest.String()
}

// BaseResolver resolves a base image tag against its registry. An
// unresolvable tag must fail before any subsequent build step runs.
type BaseResolver interface {
	Resolve(ctx context.Context, imageRef string) (*BaseImage, error)
}

// RegistryResolver resolves tags via go-containerregistry.
//
// References may be short ("python:3.11-slim") or fully qualified
// ("ghcr.io/owner/repo:tag"); short references default to docker.io.
type RegistryResolver struct{}

func NewRegistryResolver() *RegistryResolver {
	return &RegistryResolver{}
}

// Resolve fetches the manifest descriptor for imageRef. Only the
// manifest is transferred; layers stay in the registry.
func (r *RegistryResolver) Resolve(ctx context.Context, imageRef string) (*BaseImage, error) {
	ref, err := name.ParseReference(normalizeRef(imageRef))
	if err != nil {
		return nil, fmt.Errorf("invalid base reference %q: %w", imageRef, err)
	}

	platform, err := v1.ParsePlatform(fmt.Sprintf("linux/%s", runtime.GOARCH))
	if err != nil {
		return nil, fmt.Errorf("parse platform: %w", err)
	}

	desc, err := remote.Get(ref, remote.WithContext(ctx), remote.WithPlatform(*platform))
	if err != nil {
		return nil, fmt.Errorf("resolve base %s: %w", ref, err)
	}

	return &BaseImage{
		Reference: ref.Context().Name() + ":" + tagOf(ref),
		Digest:    digest.Digest(desc.Digest.String()),
		MediaType: string(desc.MediaType),
	}, nil
}

// normalizeRef prepends the docker.io default for short references.
func normalizeRef(imageRef string) string {
	if !strings.Contains(imageRef, "/") {
		return "docker.io/library/" + imageRef
	}
	first := strings.Split(imageRef, "/")[0]
	if !strings.Contains(first, ".") && !strings.Contains(first, ":") {
		return "docker.io/" + imageRef
	}
	return imageRef
}

func tagOf(ref name.Reference) string {
	if tag, ok := ref.(name.Tag); ok {
		return tag.TagStr()
	}
	return "latest"
}

// FixedResolver returns a canned result and never touches the network.
// It stands in for a registry in tests.
type FixedResolver struct {
	Image *BaseImage
	Err   error
}

func (r *FixedResolver) Resolve(ctx context.Context, imageRef string) (*BaseImage, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	if r.Image != nil {
		return r.Image, nil
	}
	return &BaseImage{
		Reference: "index.docker.io/library/python:3.11-slim",
		Digest:    digest.FromString(imageRef),
		MediaType: "application/vnd.oci.image.index.v1+json",
	}, nil
}
