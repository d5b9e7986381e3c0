package oci

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"
)

func TestNormalizeRef(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bare image defaults to docker.io library",
			input: "python:3.11-slim",
			want:  "docker.io/library/python:3.11-slim",
		},
		{
			name:  "owner qualified defaults to docker.io",
			input: "tiangolo/uvicorn-gunicorn:latest",
			want:  "docker.io/tiangolo/uvicorn-gunicorn:latest",
		},
		{
			name:  "full reference unchanged",
			input: "docker.io/library/python:3.11-slim",
			want:  "docker.io/library/python:3.11-slim",
		},
		{
			name:  "ghcr reference unchanged",
			input: "ghcr.io/owner/repo:v1.0",
			want:  "ghcr.io/owner/repo:v1.0",
		},
		{
			name:  "localhost registry unchanged",
			input: "localhost:5000/base:latest",
			want:  "localhost:5000/base:latest",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeRef(tt.input)
			if got != tt.want {
				t.Errorf("normalizeRef(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestBaseImagePinned(t *testing.T) {
	base := &BaseImage{
		Reference: "index.docker.io/library/python:3.11-slim",
		Digest:    digest.FromString("base"),
	}

	pinned := base.Pinned()
	if !strings.HasPrefix(pinned, base.Reference+"@sha256:") {
		t.Errorf("Pinned() = %q, want tag@digest form", pinned)
	}
}

func TestFixedResolver(t *testing.T) {
	ctx := context.Background()

	resolver := &FixedResolver{}
	base, err := resolver.Resolve(ctx, "python:3.11-slim")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if base.Digest == "" {
		t.Error("resolved digest is empty")
	}

	boom := errors.New("manifest unknown")
	resolver = &FixedResolver{Err: boom}
	if _, err := resolver.Resolve(ctx, "python:does-not-exist"); !errors.Is(err, boom) {
		t.Errorf("Resolve error = %v, want %v", err, boom)
	}
}
