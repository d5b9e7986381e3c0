package build

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Request is one image build handed to the build tool.
type Request struct {
	ContextDir     string // build context root
	DockerfilePath string // rendered recipe, inside the context
	Tag            string // tag for the resulting image
}

// Driver executes an image build. The driver owns the layer cache;
// this package only decides what goes into each layer.
type Driver interface {
	Build(ctx context.Context, req Request) error
}

// DockerDriver shells out to the docker CLI (BuildKit). Build output
// streams to Output so the operator sees layer progress live.
type DockerDriver struct {
	Binary string    // docker binary, "docker" when empty
	Output io.Writer // build log destination, stderr when nil
}

func NewDockerDriver() *DockerDriver {
	return &DockerDriver{}
}

func (d *DockerDriver) Build(ctx context.Context, req Request) error {
	binary := d.Binary
	if binary == "" {
		binary = "docker"
	}
	out := d.Output
	if out == nil {
		out = os.Stderr
	}

	cmd := exec.CommandContext(ctx, binary,
		"build",
		"-f", req.DockerfilePath,
		"-t", req.Tag,
		req.ContextDir,
	)
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("image build for %s: %w", req.Tag, err)
	}

	return nil
}

// RecordingDriver records requests without building anything. It stands
// in for docker in tests.
type RecordingDriver struct {
	Requests []Request
	Err      error
}

func (d *RecordingDriver) Build(ctx context.Context, req Request) error {
	d.Requests = append(d.Requests, req)
	return d.Err
}
