// Package build compiles a recipe into a container image: it resolves
// and pins the base runtime, renders the canonical Dockerfile, hands
// the build to the image build tool, and records provenance. The
// pipeline is strictly sequential; the first failing step aborts the
// whole build and nothing partial is published.
package build

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/asgiship/asgiship/internal/launch"
	"github.com/asgiship/asgiship/internal/recipe"
	"github.com/asgiship/asgiship/internal/store"
	"github.com/asgiship/asgiship/pkg/dockerfile"
	"github.com/asgiship/asgiship/pkg/fsutil"
	"github.com/asgiship/asgiship/pkg/lock"
	"github.com/asgiship/asgiship/pkg/oci"
	"github.com/asgiship/asgiship/pkg/pyreq"
)

// DockerfileName is the rendered recipe's filename inside the build
// context. A hand-written Dockerfile is never touched.
const DockerfileName = "Dockerfile.asgiship"

// Options parameterize one build.
type Options struct {
	ContextDir string        // build context root
	Recipe     recipe.Recipe // validated before anything runs
	Tag        string        // overrides Recipe.Image when set
}

// Result describes a completed build.
type Result struct {
	Image          string         // tag the image was built as
	Base           *oci.BaseImage // resolved, pinned base
	DepsKey        digest.Digest  // dependency layer cache key
	AppKey         digest.Digest  // application layer cache key
	DockerfilePath string         // rendered recipe location
	Requirements   int            // packages in the manifest
	Duration       time.Duration
}

// Builder wires the build pipeline together. The provenance db is
// optional; without it builds simply go unrecorded.
type Builder struct {
	resolver oci.BaseResolver
	driver   Driver
	db       *sql.DB
	locker   lock.Locker
	logger   *slog.Logger
}

func NewBuilder(resolver oci.BaseResolver, driver Driver, db *sql.DB, locker lock.Locker) *Builder {
	if locker == nil {
		locker = lock.NewNoOpLocker()
	}
	return &Builder{
		resolver: resolver,
		driver:   driver,
		db:       db,
		locker:   locker,
		logger:   slog.Default(),
	}
}

// Build runs the pipeline and records the attempt, failed or not.
func (b *Builder) Build(ctx context.Context, opts Options) (*Result, error) {
	startTime := time.Now()

	tag := opts.Tag
	if tag == "" {
		tag = opts.Recipe.Image
	}
	if tag == "" {
		return nil, fmt.Errorf("image tag is required (set image in the recipe or pass --tag)")
	}

	// Concurrent builds of the same tag would race over the rendered
	// recipe file in the context, so hold a lock for the pipeline.
	buildLock, err := b.locker.Acquire(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("acquire build lock: %w", err)
	}
	defer buildLock.Release()

	result, err := b.run(ctx, tag, opts)
	b.record(ctx, tag, result, err, time.Since(startTime))
	if err != nil {
		return nil, err
	}

	result.Duration = time.Since(startTime)
	b.logger.InfoContext(ctx, "build completed", "image", tag, "duration", result.Duration)
	return result, nil
}

// run executes the steps in order: validate recipe, parse manifest,
// verify entry module, resolve base, render the recipe, write it
// atomically, compute layer keys, drive the build. On error the
// returned result carries whatever was computed so far, for the
// provenance record only.
func (b *Builder) run(ctx context.Context, tag string, opts Options) (*Result, error) {
	r := opts.Recipe
	logger := b.logger.With("image", tag)

	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recipe: %w", err)
	}

	manifest, err := pyreq.Load(filepath.Join(opts.ContextDir, r.Manifest))
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "manifest parsed", "requirements", len(manifest.Requirements))

	appDir := filepath.Join(opts.ContextDir, r.AppDir)
	if err := verifyEntryModule(appDir, r.Entrypoint.App); err != nil {
		return nil, err
	}

	base, err := b.resolver.Resolve(ctx, r.Base)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "base resolved", "base", base.Reference, "digest", base.Digest)

	appKey, err := fsutil.DigestTree(appDir, DockerfileName)
	if err != nil {
		return nil, fmt.Errorf("digest application tree: %w", err)
	}

	launchCfg := launch.Config{
		App:          r.Entrypoint.App,
		Host:         r.Entrypoint.Host,
		Port:         r.Entrypoint.Port,
		ProxyHeaders: r.Entrypoint.TrustProxyHeaders(),
	}

	rendered, err := dockerfile.Render(dockerfile.Input{
		BaseRef:        base.Pinned(),
		WorkDir:        r.WorkDir,
		SystemPackages: r.SystemPackages,
		ManifestPath:   filepath.ToSlash(r.Manifest),
		AppDir:         filepath.ToSlash(r.AppDir),
		Env:            r.RuntimeEnv(),
		Expose:         r.Expose,
		Command:        launchCfg.Argv(),
	})
	if err != nil {
		return nil, err
	}

	dockerfilePath := filepath.Join(opts.ContextDir, DockerfileName)
	if err := fsutil.WriteFileAtomic(dockerfilePath, []byte(rendered), 0o644); err != nil {
		return nil, fmt.Errorf("write rendered recipe: %w", err)
	}

	result := &Result{
		Image:          tag,
		Base:           base,
		DepsKey:        depsKey(base.Digest, r.SystemPackages, manifest.Digest),
		AppKey:         appKey,
		DockerfilePath: dockerfilePath,
		Requirements:   len(manifest.Requirements),
	}

	b.logCacheExpectation(ctx, logger, tag, result)

	logger.InfoContext(ctx, "building image", "dockerfile", dockerfilePath)
	if err := b.driver.Build(ctx, Request{
		ContextDir:     opts.ContextDir,
		DockerfilePath: dockerfilePath,
		Tag:            tag,
	}); err != nil {
		return result, err
	}

	return result, nil
}

// logCacheExpectation compares layer keys with the previous build of
// the same tag, making cache reuse (or invalidation) visible.
func (b *Builder) logCacheExpectation(ctx context.Context, logger *slog.Logger, tag string, result *Result) {
	if b.db == nil {
		return
	}

	prev, err := store.LatestBuild(ctx, b.db, tag)
	if err != nil || prev == nil {
		return
	}

	logger.InfoContext(ctx, "layer cache expectation",
		"deps_layer_reusable", prev.DepsKey == result.DepsKey.String(),
		"app_layer_reusable", prev.AppKey == result.AppKey.String())
}

func (b *Builder) record(ctx context.Context, tag string, result *Result, buildErr error, duration time.Duration) {
	if b.db == nil {
		return
	}

	rec := &store.BuildRecord{
		Image:    tag,
		Status:   store.StatusSucceeded,
		Duration: duration,
	}
	if result != nil && result.Base != nil {
		rec.BaseRef = result.Base.Pinned()
		rec.BaseDigest = result.Base.Digest.String()
		rec.DepsKey = result.DepsKey.String()
		rec.AppKey = result.AppKey.String()
	}
	if buildErr != nil {
		rec.Status = store.StatusFailed
		msg := buildErr.Error()
		rec.Error = &msg
	}

	if err := store.InsertBuild(ctx, b.db, rec); err != nil {
		b.logger.WarnContext(ctx, "failed to record build", "error", err)
	}
}

// verifyEntryModule checks that the module half of the entry import
// path exists as a file in the application tree, so a typo fails the
// build instead of the container's first start. The attribute half can
// only be resolved by the Python runtime.
func verifyEntryModule(appDir, app string) error {
	module, _, ok := strings.Cut(app, ":")
	if !ok {
		return fmt.Errorf("entrypoint app %q must be of the form module.path:attribute", app)
	}

	rel := filepath.Join(strings.Split(module, ".")...)
	candidates := []string{
		filepath.Join(appDir, rel+".py"),
		filepath.Join(appDir, rel, "__init__.py"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return nil
		}
	}

	return fmt.Errorf("entry module %q not found in %s (looked for %s.py and %s/__init__.py)",
		module, appDir, rel, rel)
}
