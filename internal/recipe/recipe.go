// Package recipe defines the declarative build-and-launch recipe for a
// Python ASGI service image and its validation rules. A recipe is the
// only input the build pipeline accepts; everything the image does at
// runtime is fixed here at build time.
package recipe

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// DefaultBase is the runtime baseline every build assumes unless the
	// recipe overrides it.
	DefaultBase = "python:3.11-slim"

	// DefaultWorkDir is where the application tree lands inside the image
	// and what PYTHONPATH points at.
	DefaultWorkDir = "/app"

	DefaultManifest = "requirements.txt"
	DefaultPort     = 8000
	DefaultHost     = "0.0.0.0"
	DefaultApp      = "app.main:app"
)

// Entrypoint is the process launch contract: which ASGI object to load
// and how the server binds.
type Entrypoint struct {
	App          string `yaml:"app"`           // import path, "module.sub:attr"
	Host         string `yaml:"host"`          // bind host
	Port         int    `yaml:"port"`          // bind port
	ProxyHeaders *bool  `yaml:"proxy_headers"` // trust X-Forwarded-* from the upstream proxy
}

// TrustProxyHeaders reports the proxy-header directive, defaulting to on.
func (e Entrypoint) TrustProxyHeaders() bool {
	return e.ProxyHeaders == nil || *e.ProxyHeaders
}

// Recipe describes one deterministic image build: base runtime, system
// packages, dependency manifest, application tree, runtime environment,
// and the entry point.
type Recipe struct {
	Image          string            `yaml:"image"`           // tag for the built image
	Base           string            `yaml:"base"`            // base image tag
	SystemPackages []string          `yaml:"system_packages"` // apt packages for native extension builds
	Manifest       string            `yaml:"manifest"`        // pip requirements file, relative to context
	AppDir         string            `yaml:"app_dir"`         // application source tree, relative to context
	WorkDir        string            `yaml:"workdir"`         // image working directory
	Env            map[string]string `yaml:"env"`             // extra environment, fixed at build time
	Expose         int               `yaml:"expose"`          // container port to expose
	Entrypoint     Entrypoint        `yaml:"entrypoint"`
}

// Default returns the recipe matching the canonical service image: slim
// Python base, requirements.txt manifest, uvicorn serving app.main:app
// on 0.0.0.0:8000 with proxy headers trusted.
func Default() Recipe {
	return Recipe{
		Base:           DefaultBase,
		SystemPackages: []string{"build-essential"},
		Manifest:       DefaultManifest,
		AppDir:         ".",
		WorkDir:        DefaultWorkDir,
		Expose:         DefaultPort,
		Entrypoint: Entrypoint{
			App:  DefaultApp,
			Host: DefaultHost,
			Port: DefaultPort,
		},
	}
}

// RuntimeEnv returns the full environment baked into the image: the
// module-resolution root, the unbuffered-output flag, then any recipe
// extras in sorted order so rendering is deterministic.
func (r Recipe) RuntimeEnv() []string {
	env := []string{
		"PYTHONPATH=" + r.WorkDir,
		"PYTHONUNBUFFERED=1",
	}

	keys := make([]string, 0, len(r.Env))
	for k := range r.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+r.Env[k])
	}

	return env
}

// Validate checks every field a build or render depends on. It runs
// before any build step, so a bad recipe never produces partial output.
func (r Recipe) Validate() error {
	if r.Base == "" {
		return fmt.Errorf("base image tag is required")
	}
	if r.Manifest == "" {
		return fmt.Errorf("dependency manifest path is required")
	}
	if strings.HasPrefix(r.Manifest, "/") {
		return fmt.Errorf("manifest path %q must be relative to the build context", r.Manifest)
	}
	if r.AppDir == "" {
		return fmt.Errorf("application directory is required")
	}
	if r.WorkDir == "" || !strings.HasPrefix(r.WorkDir, "/") {
		return fmt.Errorf("workdir %q must be an absolute path", r.WorkDir)
	}
	if r.Expose < 1 || r.Expose > 65535 {
		return fmt.Errorf("expose port %d out of range", r.Expose)
	}
	for _, pkg := range r.SystemPackages {
		if strings.TrimSpace(pkg) == "" || strings.ContainsAny(pkg, " \t\n;&|") {
			return fmt.Errorf("invalid system package name %q", pkg)
		}
	}
	for k, v := range r.Env {
		if k == "" || strings.ContainsAny(k, "= \t\n") {
			return fmt.Errorf("invalid environment variable name %q", k)
		}
		if strings.ContainsAny(v, "\n\r\x00") {
			return fmt.Errorf("environment variable %s has a control character in its value", k)
		}
	}
	return r.Entrypoint.validate()
}

func (e Entrypoint) validate() error {
	module, attr, ok := strings.Cut(e.App, ":")
	if !ok || module == "" || attr == "" {
		return fmt.Errorf("entrypoint app %q must be of the form module.path:attribute", e.App)
	}
	for _, part := range strings.Split(module, ".") {
		if part == "" {
			return fmt.Errorf("entrypoint app %q has an empty module segment", e.App)
		}
	}
	if e.Host == "" {
		return fmt.Errorf("entrypoint host is required")
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("entrypoint port %d out of range", e.Port)
	}
	return nil
}
