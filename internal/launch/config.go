// Package launch owns the runtime half of the recipe: starting the ASGI
// server process for a built image and tracking it through its
// lifecycle. The launch contract is an explicit Config value rather than
// ambient environment state, so the exact server invocation is testable
// without starting anything.
package launch

import (
	"fmt"
	"strconv"
	"strings"
)

// Status is the lifecycle state of a launched server process.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusStarting   Status = "starting"
	StatusServing    Status = "serving"
	StatusTerminated Status = "terminated"
)

// Config is the full launch contract for one server instance: which
// image to run, which ASGI object to serve, and how to bind.
type Config struct {
	Image        string   // image reference to run
	App          string   // ASGI import path, "module.path:attribute"
	Host         string   // bind host inside the container
	Port         int      // bind port; also the published host port
	ProxyHeaders bool     // trust X-Forwarded-* from the upstream proxy
	Env          []string // extra KEY=VALUE pairs for the process
	Name         string   // instance name; generated when empty
}

// Argv returns the exact server invocation for this config.
func (c Config) Argv() []string {
	argv := []string{
		"uvicorn", c.App,
		"--host", c.Host,
		"--port", strconv.Itoa(c.Port),
	}
	if c.ProxyHeaders {
		argv = append(argv, "--proxy-headers")
	}
	return argv
}

// ProbeAddr is the address readiness probes dial. A wildcard bind is
// probed through loopback.
func (c Config) ProbeAddr() string {
	host := c.Host
	if host == "0.0.0.0" || host == "::" || host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("%s:%d", host, c.Port)
}

func (c Config) Validate() error {
	if c.Image == "" {
		return fmt.Errorf("image reference is required")
	}
	module, attr, ok := strings.Cut(c.App, ":")
	if !ok || module == "" || attr == "" {
		return fmt.Errorf("app %q must be of the form module.path:attribute", c.App)
	}
	if c.Host == "" {
		return fmt.Errorf("bind host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("bind port %d out of range", c.Port)
	}
	for _, e := range c.Env {
		if !strings.Contains(e, "=") {
			return fmt.Errorf("environment entry %q is not KEY=VALUE", e)
		}
	}
	return nil
}
