// Package dockerfile renders the canonical build recipe for a Python
// ASGI service image. The layer order is fixed: base, system packages,
// dependency manifest, application tree, environment, entry point. The
// manifest is copied on its own so editing application code never
// invalidates the dependency-install layer.
package dockerfile

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

// Input is everything a render depends on. Same input, same bytes out.
type Input struct {
	BaseRef        string   // base image reference, digest-pinned when resolved
	WorkDir        string   // image working directory
	SystemPackages []string // apt packages, installed in one atomic layer
	ManifestPath   string   // pip requirements file, relative to context
	AppDir         string   // application source tree, relative to context
	Env            []string // KEY=VALUE pairs baked into the image
	Expose         int      // container port
	Command        []string // exec-form CMD
}

const recipeTemplate = `# syntax=docker/dockerfile:1
FROM {{ .BaseRef }}

WORKDIR {{ .WorkDir }}
{{ if .SystemPackages }}
RUN apt-get update \
    && apt-get install -y --no-install-recommends {{ join .SystemPackages " " }} \
    && rm -rf /var/lib/apt/lists/*
{{ end }}
COPY {{ .ManifestPath }} ./
RUN pip install --no-cache-dir -r {{ base .ManifestPath }}

COPY {{ .AppDir }} ./

ENV {{ env .Env }}

EXPOSE {{ .Expose }}

CMD {{ execForm .Command }}
`

var tmpl = template.Must(template.New("dockerfile").Funcs(template.FuncMap{
	"join": strings.Join,
	"base": func(p string) string {
		if i := strings.LastIndex(p, "/"); i >= 0 {
			return p[i+1:]
		}
		return p
	},
	// values are always quoted so a space or tab cannot split one
	// pair into several
	"env": func(pairs []string) string {
		quoted := make([]string, len(pairs))
		for i, p := range pairs {
			k, v, _ := strings.Cut(p, "=")
			quoted[i] = fmt.Sprintf("%s=%q", k, v)
		}
		return strings.Join(quoted, " \\\n    ")
	},
	"execForm": func(argv []string) (string, error) {
		data, err := json.Marshal(argv)
		if err != nil {
			return "", err
		}
		return string(data), nil
	},
}).Parse(recipeTemplate))

// Render produces the Dockerfile text for in. Rendering is pure; any
// validation belongs to the caller.
func Render(in Input) (string, error) {
	if err := check(in); err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, in); err != nil {
		return "", fmt.Errorf("render recipe: %w", err)
	}

	return sb.String(), nil
}

func check(in Input) error {
	if in.BaseRef == "" {
		return fmt.Errorf("base reference is required")
	}
	if in.WorkDir == "" {
		return fmt.Errorf("workdir is required")
	}
	if in.ManifestPath == "" {
		return fmt.Errorf("manifest path is required")
	}
	if in.AppDir == "" {
		return fmt.Errorf("app dir is required")
	}
	if len(in.Env) == 0 {
		return fmt.Errorf("environment set is required")
	}
	if len(in.Command) == 0 {
		return fmt.Errorf("command is required")
	}
	return nil
}
