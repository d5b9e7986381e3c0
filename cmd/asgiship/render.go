package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asgiship/asgiship/internal/launch"
	"github.com/asgiship/asgiship/internal/recipe"
	"github.com/asgiship/asgiship/pkg/dockerfile"
	"github.com/asgiship/asgiship/pkg/oci"
)

var renderPin bool

var renderCmd = &cobra.Command{
	Use:   "render [context]",
	Short: "Print the Dockerfile the recipe compiles to",
	Long: `Render prints the canonical Dockerfile for the recipe without
building anything. With --pin the base tag is resolved against its
registry and anchored to a digest, exactly as a build would do.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().BoolVar(&renderPin, "pin", false, "resolve the base tag and pin it by digest")
}

func runRender(cmd *cobra.Command, args []string) error {
	contextDir := "."
	if len(args) == 1 {
		contextDir = args[0]
	}

	rec, err := recipe.LoadOrDefault(recipePath(contextDir))
	if err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	baseRef := rec.Base
	if renderPin {
		base, err := oci.NewRegistryResolver().Resolve(cmd.Context(), rec.Base)
		if err != nil {
			return err
		}
		baseRef = base.Pinned()
	}

	launchCfg := launch.Config{
		App:          rec.Entrypoint.App,
		Host:         rec.Entrypoint.Host,
		Port:         rec.Entrypoint.Port,
		ProxyHeaders: rec.Entrypoint.TrustProxyHeaders(),
	}

	rendered, err := dockerfile.Render(dockerfile.Input{
		BaseRef:        baseRef,
		WorkDir:        rec.WorkDir,
		SystemPackages: rec.SystemPackages,
		ManifestPath:   rec.Manifest,
		AppDir:         rec.AppDir,
		Env:            rec.RuntimeEnv(),
		Expose:         rec.Expose,
		Command:        launchCfg.Argv(),
	})
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}
