package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asgiship/asgiship/internal/build"
	"github.com/asgiship/asgiship/internal/recipe"
	"github.com/asgiship/asgiship/pkg/lock"
	"github.com/asgiship/asgiship/pkg/oci"
)

var (
	buildTag  string
	buildPush bool
	buildSave string
)

var buildCmd = &cobra.Command{
	Use:   "build [context]",
	Short: "Build the service image from the recipe",
	Long: `Build resolves and pins the base runtime, renders the canonical
Dockerfile into the build context, and drives the image build. Layers
are ordered for cache reuse: editing application code never invalidates
the dependency-install layer.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVarP(&buildTag, "tag", "t", "", "image tag (overrides the recipe)")
	buildCmd.Flags().BoolVar(&buildPush, "push", false, "push the built image to its registry")
	buildCmd.Flags().StringVar(&buildSave, "save", "", "also save the built image to an OCI tarball at this path")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	contextDir := "."
	if len(args) == 1 {
		contextDir = args[0]
	}

	rec, err := recipe.LoadOrDefault(recipePath(contextDir))
	if err != nil {
		return err
	}

	db := openDB(cmd)
	if db != nil {
		defer db.Close()
	}

	builder := build.NewBuilder(oci.NewRegistryResolver(), build.NewDockerDriver(), db, lock.NewFileLocker(""))
	result, err := builder.Build(ctx, build.Options{
		ContextDir: contextDir,
		Recipe:     rec,
		Tag:        buildTag,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Built %s\n", result.Image)
	fmt.Fprintf(cmd.OutOrStdout(), "  base:     %s\n", result.Base.Pinned())
	fmt.Fprintf(cmd.OutOrStdout(), "  deps key: %s\n", result.DepsKey)
	fmt.Fprintf(cmd.OutOrStdout(), "  app key:  %s\n", result.AppKey)

	if buildSave != "" {
		if err := oci.SaveTarball(ctx, result.Image, buildSave); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s to %s\n", result.Image, buildSave)
	}

	if buildPush {
		if err := oci.Push(ctx, result.Image); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pushed %s\n", result.Image)
	}

	return nil
}
