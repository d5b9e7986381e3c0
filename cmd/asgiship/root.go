package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/asgiship/asgiship/internal/recipe"
	"github.com/asgiship/asgiship/internal/store"
)

var (
	// Global flags
	recipeFile string
	dbPath     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "asgiship",
	Short: "Deterministic image builds and launches for Python ASGI services",
	Long: `Asgiship compiles a declarative recipe into one deterministic container
image build and one process launch contract for a Python ASGI service.

The recipe fixes the base runtime, the system and language dependency
layers, the application layer, the runtime environment, and the server
entry point (uvicorn binding a host/port with proxy-header trust).
Nothing here retries or restarts; failures surface as non-zero exits
for an external supervisor to act on.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	var exitErr *exitCodeError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&recipeFile, "recipe", "", "recipe file (default: asgiship.yaml in the context)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "build provenance database (default: user cache dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(versionCmd)
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// exitCodeError carries a process exit code through cobra to main.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// openDB opens the provenance database, creating its directory on
// first use. Recording is best effort: on failure the command logs and
// continues without it.
func openDB(cmd *cobra.Command) *sql.DB {
	path := dbPath
	if path == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			slog.Warn("no cache dir, builds will not be recorded", "error", err)
			return nil
		}
		path = filepath.Join(cacheDir, "asgiship", "asgiship.db")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		slog.Warn("cannot create db directory, builds will not be recorded", "error", err)
		return nil
	}

	db, err := store.Open(path)
	if err != nil {
		slog.Warn("cannot open build db, builds will not be recorded", "error", err)
		return nil
	}
	if err := store.InitSchema(cmd.Context(), db); err != nil {
		slog.Warn("cannot init build db schema, builds will not be recorded", "error", err)
		_ = db.Close()
		return nil
	}

	return db
}

// recipePath returns the recipe file location for a context dir.
func recipePath(contextDir string) string {
	if recipeFile != "" {
		return recipeFile
	}
	return filepath.Join(contextDir, recipe.DefaultFile)
}
