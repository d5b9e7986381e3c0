package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/asgiship/asgiship/internal/launch"
	"github.com/asgiship/asgiship/internal/recipe"
	"github.com/asgiship/asgiship/pkg/utils"
)

var (
	runImage        string
	runName         string
	runEnv          []string
	runReadyTimeout time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run [context]",
	Short: "Launch the built service image",
	Long: `Run starts the ASGI server process for the built image, publishing
the recipe's port and trusting proxy headers as configured. The command
blocks while the server serves and exits with the server's own exit
code; SIGINT/SIGTERM trigger a graceful shutdown. A failed bind or a
missing application object exits non-zero with no retry.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runImage, "image", "i", "", "image to run (overrides the recipe)")
	runCmd.Flags().StringVar(&runName, "name", "", "container name (generated when empty)")
	runCmd.Flags().StringArrayVarP(&runEnv, "env", "e", nil, "extra KEY=VALUE for the server process")
	runCmd.Flags().DurationVar(&runReadyTimeout, "ready-timeout", 30*time.Second, "how long the server may take to bind its port")
}

func runRun(cmd *cobra.Command, args []string) error {
	contextDir := "."
	if len(args) == 1 {
		contextDir = args[0]
	}

	rec, err := recipe.LoadOrDefault(recipePath(contextDir))
	if err != nil {
		return err
	}

	image := runImage
	if image == "" {
		image = rec.Image
	}
	if image == "" {
		return fmt.Errorf("image reference is required (set image in the recipe or pass --image)")
	}

	cfg := launch.Config{
		Image:        image,
		App:          rec.Entrypoint.App,
		Host:         rec.Entrypoint.Host,
		Port:         rec.Entrypoint.Port,
		ProxyHeaders: rec.Entrypoint.TrustProxyHeaders(),
		Env:          runEnv,
		Name:         runName,
	}

	runner := launch.NewDockerRunner(runDir())
	launcher := launch.NewLauncher(runner, launch.Options{ReadyTimeout: runReadyTimeout})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := launcher.Run(ctx, cfg)
	dumpServerLog(cmd, result)
	if err != nil {
		if result != nil && result.ExitCode != 0 {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			return &exitCodeError{code: result.ExitCode}
		}
		return err
	}

	if result.ExitCode != 0 {
		return &exitCodeError{code: result.ExitCode}
	}
	return nil
}

// dumpServerLog replays the server's output after it terminates, the
// way an operator would want it on the console.
func dumpServerLog(cmd *cobra.Command, result *launch.Result) {
	if result == nil || result.Instance == nil {
		return
	}

	// bounded replay; late stragglers are not worth blocking the exit
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fmt.Fprintln(cmd.OutOrStdout(), "---- server log ----")
	_ = utils.TailPollUntilIdle(ctx, result.Instance.LogPath, cmd.OutOrStdout(), 500*time.Millisecond, 20*time.Millisecond)
}

func runDir() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "asgiship", "run")
	}
	return filepath.Join(cacheDir, "asgiship", "run")
}
