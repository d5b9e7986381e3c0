package launch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/asgiship/asgiship/pkg/utils"
)

// Instance is one started server process.
type Instance struct {
	ID        string // instance UUID
	Name      string // container name
	PID       int    // pid of the run process
	LogPath   string // combined stdout/stderr of the server
	StartedAt time.Time

	cmd     *exec.Cmd
	logFile *os.File
}

// Runner starts and supervises a server process for a launch config.
// Implementations never retry; a failed start is final.
type Runner interface {
	// Start launches the process. A Start error means nothing is running.
	Start(ctx context.Context, cfg Config) (*Instance, error)
	// Wait blocks until the process exits and returns its exit code.
	Wait(inst *Instance) (int, error)
	// Signal delivers sig to the process.
	Signal(inst *Instance, sig os.Signal) error
}

// DockerRunner runs the image in the foreground via the docker CLI,
// publishing the bind port and writing server output to a per-instance
// log file.
type DockerRunner struct {
	RunDir string // per-instance directories live here
	Binary string // docker binary, "docker" when empty
}

func NewDockerRunner(runDir string) *DockerRunner {
	return &DockerRunner{RunDir: runDir}
}

func (r *DockerRunner) binary() string {
	if r.Binary != "" {
		return r.Binary
	}
	return "docker"
}

func (r *DockerRunner) Start(ctx context.Context, cfg Config) (*Instance, error) {
	id, err := utils.NewUUID7()
	if err != nil {
		return nil, fmt.Errorf("generate instance id: %w", err)
	}

	name := cfg.Name
	if name == "" {
		name = "asgiship-" + id
	}

	instDir := filepath.Join(r.RunDir, id)
	if err := os.MkdirAll(instDir, 0o755); err != nil {
		return nil, fmt.Errorf("create instance dir: %w", err)
	}

	logPath := filepath.Join(instDir, "server.log")
	logFile, err := os.Create(logPath)
	if err != nil {
		err = errors.Join(err, os.RemoveAll(instDir))
		return nil, fmt.Errorf("create log file: %w", err)
	}

	args := []string{
		"run", "--rm",
		"--name", name,
		"-p", fmt.Sprintf("%d:%d", cfg.Port, cfg.Port),
	}
	for _, e := range cfg.Env {
		args = append(args, "-e", e)
	}
	args = append(args, cfg.Image)
	args = append(args, cfg.Argv()...)

	cmd := exec.Command(r.binary(), args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		err = errors.Join(err, logFile.Close(), os.RemoveAll(instDir))
		return nil, fmt.Errorf("start server process: %w", err)
	}

	return &Instance{
		ID:        id,
		Name:      name,
		PID:       cmd.Process.Pid,
		LogPath:   logPath,
		StartedAt: time.Now(),
		cmd:       cmd,
		logFile:   logFile,
	}, nil
}

// Wait returns the process exit code. A non-zero exit is reported in
// the code, not as an error; errors mean the wait itself failed.
func (r *DockerRunner) Wait(inst *Instance) (int, error) {
	defer func() { _ = inst.logFile.Close() }()

	err := inst.cmd.Wait()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("wait for server process: %w", err)
}

var signalNames = map[os.Signal]string{
	syscall.SIGTERM: "TERM",
	syscall.SIGINT:  "INT",
	syscall.SIGHUP:  "HUP",
	syscall.SIGKILL: "KILL",
}

// Signal delivers sig to the container through the daemon. Signaling
// the run client instead would strand the container on SIGKILL, which
// the client never proxies, leaving it serving the published port with
// no owner.
func (r *DockerRunner) Signal(inst *Instance, sig os.Signal) error {
	name, ok := signalNames[sig]
	if !ok {
		return fmt.Errorf("unsupported signal %v for instance %s", sig, inst.ID)
	}

	out, err := exec.Command(r.binary(), "kill", "--signal", name, inst.Name).CombinedOutput()
	if err != nil {
		return fmt.Errorf("deliver SIG%s to %s: %s: %w", name, inst.Name, strings.TrimSpace(string(out)), err)
	}
	return nil
}
