package launch

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/asgiship/asgiship/pkg/utils"
)

const (
	defaultReadyTimeout = 30 * time.Second
	defaultGracePeriod  = 10 * time.Second
	defaultPollEvery    = 100 * time.Millisecond
)

// Result describes a finished launch.
type Result struct {
	Instance *Instance
	ExitCode int
	Served   bool // whether the server ever reached serving
}

// Options tune launch supervision. Zero values pick defaults.
type Options struct {
	ReadyTimeout time.Duration // how long the socket may take to bind
	GracePeriod  time.Duration // SIGTERM-to-SIGKILL window on shutdown
	PollEvery    time.Duration // readiness poll interval
}

func (o Options) withDefaults() Options {
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = defaultReadyTimeout
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = defaultGracePeriod
	}
	if o.PollEvery <= 0 {
		o.PollEvery = defaultPollEvery
	}
	return o
}

// Launcher drives one server instance through its lifecycle:
//
//	not_started -> starting -> serving -> terminated
//
// A failed bind or unresolvable app import never reaches serving; the
// process exit surfaces as a non-zero code and no retry happens here.
// Restart policy belongs to whatever supervises the container.
type Launcher struct {
	runner Runner
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	status Status
}

func NewLauncher(runner Runner, opts Options) *Launcher {
	return &Launcher{
		runner: runner,
		opts:   opts.withDefaults(),
		logger: slog.Default(),
		status: StatusNotStarted,
	}
}

// Status returns the current lifecycle state.
func (l *Launcher) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

func (l *Launcher) setStatus(s Status) {
	l.mu.Lock()
	l.status = s
	l.mu.Unlock()
}

type exitEvent struct {
	code int
	err  error
}

// Run launches cfg and blocks until the server terminates. Cancelling
// ctx triggers graceful shutdown: SIGTERM, then SIGKILL after the grace
// period. The returned result carries the process exit code; zero only
// when the server shut down cleanly on an external signal.
func (l *Launcher) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid launch config: %w", err)
	}

	logger := l.logger.With("image", cfg.Image, "app", cfg.App)

	l.setStatus(StatusStarting)
	logger.InfoContext(ctx, "starting server", "host", cfg.Host, "port", cfg.Port, "proxy_headers", cfg.ProxyHeaders)

	inst, err := l.runner.Start(ctx, cfg)
	if err != nil {
		l.setStatus(StatusTerminated)
		return nil, fmt.Errorf("launch: %w", err)
	}
	logger = logger.With("instance", inst.ID, "pid", inst.PID)

	exitCh := make(chan exitEvent, 1)
	go func() {
		code, err := l.runner.Wait(inst)
		exitCh <- exitEvent{code: code, err: err}
	}()

	readyCtx, cancelReady := context.WithTimeout(ctx, l.opts.ReadyTimeout)
	defer cancelReady()
	readyCh := make(chan error, 1)
	go func() {
		readyCh <- utils.WaitForTCP(readyCtx, cfg.ProbeAddr(), l.opts.PollEvery)
	}()

	select {
	case ev := <-exitCh:
		// Exited before the socket was ever reachable: bind conflict,
		// missing app object, or another startup error. Zero requests
		// were served.
		return l.startupExit(ctx, logger, inst, ev)

	case err := <-readyCh:
		if err != nil {
			logger.ErrorContext(ctx, "server never became ready", "error", err)
			_ = l.runner.Signal(inst, syscall.SIGKILL)
			<-exitCh
			l.setStatus(StatusTerminated)
			return nil, fmt.Errorf("launch: %w", err)
		}

		// The accepting socket may belong to a process that already
		// held the port. A server that has exited by now never owned it.
		select {
		case ev := <-exitCh:
			return l.startupExit(ctx, logger, inst, ev)
		default:
		}
	}

	l.setStatus(StatusServing)
	logger.InfoContext(ctx, "server serving", "addr", cfg.ProbeAddr())

	select {
	case ev := <-exitCh:
		l.setStatus(StatusTerminated)
		if ev.err != nil {
			return nil, fmt.Errorf("launch: %w", ev.err)
		}
		if ev.code != 0 {
			// A probe address that still accepts connections with the
			// server gone means readiness came from a listener that was
			// never ours. This server failed during startup behind a
			// port conflict.
			if portHeld(cfg.ProbeAddr()) {
				logger.ErrorContext(ctx, "port held by another process", "addr", cfg.ProbeAddr(), "exit_code", ev.code)
				return &Result{Instance: inst, ExitCode: ev.code},
					fmt.Errorf("server exited with code %d while %s is held by another process", ev.code, cfg.ProbeAddr())
			}
			logger.ErrorContext(ctx, "server exited", "exit_code", ev.code)
			return &Result{Instance: inst, ExitCode: ev.code, Served: true},
				fmt.Errorf("server exited with code %d", ev.code)
		}
		logger.InfoContext(ctx, "server exited", "exit_code", ev.code)
		return &Result{Instance: inst, ExitCode: ev.code, Served: true}, nil

	case <-ctx.Done():
		logger.Info("termination signal received, stopping server")
		ev := l.shutdown(inst, exitCh)
		l.setStatus(StatusTerminated)
		if ev.err != nil {
			return nil, fmt.Errorf("launch: %w", ev.err)
		}
		logger.Info("server stopped", "exit_code", ev.code)
		return &Result{Instance: inst, ExitCode: ev.code, Served: true}, nil
	}
}

// startupExit reports a server that terminated without ever serving.
func (l *Launcher) startupExit(ctx context.Context, logger *slog.Logger, inst *Instance, ev exitEvent) (*Result, error) {
	l.setStatus(StatusTerminated)
	if ev.err != nil {
		return nil, fmt.Errorf("launch: %w", ev.err)
	}
	logger.ErrorContext(ctx, "server exited during startup", "exit_code", ev.code)
	return &Result{Instance: inst, ExitCode: ev.code},
		fmt.Errorf("server exited during startup with code %d", ev.code)
}

// portHeld reports whether addr still accepts connections.
func portHeld(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, 250*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// shutdown delivers SIGTERM and escalates to SIGKILL after the grace
// period. Request draining is the server's own business.
func (l *Launcher) shutdown(inst *Instance, exitCh <-chan exitEvent) exitEvent {
	_ = l.runner.Signal(inst, syscall.SIGTERM)

	select {
	case ev := <-exitCh:
		return ev
	case <-time.After(l.opts.GracePeriod):
		_ = l.runner.Signal(inst, syscall.SIGKILL)
		return <-exitCh
	}
}
