// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

// bxl-ptrace-daemon listens on a Unix datagram control socket for run
// requests and launches one bxl-ptrace-runner per request. Statically
// linked tools cannot be observed from inside the process, so the
// in-process layer asks this daemon to put a ptrace tracer on them
// instead.
//
// The daemon is intentionally thin: it validates requests, spawns
// runners, and reaps them on exit notification. All tracing and
// reporting lives in the runner.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/Arya96ii/BuildXL/lib/config"
	"github.com/Arya96ii/BuildXL/lib/msgqueue"
	"github.com/Arya96ii/BuildXL/lib/process"
	"github.com/Arya96ii/BuildXL/lib/version"
	"github.com/Arya96ii/BuildXL/sandbox"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("bxl-ptrace-daemon", pflag.ContinueOnError)
	socketPath := flagSet.StringP("control-socket", "c", "", "control socket path (default: from config or environment)")
	runnerPath := flagSet.String("runner", "", "path of the runner binary (default: resolved from config)")
	showVersion := flagSet.Bool("version", false, "print version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if *showVersion {
		fmt.Printf("bxl-ptrace-daemon %s\n", version.Info())
		return nil
	}

	logger := newLogger()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	if *socketPath == "" {
		*socketPath = os.Getenv(sandbox.EnvControlSocket)
	}
	if *socketPath == "" {
		*socketPath = cfg.Paths.ControlSocket
	}
	if *socketPath == "" {
		return fmt.Errorf("no control socket configured: set --control-socket, %s, or paths.control_socket", sandbox.EnvControlSocket)
	}

	if *runnerPath == "" {
		resolved, err := cfg.BinaryPath("bxl-ptrace-runner")
		if err != nil {
			return fmt.Errorf("locating runner binary: %w", err)
		}
		*runnerPath = resolved
	}

	d := &daemon{
		socketPath: *socketPath,
		runnerPath: *runnerPath,
		logger:     logger,
		runners:    make(map[int]*exec.Cmd),
	}
	return d.serve()
}

// daemon owns the control socket and the set of live runners, keyed by
// the pid of the process each runner traces.
type daemon struct {
	socketPath string
	runnerPath string
	logger     *slog.Logger

	mu      sync.Mutex
	runners map[int]*exec.Cmd
}

func (d *daemon) serve() error {
	// A stale socket from a crashed daemon would block the bind.
	if err := os.Remove(d.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale control socket: %w", err)
	}

	queue, err := msgqueue.Listen(d.socketPath)
	if err != nil {
		return err
	}
	defer queue.Close()

	// Closing the queue unblocks Receive with an error, which ends
	// the loop.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		d.logger.Info("shutting down", "signal", sig)
		queue.Close()
	}()

	d.logger.Info("listening", "socket", d.socketPath, "runner", d.runnerPath)
	for {
		msg, err := queue.Receive()
		if err != nil {
			d.reapAll()
			return nil
		}
		switch msg.Command {
		case msgqueue.CommandRun:
			if err := d.launchRunner(msg); err != nil {
				d.logger.Error("launching runner failed", "pid", msg.TraceePID, "error", err)
			}
		case msgqueue.CommandExit:
			d.reapRunner(msg.TraceePID)
		default:
			d.logger.Warn("unknown control command", "command", int(msg.Command))
		}
	}
}

// launchRunner starts a runner for one run request. The runner
// inherits the daemon's environment plus the root pid of the request,
// so its reports carry the requesting pip's root even when the daemon
// serves several builds.
func (d *daemon) launchRunner(msg msgqueue.Message) error {
	if msg.TraceePID <= 0 {
		return fmt.Errorf("run request without a tracee pid")
	}

	cmd := exec.Command(d.runnerPath,
		"-c", d.socketPath,
		"-p", strconv.Itoa(msg.TraceePID),
		"-x", msg.Exe,
		"-m", msg.ManifestPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("%s=%d", sandbox.EnvRootPID, rootPIDFor(msg)))

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting runner for pid %d: %w", msg.TraceePID, err)
	}

	d.mu.Lock()
	d.runners[msg.TraceePID] = cmd
	d.mu.Unlock()

	d.logger.Info("runner started",
		"tracee", msg.TraceePID, "parent", msg.ParentPID,
		"exe", msg.Exe, "runner_pid", cmd.Process.Pid)
	return nil
}

// rootPIDFor picks the root pid stamped into the runner's reports. The
// request's parent pid is the in-process layer's view of the pip root;
// absent that, the tracee itself is the root.
func rootPIDFor(msg msgqueue.Message) int {
	if msg.ParentPID > 0 {
		return msg.ParentPID
	}
	return msg.TraceePID
}

// reapRunner waits for the runner tracing pid, if any. Exit
// notifications arrive over the control socket announcing the runner's
// own pid, but runners are keyed by tracee; an unknown pid here is a
// runner's self-announcement and is matched by scanning.
func (d *daemon) reapRunner(pid int) {
	d.mu.Lock()
	cmd, ok := d.runners[pid]
	if !ok {
		for tracee, candidate := range d.runners {
			if candidate.Process != nil && candidate.Process.Pid == pid {
				cmd, ok = candidate, true
				pid = tracee
				break
			}
		}
	}
	if ok {
		delete(d.runners, pid)
	}
	d.mu.Unlock()

	if !ok {
		d.logger.Debug("exit notification for unknown runner", "pid", pid)
		return
	}
	if err := cmd.Wait(); err != nil {
		d.logger.Warn("runner exited with error", "tracee", pid, "error", err)
		return
	}
	d.logger.Info("runner finished", "tracee", pid)
}

// reapAll waits for every live runner during shutdown.
func (d *daemon) reapAll() {
	d.mu.Lock()
	remaining := d.runners
	d.runners = make(map[int]*exec.Cmd)
	d.mu.Unlock()

	for tracee, cmd := range remaining {
		if err := cmd.Wait(); err != nil {
			d.logger.Warn("runner exited with error", "tracee", tracee, "error", err)
		}
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv(sandbox.EnvDebug) != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
