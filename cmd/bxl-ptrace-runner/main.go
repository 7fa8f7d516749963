// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

//go:build linux && amd64

// bxl-ptrace-runner attaches to one already-running process and traces
// its whole tree, reporting every file access to the monitor's report
// pipe. One runner per traced process tree; the daemon launches a
// runner for each run request it receives.
//
// The runner learns the report pipe and root pid from the environment
// the build engine set up for the pip (__BUILDXL_REPORTS_PATH,
// __BUILDXL_ROOT_PID); the tracee pid, its image path, and the
// manifest path come from flags, mirroring the daemon's run request.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/Arya96ii/BuildXL/lib/config"
	"github.com/Arya96ii/BuildXL/lib/process"
	"github.com/Arya96ii/BuildXL/lib/version"
	"github.com/Arya96ii/BuildXL/sandbox"
	"github.com/Arya96ii/BuildXL/sandbox/observer"
	"github.com/Arya96ii/BuildXL/sandbox/trace"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("bxl-ptrace-runner", pflag.ContinueOnError)
	controlSocket := flagSet.StringP("control-socket", "c", "", "daemon control socket to notify on completion")
	traceePID := flagSet.IntP("pid", "p", 0, "pid of the process to trace (required)")
	traceeExe := flagSet.StringP("exe", "x", "", "program image path of the tracee")
	manifestPath := flagSet.StringP("manifest", "m", "", "file-access manifest path of the pip")
	showVersion := flagSet.Bool("version", false, "print version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}
	if *showVersion {
		fmt.Printf("bxl-ptrace-runner %s\n", version.Info())
		return nil
	}
	if *traceePID <= 0 {
		return fmt.Errorf("--pid is required")
	}

	logger := newLogger()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	rootPID := *traceePID
	if v := os.Getenv(sandbox.EnvRootPID); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s=%q: %w", sandbox.EnvRootPID, v, err)
		}
		rootPID = parsed
	}
	if *manifestPath == "" {
		*manifestPath = os.Getenv(sandbox.EnvManifestPath)
	}
	if *controlSocket == "" {
		*controlSocket = os.Getenv(sandbox.EnvControlSocket)
	}
	if *controlSocket == "" {
		*controlSocket = cfg.Paths.ControlSocket
	}

	forced := append([]string(nil), cfg.Trace.ForcedProcessNames...)
	if v := os.Getenv(sandbox.EnvForcedProcesses); v != "" {
		for _, name := range strings.Split(v, ";") {
			if name != "" {
				forced = append(forced, name)
			}
		}
	}

	var journal *observer.Journal
	if cfg.Trace.JournalDir != "" {
		journalPath := filepath.Join(cfg.Trace.JournalDir,
			fmt.Sprintf("trace-%d.cbor", *traceePID))
		journal, err = observer.OpenJournal(journalPath, cfg.Trace.JournalCompression == "zstd")
		if err != nil {
			logger.Warn("opening journal failed, tracing without one", "error", err)
		}
	}

	obs, err := observer.New(observer.Options{
		RootPID:            rootPID,
		PipID:              pipID(*manifestPath),
		ReportsPath:        os.Getenv(sandbox.EnvReportsPath),
		Journal:            journal,
		ForcedProcessNames: forced,
		Logger:             logger,
	})
	if err != nil {
		return err
	}
	defer obs.Dispose()

	tracer, err := trace.New(trace.Options{
		Observer:     obs,
		NotifySocket: *controlSocket,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	logger.Info("attaching", "pid", *traceePID, "exe", *traceeExe, "root_pid", rootPID)
	return tracer.AttachToProcess(*traceePID, 0, *traceeExe)
}

// pipID derives the identifier stamped into reports from the manifest
// name. The engine encodes the pip's semistable hash there.
func pipID(manifestPath string) string {
	if manifestPath == "" {
		return ""
	}
	base := filepath.Base(manifestPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
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
