// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package sandbox

// Environment variables shared between the daemon, the runner, and the
// traced process. The names are part of the contract with the build
// engine that launches the sandbox; do not rename them.
const (
	// EnvManifestPath points at the file-access manifest describing
	// policy for this pip. Parsed by the external policy engine, not
	// by this repository.
	EnvManifestPath = "__BUILDXL_FAM_PATH"

	// EnvReportsPath is the path of the report sink (a FIFO opened by
	// the monitor) that access reports are written to.
	EnvReportsPath = "__BUILDXL_REPORTS_PATH"

	// EnvRootPID carries the pid of the root process of the pip.
	EnvRootPID = "__BUILDXL_ROOT_PID"

	// EnvControlSocket names the daemon's control socket that run
	// requests and exit notifications are sent to.
	EnvControlSocket = "__BUILDXL_PTRACE_MQ_NAME"

	// EnvForcedProcesses is a semicolon-separated list of program
	// names that must always be traced with ptrace, bypassing the
	// statically-linked detection.
	EnvForcedProcesses = "__BUILDXL_PTRACE_FORCED_PROCESSES"

	// EnvDebug enables debug logging in the daemon and runner when
	// set to any non-empty value.
	EnvDebug = "BXL_SANDBOX_DEBUG"
)
