// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

// Package sandbox defines the shared vocabulary of the process
// interception core: semantic file-access events, access-check results,
// and the interfaces through which the tracer and observer talk to the
// external policy engine and monitor process.
//
// The interception machinery itself lives in subpackages:
//
//   - sandbox/trace attaches to a process tree with seccomp-assisted
//     ptrace and decodes trapped syscalls into [Event] values.
//   - sandbox/observer canonicalizes paths, deduplicates repeated
//     observations, and serializes access reports to the monitor.
//
// Everything in this package is plain data. The policy engine that
// turns an [Event] into an allow/deny verdict is an external
// collaborator reached through the [AccessChecker] interface; this
// repository only defines how an operation is detected, named, and
// handed over.
package sandbox
