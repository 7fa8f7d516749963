// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

// Package trace owns the ptrace side of the sandbox: attaching to a
// root tracee, consuming kernel trace stops, decoding syscall
// arguments from registers and tracee memory, and dispatching each
// trapped syscall to a handler that feeds the observer.
//
// The traced process installs a seccomp filter before exec
// ([InstallTraceFilter]) that turns the syscalls of interest into
// trace stops; everything else runs at full speed. The [Tracer] then
// services the whole descendant tree from a single locked OS thread,
// because the kernel only accepts ptrace commands from the thread that
// attached.
//
// This package is Linux/amd64 only: syscall numbers, register layout
// and the seccomp architecture check are tied to that ABI.
package trace
