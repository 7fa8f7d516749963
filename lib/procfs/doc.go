// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

// Package procfs reads per-process state from /proc.
//
// The tracer inspects processes other than itself: a tracee's working
// directory, descriptor table, and executable image all live in that
// process's /proc entry. Every function takes a pid; pid 0 means "the
// calling process" and uses the self variants, which keep working even
// when /proc/self is masked inside a mount namespace.
package procfs
