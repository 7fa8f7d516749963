// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

// Package process provides binary entrypoint helpers for the sandbox
// daemon and runner binaries. These functions centralize the raw I/O
// that exists before or after the structured logger:
//
//   - Fatal error reporting to stderr when the logger may not be
//     initialized (pre-logger).
//   - Process exit after an unrecoverable error in main().
package process
