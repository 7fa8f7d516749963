// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

// Package msgqueue implements the daemon control channel: a Unix
// datagram socket carrying small pipe-delimited ASCII messages.
//
// A newly interposed process that needs tracing sends a run request
// ("0|pid|ppid|exe|manifest") and blocks until a runner attaches. A
// runner that finishes tracing sends an exit notification ("1|pid") so
// the daemon can release its bookkeeping for that tracee.
//
// Datagram sockets preserve message boundaries, so a message is
// delivered whole or not at all and concurrent senders never
// interleave. Messages are capped at [MaxMessageSize] bytes.
package msgqueue
