// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

// Package observer turns decoded syscall arguments into access reports
// on the monitor's report pipe.
//
// The [Observer] owns the path resolution and reporting pipeline: it
// canonicalizes raw tracee paths (expanding dot segments and every
// symlink on the way, with cycle protection), resolves file
// descriptors to paths, deduplicates repeated observations through a
// coalescing cache, consults the external policy collaborator, and
// serializes each surviving event into a bounded wire message that
// fits one atomic pipe write.
//
// One Observer serves one trace session. The tracer event loop in
// sandbox/trace is its only caller at runtime and drives it from a
// single thread; the dedupe cache is nevertheless guarded by a
// bounded-wait lock because disposal can race with a late report from
// a cleanup handler.
package observer
