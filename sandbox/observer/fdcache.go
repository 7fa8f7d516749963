// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package observer

import (
	"strings"
	"sync"

	"github.com/Arya96ii/BuildXL/lib/procfs"
)

// maxCachedFD bounds the descriptor range the fd-to-path cache covers.
// Descriptors above this resolve through proc every time.
const maxCachedFD = 256

// fdCache memoizes fd-to-path resolutions for the observer's own
// process. It is only valid for descriptors in our own table: a trace
// session resolves descriptors belonging to foreign processes, so the
// tracer disables the cache for the whole session at attach time.
type fdCache struct {
	mu      sync.Mutex
	enabled bool
	entries [maxCachedFD]string
}

func newFDCache(enabled bool) *fdCache {
	return &fdCache{enabled: enabled}
}

// disable turns the cache off for the rest of the session and drops
// all entries.
func (c *fdCache) disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = false
	for i := range c.entries {
		c.entries[i] = ""
	}
}

// invalidate clears one slot. Called when a descriptor is known to
// have been reused by an internal open (the report pipe, a journal
// file) so a stale tracee path is never returned for it.
func (c *fdCache) invalidate(fd int) {
	if fd < 0 || fd >= maxCachedFD {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fd] = ""
}

func (c *fdCache) lookup(fd int) (string, bool) {
	if fd < 0 || fd >= maxCachedFD {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled || c.entries[fd] == "" {
		return "", false
	}
	return c.entries[fd], true
}

func (c *fdCache) store(fd int, path string) {
	if fd < 0 || fd >= maxCachedFD {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled {
		c.entries[fd] = path
	}
}

// FDToPath resolves an open file descriptor of pid to the path it
// names. Descriptors for sockets, pipes and anonymous inodes resolve
// to proc's bracketed pseudo-names rather than absolute paths; callers
// skip anything that does not start with a slash.
//
// The cache is consulted only for pid 0, the observer's own process.
// A failed proc read returns the empty string and caches nothing.
func (o *Observer) FDToPath(pid, fd int) string {
	cacheable := pid == 0
	if cacheable {
		if path, ok := o.fds.lookup(fd); ok {
			return path
		}
	}
	path, err := o.fdPath(pid, fd)
	if err != nil {
		return ""
	}
	if cacheable && strings.HasPrefix(path, "/") {
		o.fds.store(fd, path)
	}
	return path
}

// defaultFDPath is the proc-backed resolver installed by New; tests
// substitute their own.
func defaultFDPath(pid, fd int) (string, error) {
	return procfs.FDPath(pid, fd)
}
