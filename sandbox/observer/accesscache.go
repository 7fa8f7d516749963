// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package observer

import (
	"time"

	"github.com/Arya96ii/BuildXL/sandbox"
)

// cacheLockWait bounds how long a caller waits for the dedupe cache
// lock. The cache can be entered from cleanup contexts where blocking
// indefinitely risks deadlock, so contention degrades to "no caching"
// instead.
const cacheLockWait = time.Millisecond

// accessCache deduplicates repeated identical (event class, path)
// observations so the policy collaborator and the report pipe are not
// hit for every one of the thousands of stats a build tool performs on
// the same file. It grows for the life of the session and is never
// evicted.
type accessCache struct {
	sem  chan struct{}
	seen map[sandbox.EventType]map[string]struct{}
}

func newAccessCache() *accessCache {
	return &accessCache{
		sem:  make(chan struct{}, 1),
		seen: make(map[sandbox.EventType]map[string]struct{}),
	}
}

// isHit records (eventType, path) and reports whether it was already
// present. Two-path events and process lifecycle events are never
// cached: they must always reach the monitor. A false return means
// "report this"; contention on the lock therefore also returns false,
// trading duplicate reports for guaranteed progress.
func (c *accessCache) isHit(eventType sandbox.EventType, path, secondPath string) bool {
	if secondPath != "" {
		return false
	}
	switch eventType {
	case sandbox.EventFork, sandbox.EventExec, sandbox.EventExit, sandbox.EventRename, sandbox.EventLink:
		return false
	}

	select {
	case c.sem <- struct{}{}:
	default:
		timer := time.NewTimer(cacheLockWait)
		select {
		case c.sem <- struct{}{}:
			timer.Stop()
		case <-timer.C:
			return false
		}
	}
	defer func() { <-c.sem }()

	class := eventType.CoalesceKey()
	paths := c.seen[class]
	if paths == nil {
		paths = make(map[string]struct{})
		c.seen[class] = paths
	}
	if _, dup := paths[path]; dup {
		return true
	}
	paths[path] = struct{}{}
	return false
}
