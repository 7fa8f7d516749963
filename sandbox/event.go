// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package sandbox

import "fmt"

// EventType classifies a semantic file-access event. The set is closed:
// every traced syscall maps onto one of these kinds, and the dedupe
// cache coalesces several of them into shared buckets (see
// [EventType.CoalesceKey]).
type EventType int

const (
	// EventOpen is a read-intent open of an existing path.
	EventOpen EventType = iota

	// EventCreate is the creation of a new filesystem entry (file,
	// directory, symlink, or device node).
	EventCreate

	// EventWrite is a content mutation of an existing file, including
	// opens with write intent and truncation through a descriptor.
	EventWrite

	// EventTruncate is an explicit path-based truncation.
	EventTruncate

	// EventReadlink is the observation of a symlink's target, either
	// from an explicit readlink call or synthesized by the path
	// resolver for every symlink it traverses.
	EventReadlink

	// EventUnlink is the removal of a filesystem entry.
	EventUnlink

	// EventLink is the creation of a hard link (two paths).
	EventLink

	// EventRename is a rename observed as a single two-path event.
	// The ptrace dispatcher decomposes renames into unlink+create
	// pairs instead, but the type exists so that the interposition
	// sandbox and the cache share one vocabulary.
	EventRename

	// EventSetMode is a permission-bits change.
	EventSetMode

	// EventSetOwner is an ownership change.
	EventSetOwner

	// EventSetTime is a timestamp change.
	EventSetTime

	// EventSetAttr is an extended-attribute or ACL mutation.
	EventSetAttr

	// EventStat is a metadata probe.
	EventStat

	// EventGetAttr is an extended-attribute or attribute-list read.
	EventGetAttr

	// EventAccess is a permission probe.
	EventAccess

	// EventExec is the execution of a program image.
	EventExec

	// EventFork is the creation of a child process.
	EventFork

	// EventExit is the termination of a process.
	EventExit
)

var eventTypeNames = map[EventType]string{
	EventOpen:     "open",
	EventCreate:   "create",
	EventWrite:    "write",
	EventTruncate: "truncate",
	EventReadlink: "readlink",
	EventUnlink:   "unlink",
	EventLink:     "link",
	EventRename:   "rename",
	EventSetMode:  "setmode",
	EventSetOwner: "setowner",
	EventSetTime:  "settime",
	EventSetAttr:  "setattr",
	EventStat:     "stat",
	EventGetAttr:  "getattr",
	EventAccess:   "access",
	EventExec:     "exec",
	EventFork:     "fork",
	EventExit:     "exit",
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("eventtype(%d)", int(t))
}

// CoalesceKey maps an event type to its deduplication bucket. Metadata
// mutations share one bucket and metadata reads another, so that (for
// example) a chmod following a write to the same path is suppressed as
// a duplicate. All other types key on themselves.
func (t EventType) CoalesceKey() EventType {
	switch t {
	case EventTruncate, EventSetAttr, EventSetOwner, EventSetMode,
		EventWrite, EventSetTime:
		return EventWrite
	case EventGetAttr, EventAccess, EventStat:
		return EventStat
	default:
		return t
	}
}

// UnknownParentPID is the sentinel parent pid recorded when the tracee
// registry has no entry for a reporting process. It marks "parent
// unknown", never real ancestry: pid 0 is the kernel's swapper and can
// not be a tracee's parent.
const UnknownParentPID = 0

// Event is the normalized, path-resolved representation of a raw
// syscall invocation. Events are immutable once constructed: handlers
// build one, hand it to the observer, and never touch it again.
type Event struct {
	// Type classifies the operation.
	Type EventType

	// Path is the canonical absolute primary path.
	Path string

	// SecondPath is the second endpoint for two-path operations
	// (link, rename); empty otherwise.
	SecondPath string

	// ExecPath is the path of the executing program image. For exec
	// events this is the new image; for everything else the image of
	// the process performing the operation.
	ExecPath string

	// Mode holds the file-type and permission bits of Path as
	// reported by lstat, or 0 when the path did not exist or was
	// never probed.
	Mode uint32

	// IsDirectory records whether Path names a directory.
	IsDirectory bool

	// Errno is the syscall's error result when the handler captured
	// it (mkdir/rmdir families), 0 otherwise.
	Errno int

	// PID is the process that performed the operation.
	PID int

	// ParentPID is the parent of PID, or [UnknownParentPID].
	ParentPID int

	// ChildPID is the created process for fork events, 0 otherwise.
	ChildPID int
}
