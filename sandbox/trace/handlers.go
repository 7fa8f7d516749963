// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

//go:build linux && amd64

package trace

import (
	"strings"

	"golang.org/x/sys/unix"

	"github.com/Arya96ii/BuildXL/sandbox"
	"github.com/Arya96ii/BuildXL/sandbox/observer"
)

// Exec.

func handleExecve(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	pathname := readStringArgument(pid, regs, 0)
	resolved := t.obs.NormalizePathAt(pid, unix.AT_FDCWD, pathname, true)
	return t.reportExec(pid, pathname, resolved)
}

func handleExecveat(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	dirfd := argumentInt(regs, 0)
	pathname := readStringArgument(pid, regs, 1)
	flags := argumentInt(regs, 4)
	follow := flags&unix.AT_SYMLINK_NOFOLLOW == 0
	resolved := t.obs.NormalizePathAt(pid, dirfd, pathname, follow)
	return t.reportExec(pid, pathname, resolved)
}

func (t *Tracer) reportExec(pid int, program, resolved string) error {
	if err := t.obs.ReportExec(pid, program, resolved); err != nil {
		return err
	}
	if resolved != "" && t.obs.IsStaticallyLinked(resolved) {
		return t.obs.ReportStaticallyLinked(pid, resolved)
	}
	return nil
}

// Metadata probes.

func handleStat(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccess(pid, sandbox.EventStat, readStringArgument(pid, regs, 0), observer.AccessOptions{})
}

func handleLstat(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccess(pid, sandbox.EventStat, readStringArgument(pid, regs, 0),
		observer.AccessOptions{NoFollowFinal: true})
}

func handleFstat(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccessFD(pid, argumentInt(regs, 0), sandbox.EventStat, observer.AccessOptions{})
}

func handleFstatat(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	flags := argumentInt(regs, 3)
	return t.obs.ReportAccessAt(pid, argumentInt(regs, 0), sandbox.EventStat,
		readStringArgument(pid, regs, 1),
		observer.AccessOptions{NoFollowFinal: flags&unix.AT_SYMLINK_NOFOLLOW != 0})
}

func handleAccess(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccess(pid, sandbox.EventAccess, readStringArgument(pid, regs, 0), observer.AccessOptions{})
}

func handleFaccessat(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccessAt(pid, argumentInt(regs, 0), sandbox.EventAccess,
		readStringArgument(pid, regs, 1), observer.AccessOptions{})
}

func handleFaccessat2(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	flags := argumentInt(regs, 3)
	return t.obs.ReportAccessAt(pid, argumentInt(regs, 0), sandbox.EventAccess,
		readStringArgument(pid, regs, 1),
		observer.AccessOptions{NoFollowFinal: flags&unix.AT_SYMLINK_NOFOLLOW != 0})
}

func handleNameToHandleAt(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccessAt(pid, argumentInt(regs, 0), sandbox.EventStat,
		readStringArgument(pid, regs, 1), observer.AccessOptions{})
}

// Opens.

func handleCreat(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.reportOpen(pid, unix.AT_FDCWD, readStringArgument(pid, regs, 0),
		unix.O_CREAT|unix.O_WRONLY|unix.O_TRUNC)
}

func handleOpen(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.reportOpen(pid, unix.AT_FDCWD, readStringArgument(pid, regs, 0), argumentInt(regs, 1))
}

func handleOpenat(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.reportOpen(pid, argumentInt(regs, 0), readStringArgument(pid, regs, 1), argumentInt(regs, 2))
}

// reportOpen classifies an open by comparing the path's pre-existence
// against the requested flags: creating flags on a missing path mean
// create, creating or truncating flags with write intent on an
// existing path mean write, anything else is a plain read-intent open.
func (t *Tracer) reportOpen(pid, dirfd int, pathname string, flags int) error {
	resolved := t.obs.NormalizePathAt(pid, dirfd, pathname, flags&unix.O_NOFOLLOW == 0)
	if resolved == "" {
		return nil
	}
	mode := t.obs.PathMode(resolved)
	exists := mode != 0

	accessMode := flags & unix.O_ACCMODE
	writeIntent := accessMode == unix.O_WRONLY || accessMode == unix.O_RDWR
	creating := flags&(unix.O_CREAT|unix.O_TRUNC) != 0

	eventType := sandbox.EventOpen
	switch {
	case !exists && creating:
		eventType = sandbox.EventCreate
	case exists && creating && writeIntent:
		eventType = sandbox.EventWrite
	}
	return t.obs.ReportResolved(pid, eventType, resolved, "", observer.AccessOptions{Mode: mode})
}

// Descriptor-addressed writes.

func handleWriteFD(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccessFD(pid, argumentInt(regs, 0), sandbox.EventWrite, observer.AccessOptions{})
}

func handleSendfile(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccessFD(pid, argumentInt(regs, 0), sandbox.EventWrite, observer.AccessOptions{})
}

func handleCopyFileRange(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccessFD(pid, argumentInt(regs, 2), sandbox.EventWrite, observer.AccessOptions{})
}

// Truncation.

func handleTruncate(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccess(pid, sandbox.EventTruncate, readStringArgument(pid, regs, 0), observer.AccessOptions{})
}

func handleFtruncate(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccessFD(pid, argumentInt(regs, 0), sandbox.EventTruncate, observer.AccessOptions{})
}

// Directory creation and removal. Downstream directory-fingerprint
// caching needs to distinguish a successful mkdir from a failed one,
// so these step past the syscall to capture its result and report with
// deduplication off.

func handleMkdir(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	pathname := readStringArgument(pid, regs, 0)
	errno := t.stepPastSyscall(pid)
	return t.obs.ReportAccess(pid, sandbox.EventCreate, pathname,
		observer.AccessOptions{Errno: errno, DisableCache: true, NoFollowFinal: true})
}

func handleMkdirat(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	dirfd := argumentInt(regs, 0)
	pathname := readStringArgument(pid, regs, 1)
	errno := t.stepPastSyscall(pid)
	return t.obs.ReportAccessAt(pid, dirfd, sandbox.EventCreate, pathname,
		observer.AccessOptions{Errno: errno, DisableCache: true, NoFollowFinal: true})
}

func handleRmdir(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	pathname := readStringArgument(pid, regs, 0)
	errno := t.stepPastSyscall(pid)
	return t.obs.ReportAccess(pid, sandbox.EventUnlink, pathname,
		observer.AccessOptions{Errno: errno, DisableCache: true, NoFollowFinal: true})
}

// Renames decompose into unlink and create events; a directory rename
// expands to one pair per contained entry.

func handleRename(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.reportRename(pid,
		unix.AT_FDCWD, readStringArgument(pid, regs, 0),
		unix.AT_FDCWD, readStringArgument(pid, regs, 1))
}

func handleRenameat(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.reportRename(pid,
		argumentInt(regs, 0), readStringArgument(pid, regs, 1),
		argumentInt(regs, 2), readStringArgument(pid, regs, 3))
}

func (t *Tracer) reportRename(pid, oldDirfd int, oldPath string, newDirfd int, newPath string) error {
	source := t.obs.NormalizePathAt(pid, oldDirfd, oldPath, false)
	dest := t.obs.NormalizePathAt(pid, newDirfd, newPath, false)
	if source == "" || dest == "" {
		return nil
	}

	if t.obs.PathMode(source)&unix.S_IFMT == unix.S_IFDIR {
		for _, entry := range observer.EnumerateDirectory(source) {
			rewritten := dest + strings.TrimPrefix(entry.Path, source)
			if err := t.obs.ReportResolved(pid, sandbox.EventUnlink, entry.Path, "",
				observer.AccessOptions{}); err != nil {
				return err
			}
			if err := t.obs.ReportResolved(pid, sandbox.EventCreate, rewritten, "",
				observer.AccessOptions{}); err != nil {
				return err
			}
		}
		return nil
	}

	if err := t.obs.ReportResolved(pid, sandbox.EventUnlink, source, "",
		observer.AccessOptions{}); err != nil {
		return err
	}
	return t.obs.ReportResolved(pid, sandbox.EventCreate, dest, "",
		observer.AccessOptions{})
}

// Links.

func handleLink(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	source := t.obs.NormalizePathAt(pid, unix.AT_FDCWD, readStringArgument(pid, regs, 0), false)
	dest := t.obs.NormalizePathAt(pid, unix.AT_FDCWD, readStringArgument(pid, regs, 1), false)
	if source == "" || dest == "" {
		return nil
	}
	return t.obs.ReportResolved(pid, sandbox.EventLink, source, dest, observer.AccessOptions{})
}

func handleLinkat(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	flags := argumentInt(regs, 4)
	source := t.obs.NormalizePathAt(pid, argumentInt(regs, 0), readStringArgument(pid, regs, 1),
		flags&unix.AT_SYMLINK_FOLLOW != 0)
	dest := t.obs.NormalizePathAt(pid, argumentInt(regs, 2), readStringArgument(pid, regs, 3), false)
	if source == "" || dest == "" {
		return nil
	}
	return t.obs.ReportResolved(pid, sandbox.EventLink, source, dest, observer.AccessOptions{})
}

func handleSymlink(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccess(pid, sandbox.EventCreate, readStringArgument(pid, regs, 1),
		observer.AccessOptions{NoFollowFinal: true})
}

func handleSymlinkat(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccessAt(pid, argumentInt(regs, 1), sandbox.EventCreate,
		readStringArgument(pid, regs, 2), observer.AccessOptions{NoFollowFinal: true})
}

func handleReadlink(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccess(pid, sandbox.EventReadlink, readStringArgument(pid, regs, 0),
		observer.AccessOptions{NoFollowFinal: true})
}

func handleReadlinkat(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccessAt(pid, argumentInt(regs, 0), sandbox.EventReadlink,
		readStringArgument(pid, regs, 1), observer.AccessOptions{NoFollowFinal: true})
}

// Unlinks report only when the path resolves; an empty resolution
// means the target never existed from the build's point of view.

func handleUnlink(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	resolved := t.obs.NormalizePathAt(pid, unix.AT_FDCWD, readStringArgument(pid, regs, 0), false)
	if resolved == "" {
		return nil
	}
	return t.obs.ReportResolved(pid, sandbox.EventUnlink, resolved, "", observer.AccessOptions{})
}

func handleUnlinkat(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	resolved := t.obs.NormalizePathAt(pid, argumentInt(regs, 0), readStringArgument(pid, regs, 1), false)
	if resolved == "" {
		return nil
	}
	return t.obs.ReportResolved(pid, sandbox.EventUnlink, resolved, "", observer.AccessOptions{})
}

// Timestamps, modes, owners, nodes.

func handleUtime(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccess(pid, sandbox.EventSetTime, readStringArgument(pid, regs, 0), observer.AccessOptions{})
}

func handleUtimensat(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	dirfd := argumentInt(regs, 0)
	pathname := readStringArgument(pid, regs, 1)
	if pathname == "" {
		// NULL pathname: the times apply to dirfd itself.
		return t.obs.ReportAccessFD(pid, dirfd, sandbox.EventSetTime, observer.AccessOptions{})
	}
	flags := argumentInt(regs, 3)
	return t.obs.ReportAccessAt(pid, dirfd, sandbox.EventSetTime, pathname,
		observer.AccessOptions{NoFollowFinal: flags&unix.AT_SYMLINK_NOFOLLOW != 0})
}

func handleFutimesat(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccessAt(pid, argumentInt(regs, 0), sandbox.EventSetTime,
		readStringArgument(pid, regs, 1), observer.AccessOptions{})
}

func handleMknod(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccess(pid, sandbox.EventCreate, readStringArgument(pid, regs, 0),
		observer.AccessOptions{NoFollowFinal: true})
}

func handleMknodat(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccessAt(pid, argumentInt(regs, 0), sandbox.EventCreate,
		readStringArgument(pid, regs, 1), observer.AccessOptions{NoFollowFinal: true})
}

func handleChmod(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccess(pid, sandbox.EventSetMode, readStringArgument(pid, regs, 0), observer.AccessOptions{})
}

func handleFchmod(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccessFD(pid, argumentInt(regs, 0), sandbox.EventSetMode, observer.AccessOptions{})
}

func handleFchmodat(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccessAt(pid, argumentInt(regs, 0), sandbox.EventSetMode,
		readStringArgument(pid, regs, 1), observer.AccessOptions{})
}

func handleChown(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccess(pid, sandbox.EventSetOwner, readStringArgument(pid, regs, 0), observer.AccessOptions{})
}

func handleLchown(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccess(pid, sandbox.EventSetOwner, readStringArgument(pid, regs, 0),
		observer.AccessOptions{NoFollowFinal: true})
}

func handleFchown(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	return t.obs.ReportAccessFD(pid, argumentInt(regs, 0), sandbox.EventSetOwner, observer.AccessOptions{})
}

func handleFchownat(t *Tracer, pid int, regs *unix.PtraceRegs) error {
	flags := argumentInt(regs, 4)
	return t.obs.ReportAccessAt(pid, argumentInt(regs, 0), sandbox.EventSetOwner,
		readStringArgument(pid, regs, 1),
		observer.AccessOptions{NoFollowFinal: flags&unix.AT_SYMLINK_NOFOLLOW != 0})
}
