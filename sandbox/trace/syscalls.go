// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

//go:build linux && amd64

package trace

import (
	"sort"

	"golang.org/x/sys/unix"
)

// handlerFunc decodes one trapped syscall and feeds the observer.
// Handlers read pre-call argument state; the few that need the return
// value single-step past the call themselves.
type handlerFunc func(t *Tracer, pid int, regs *unix.PtraceRegs) error

// syscallHandlers is the closed dispatch table. The seccomp filter is
// derived from its keys, so a syscall traps if and only if a handler
// exists for it.
var syscallHandlers = map[int]handlerFunc{
	unix.SYS_EXECVE:   handleExecve,
	unix.SYS_EXECVEAT: handleExecveat,

	unix.SYS_STAT:       handleStat,
	unix.SYS_LSTAT:      handleLstat,
	unix.SYS_FSTAT:      handleFstat,
	unix.SYS_NEWFSTATAT: handleFstatat,

	unix.SYS_ACCESS:     handleAccess,
	unix.SYS_FACCESSAT:  handleFaccessat,
	unix.SYS_FACCESSAT2: handleFaccessat2,

	unix.SYS_CREAT:  handleCreat,
	unix.SYS_OPEN:   handleOpen,
	unix.SYS_OPENAT: handleOpenat,

	unix.SYS_WRITE:    handleWriteFD,
	unix.SYS_WRITEV:   handleWriteFD,
	unix.SYS_PWRITE64: handleWriteFD,
	unix.SYS_PWRITEV:  handleWriteFD,
	unix.SYS_PWRITEV2: handleWriteFD,

	unix.SYS_TRUNCATE:  handleTruncate,
	unix.SYS_FTRUNCATE: handleFtruncate,

	unix.SYS_MKDIR:   handleMkdir,
	unix.SYS_MKDIRAT: handleMkdirat,
	unix.SYS_RMDIR:   handleRmdir,

	unix.SYS_RENAME:    handleRename,
	unix.SYS_RENAMEAT:  handleRenameat,
	unix.SYS_RENAMEAT2: handleRenameat,

	unix.SYS_LINK:   handleLink,
	unix.SYS_LINKAT: handleLinkat,

	unix.SYS_UNLINK:   handleUnlink,
	unix.SYS_UNLINKAT: handleUnlinkat,

	unix.SYS_SYMLINK:   handleSymlink,
	unix.SYS_SYMLINKAT: handleSymlinkat,

	unix.SYS_READLINK:   handleReadlink,
	unix.SYS_READLINKAT: handleReadlinkat,

	unix.SYS_UTIME:     handleUtime,
	unix.SYS_UTIMES:    handleUtime,
	unix.SYS_UTIMENSAT: handleUtimensat,
	unix.SYS_FUTIMESAT: handleFutimesat,

	unix.SYS_MKNOD:   handleMknod,
	unix.SYS_MKNODAT: handleMknodat,

	unix.SYS_CHMOD:    handleChmod,
	unix.SYS_FCHMOD:   handleFchmod,
	unix.SYS_FCHMODAT: handleFchmodat,

	unix.SYS_CHOWN:    handleChown,
	unix.SYS_LCHOWN:   handleLchown,
	unix.SYS_FCHOWN:   handleFchown,
	unix.SYS_FCHOWNAT: handleFchownat,

	unix.SYS_SENDFILE:        handleSendfile,
	unix.SYS_COPY_FILE_RANGE: handleCopyFileRange,

	unix.SYS_NAME_TO_HANDLE_AT: handleNameToHandleAt,
}

// TracedSyscalls returns the sorted syscall numbers the seccomp
// filter traps.
func TracedSyscalls() []int {
	numbers := make([]int, 0, len(syscallHandlers))
	for nr := range syscallHandlers {
		numbers = append(numbers, nr)
	}
	sort.Ints(numbers)
	return numbers
}

// dispatch routes a trapped syscall to its handler. Numbers without a
// handler should not trap at all given the filter is derived from the
// table; if one does, it is logged and ignored.
func (t *Tracer) dispatch(pid int, regs *unix.PtraceRegs) error {
	nr := syscallNumber(regs)
	handler, ok := syscallHandlers[nr]
	if !ok {
		t.logger.Debug("unhandled syscall trapped", "pid", pid, "syscall", nr)
		return nil
	}
	return handler(t, pid, regs)
}
