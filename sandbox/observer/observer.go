// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package observer

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/Arya96ii/BuildXL/lib/binhash"
	"github.com/Arya96ii/BuildXL/lib/procfs"
	"github.com/Arya96ii/BuildXL/sandbox"
)

// Options configures an Observer for one trace session.
type Options struct {
	// RootPID is the pid of the root process of the pip, stamped into
	// every report.
	RootPID int

	// PipID identifies the pip/session on the wire.
	PipID string

	// ReportsPath is the monitor's report FIFO. Empty means no sink:
	// reports are still built (and journaled) but not transmitted,
	// which only makes sense in tests and diagnostics runs.
	ReportsPath string

	// Checker is the policy collaborator. Nil defaults to
	// [sandbox.AllowAll].
	Checker sandbox.AccessChecker

	// Journal, when non-nil, receives a copy of every report.
	Journal *Journal

	// CacheFDs enables the fd-to-path cache. Must stay false for
	// trace sessions: descriptors then belong to foreign processes
	// and our own table says nothing about them.
	CacheFDs bool

	// ForcedProcessNames always classify as statically linked,
	// bypassing ELF inspection.
	ForcedProcessNames []string

	Logger *slog.Logger
}

// AccessOptions carries the per-call knobs of a report.
type AccessOptions struct {
	// SecondPath is the other endpoint of a two-path operation.
	SecondPath string

	// Errno is the captured syscall result, for the handlers that
	// single-step past the call to obtain it.
	Errno int

	// Mode overrides the lstat probe when the caller already knows
	// the file mode.
	Mode uint32

	// DisableCache bypasses deduplication so success and failure of
	// the same path are never folded together.
	DisableCache bool

	// NoFollowFinal leaves a symlink in the final component
	// unexpanded during normalization.
	NoFollowFinal bool
}

// Observer is the per-session reporting pipeline. See the package
// comment for the overall shape. All methods are safe for the single
// tracer thread plus a concurrent Dispose.
type Observer struct {
	rootPID int
	pipID   string
	checker sandbox.AccessChecker
	logger  *slog.Logger

	disposed atomic.Bool
	cache    *accessCache
	fds      *fdCache
	static   *staticLinkDetector
	journal  *Journal

	sender *pipeSender

	// Overridable collaborators, swapped by tests to exercise the
	// pipeline without a live tracee or report pipe.
	readlink func(path string) (string, error)
	lstat    func(path string) (uint32, error)
	cwd      func(pid int) (string, error)
	fdPath   func(pid, fd int) (string, error)
	sink     func(data []byte) error
}

// New builds an Observer and opens the report sink if one is
// configured.
func New(opts Options) (*Observer, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	checker := opts.Checker
	if checker == nil {
		checker = sandbox.AllowAll{}
	}

	o := &Observer{
		rootPID:  opts.RootPID,
		pipID:    opts.PipID,
		checker:  checker,
		logger:   logger,
		cache:    newAccessCache(),
		fds:      newFDCache(opts.CacheFDs),
		static:   newStaticLinkDetector(opts.ForcedProcessNames),
		journal:  opts.Journal,
		readlink: defaultReadlink,
		lstat:    defaultLstat,
		cwd:      defaultCwd,
		fdPath:   defaultFDPath,
	}

	if opts.ReportsPath != "" {
		sender, err := newPipeSender(opts.ReportsPath, o.fds)
		if err != nil {
			return nil, err
		}
		o.sender = sender
		o.sink = sender.Send
	} else {
		o.sink = func([]byte) error { return nil }
	}
	return o, nil
}

// DisableFDCache turns off fd-to-path caching for the rest of the
// session. The tracer calls this at attach time.
func (o *Observer) DisableFDCache() {
	o.fds.disable()
}

// Dispose marks the observer as shutting down: the dedupe cache stops
// accepting entries so late reports from cleanup paths always go out,
// and the report sink is closed.
func (o *Observer) Dispose() {
	if o.disposed.Swap(true) {
		return
	}
	if o.journal != nil {
		if err := o.journal.Close(); err != nil {
			o.logger.Warn("closing journal", "error", err)
		}
	}
	if o.sender != nil {
		if err := o.sender.Close(); err != nil {
			o.logger.Warn("closing report sink", "error", err)
		}
	}
}

// ReportAccessAt normalizes (dirfd, pathname) and reports the event.
func (o *Observer) ReportAccessAt(pid, dirfd int, eventType sandbox.EventType, pathname string, opt AccessOptions) error {
	resolved := o.NormalizePathAt(pid, dirfd, pathname, !opt.NoFollowFinal)
	return o.ReportResolved(pid, eventType, resolved, opt.SecondPath, opt)
}

// ReportAccess is ReportAccessAt anchored at the tracee's working
// directory.
func (o *Observer) ReportAccess(pid int, eventType sandbox.EventType, pathname string, opt AccessOptions) error {
	return o.ReportAccessAt(pid, unix.AT_FDCWD, eventType, pathname, opt)
}

// ReportAccessFD reports an operation that only names its target
// through a file descriptor. Descriptors that do not resolve to an
// absolute path (sockets, pipes, anonymous inodes) are silently
// skipped.
func (o *Observer) ReportAccessFD(pid, fd int, eventType sandbox.EventType, opt AccessOptions) error {
	path := o.FDToPath(pid, fd)
	if len(path) == 0 || path[0] != '/' {
		return nil
	}
	return o.ReportResolved(pid, eventType, path, "", opt)
}

// ReportResolved reports an event whose path is already canonical. An
// empty path skips the report. Targets that are neither regular file,
// directory, symlink, nor nonexistent are not tracked.
func (o *Observer) ReportResolved(pid int, eventType sandbox.EventType, path, secondPath string, opt AccessOptions) error {
	if path == "" {
		return nil
	}

	mode := opt.Mode
	if mode == 0 {
		mode = o.PathMode(path)
	}
	if mode != 0 && !trackedMode(mode) {
		return nil
	}

	if !opt.DisableCache && !o.disposed.Load() && o.cache.isHit(eventType, path, secondPath) {
		return nil
	}

	event := &sandbox.Event{
		Type:        eventType,
		Path:        path,
		SecondPath:  secondPath,
		Mode:        mode,
		IsDirectory: mode&unix.S_IFMT == unix.S_IFDIR,
		Errno:       opt.Errno,
		PID:         pid,
	}
	result := o.checker.CheckAccess(event)

	return o.send(&AccessReport{
		Operation:  sandbox.OpFileAccess,
		EventType:  eventType,
		PID:        pid,
		RootPID:    o.rootPID,
		Access:     result.Access,
		Decision:   result.Decision,
		Level:      result.Level,
		Errno:      opt.Errno,
		PipID:      o.pipID,
		Mode:       mode,
		IsDir:      event.IsDirectory,
		Suppressed: result.Checked() && result.Level == sandbox.ReportNever,
		SecondPath: secondPath,
		Path:       path,
	})
}

// ReportExec reports an exec of program by pid. The bare program name
// goes out first, unconditionally, so a process-name event always
// precedes path-dependent events for the same exec; the resolved image
// path follows.
func (o *Observer) ReportExec(pid int, program, resolvedPath string) error {
	if program != "" {
		name := filepath.Base(program)
		if err := o.ReportResolved(pid, sandbox.EventExec, name, "", AccessOptions{DisableCache: true}); err != nil {
			return err
		}
	}
	if resolvedPath == "" {
		return nil
	}
	return o.ReportResolved(pid, sandbox.EventExec, resolvedPath, "", AccessOptions{DisableCache: true})
}

// ReportFork reports the creation of childPID by pid.
func (o *Observer) ReportFork(pid, parentPID, childPID int, exePath string) error {
	event := &sandbox.Event{
		Type:      sandbox.EventFork,
		Path:      exePath,
		ExecPath:  exePath,
		PID:       pid,
		ParentPID: parentPID,
		ChildPID:  childPID,
	}
	result := o.checker.CheckAccess(event)
	return o.send(&AccessReport{
		Operation: sandbox.OpFileAccess,
		EventType: sandbox.EventFork,
		PID:       pid,
		RootPID:   o.rootPID,
		Access:    result.Access,
		Decision:  result.Decision,
		Level:     result.Level,
		PipID:     o.pipID,
		Path:      exePath,
	})
}

// ReportExit notifies the monitor that pid has terminated. This
// bypasses the normal path pipeline entirely.
func (o *Observer) ReportExit(pid int) error {
	return o.send(&AccessReport{
		Operation: sandbox.OpProcessExit,
		EventType: sandbox.EventExit,
		PID:       pid,
		RootPID:   o.rootPID,
		PipID:     o.pipID,
	})
}

// ReportStaticallyLinked tells the monitor that path is about to run
// without the in-process interposition layer, so the ptrace path is
// needed. The binary's content digest rides along so the monitor can
// key on binary identity rather than mtime.
func (o *Observer) ReportStaticallyLinked(pid int, path string) error {
	digest := ""
	if sum, err := binhash.HashFile(path); err == nil {
		digest = binhash.FormatDigest(sum)
	}
	return o.send(&AccessReport{
		Operation: sandbox.OpStaticallyLinkedProcess,
		EventType: sandbox.EventExec,
		PID:       pid,
		RootPID:   o.rootPID,
		PipID:     o.pipID,
		Digest:    digest,
		Path:      path,
	})
}

// ReportDebug sends free-form debug text over the report channel. The
// text is sanitized so it cannot break field framing and may be
// truncated to the wire bound.
func (o *Observer) ReportDebug(pid int, format string, args ...any) error {
	return o.send(&AccessReport{
		Operation: sandbox.OpDebugMessage,
		PID:       pid,
		RootPID:   o.rootPID,
		PipID:     o.pipID,
		Path:      sanitizeDebugText(fmt.Sprintf(format, args...)),
	})
}

// IsStaticallyLinked reports whether the binary at path needs the
// ptrace path (no dynamic libc, or force-listed by name).
func (o *Observer) IsStaticallyLinked(path string) bool {
	return o.static.isStaticallyLinked(path)
}

// PathMode returns the lstat mode of path, or 0 when it does not
// exist or cannot be inspected.
func (o *Observer) PathMode(path string) uint32 {
	mode, err := o.lstat(path)
	if err != nil {
		return 0
	}
	return mode
}

func (o *Observer) send(report *AccessReport) error {
	data, err := report.Encode()
	if err != nil {
		return err
	}
	if o.journal != nil {
		if jerr := o.journal.Append(report); jerr != nil {
			o.logger.Warn("journal append failed", "error", jerr)
		}
	}
	return o.sink(data)
}

// trackedMode reports whether a file mode names something the sandbox
// tracks: regular files, directories and symlinks. Sockets, pipes and
// device nodes are not build inputs or outputs.
func trackedMode(mode uint32) bool {
	switch mode & unix.S_IFMT {
	case unix.S_IFREG, unix.S_IFDIR, unix.S_IFLNK:
		return true
	}
	return false
}

func defaultReadlink(path string) (string, error) {
	return os.Readlink(path)
}

func defaultLstat(path string) (uint32, error) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return 0, err
	}
	return st.Mode, nil
}

func defaultCwd(pid int) (string, error) {
	return procfs.WorkingDirectory(pid)
}
