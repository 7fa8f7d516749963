// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

//go:build linux && amd64

package trace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/Arya96ii/BuildXL/lib/msgqueue"
	"github.com/Arya96ii/BuildXL/lib/procfs"
	"github.com/Arya96ii/BuildXL/sandbox"
	"github.com/Arya96ii/BuildXL/sandbox/observer"
)

// ptraceOptions are the seize options for every tracee: seccomp traps
// for syscall interception, clone family events so children are
// adopted before they run, and exit events so terminations are
// reported while /proc entries still exist.
const ptraceOptions = unix.PTRACE_O_TRACESYSGOOD |
	unix.PTRACE_O_TRACESECCOMP |
	unix.PTRACE_O_TRACECLONE |
	unix.PTRACE_O_TRACEFORK |
	unix.PTRACE_O_TRACEVFORK |
	unix.PTRACE_O_TRACEEXIT

// traceeRecord is the per-process registry entry.
type traceeRecord struct {
	pid       int
	parentPID int
	exePath   string
}

// traceeSet tracks the live tracees. It is only touched from the
// tracing thread, so it needs no locking.
type traceeSet struct {
	records map[int]traceeRecord
}

func newTraceeSet() *traceeSet {
	return &traceeSet{records: make(map[int]traceeRecord)}
}

func (s *traceeSet) insert(r traceeRecord) {
	s.records[r.pid] = r
}

func (s *traceeSet) lookup(pid int) (traceeRecord, bool) {
	r, ok := s.records[pid]
	return r, ok
}

func (s *traceeSet) remove(pid int) {
	delete(s.records, pid)
}

func (s *traceeSet) size() int {
	return len(s.records)
}

// Options configures a Tracer.
type Options struct {
	// Observer receives every decoded access.
	Observer *observer.Observer

	// NotifySocket, when non-empty, is the daemon control socket to
	// send a termination message to once the trace drains.
	NotifySocket string

	Logger *slog.Logger
}

// Tracer follows one process tree via seccomp-assisted ptrace. All
// ptrace calls must come from the thread that seized the tracee, so
// AttachToProcess locks its goroutine to an OS thread and runs the
// event loop there until the tree drains.
type Tracer struct {
	obs     *observer.Observer
	logger  *slog.Logger
	tracees *traceeSet

	notifySocket string
	selfPID      int
	selfExe      string

	drained bool
}

// New builds a Tracer around an observer.
func New(opts Options) (*Tracer, error) {
	if opts.Observer == nil {
		return nil, errors.New("trace: observer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	selfExe, err := procfs.Executable(0)
	if err != nil {
		selfExe = ""
	}
	return &Tracer{
		obs:          opts.Observer,
		logger:       logger,
		tracees:      newTraceeSet(),
		notifySocket: opts.NotifySocket,
		selfPID:      os.Getpid(),
		selfExe:      selfExe,
	}, nil
}

// AttachToProcess seizes pid and runs the event loop until pid and
// every descendant spawned under the trace have exited. parentPID and
// exePath come from the run request; zero or empty values fall back
// to the process table. It must not be called twice on the same
// Tracer.
func (t *Tracer) AttachToProcess(pid, parentPID int, exePath string) error {
	// ptrace is thread-affine: every later call must come from the
	// thread that issued the seize.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	// Descriptor tables belong to foreign processes now; the local
	// fd cache would answer for the wrong process.
	t.obs.DisableFDCache()

	defer t.sendTermination()

	if err := seize(pid); err != nil {
		return fmt.Errorf("seizing pid %d: %w", pid, err)
	}
	if err := unix.PtraceInterrupt(pid); err != nil {
		return fmt.Errorf("interrupting pid %d: %w", pid, err)
	}
	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, unix.WALL, nil); err != nil {
		return fmt.Errorf("waiting for initial stop of pid %d: %w", pid, err)
	}

	if exePath == "" {
		if fromProc, err := procfs.Executable(pid); err == nil {
			exePath = fromProc
		}
	}
	if parentPID <= 0 {
		fromProc, err := procfs.ParentPID(pid)
		if err != nil {
			fromProc = sandbox.UnknownParentPID
		}
		parentPID = fromProc
	}
	t.tracees.insert(traceeRecord{pid: pid, parentPID: parentPID, exePath: exePath})

	t.resumeSyscall(pid, 0)
	return t.run()
}

func seize(pid int) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_SEIZE,
		uintptr(pid), 0, uintptr(ptraceOptions), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// run is the wait loop. It returns once every tracee is gone.
func (t *Tracer) run() error {
	var ws unix.WaitStatus
	for !t.drained {
		pid, err := unix.Wait4(-1, &ws, unix.WALL, nil)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("waiting for tracees: %w", err)
		}

		switch {
		case ws.Exited() || ws.Signaled():
			t.retireTracee(pid)
		case ws.Stopped():
			if err := t.handleStop(pid, ws); err != nil {
				return err
			}
		default:
			return fmt.Errorf("malformed wait status %#x for pid %d", uint32(ws), pid)
		}
	}
	return nil
}

// handleStop classifies a ptrace stop and resumes the tracee.
func (t *Tracer) handleStop(pid int, ws unix.WaitStatus) error {
	switch stopEvent(ws) {
	case unix.PTRACE_EVENT_CLONE, unix.PTRACE_EVENT_FORK, unix.PTRACE_EVENT_VFORK:
		return t.handleChildProcess(pid)

	case unix.PTRACE_EVENT_SECCOMP:
		var regs unix.PtraceRegs
		if err := unix.PtraceGetRegs(pid, &regs); err != nil {
			// The tracee can die between the trap and here.
			t.logger.Debug("reading registers failed", "pid", pid, "error", err)
			t.resumeCont(pid, 0)
			return nil
		}
		if err := t.dispatch(pid, &regs); err != nil {
			return err
		}
		// Continue rather than syscall-step: the post-syscall trap
		// carries nothing the handlers have not already captured.
		t.resumeCont(pid, 0)
		return nil

	case unix.PTRACE_EVENT_EXIT:
		// Report now, while /proc/pid is still readable.
		if _, err := unix.PtraceGetEventMsg(pid); err != nil {
			t.logger.Debug("reading exit status failed", "pid", pid, "error", err)
		}
		if err := t.obs.ReportExit(pid); err != nil {
			t.logger.Warn("reporting exit failed", "pid", pid, "error", err)
		}
		t.resumeSyscall(pid, 0)
		return nil

	case unix.PTRACE_EVENT_STOP:
		// Seize interrupt or group stop; the signal in the status is
		// not a delivery and must not be passed back.
		t.resumeSyscall(pid, 0)
		return nil
	}

	t.resumeSyscall(pid, reinjectSignal(ws))
	return nil
}

// stopEvent extracts the ptrace event number from a stopped wait
// status; zero means a plain signal-delivery stop.
func stopEvent(ws unix.WaitStatus) int {
	return int(uint32(ws)>>16) & 0xff
}

// reinjectSignal returns the signal to pass back to the tracee when
// resuming from a stop carrying no ptrace event. Syscall-good traps
// belong to the tracer and are swallowed; everything else, SIGTRAP
// and SIGSTOP included, is a genuine delivery the tracee must see.
func reinjectSignal(ws unix.WaitStatus) int {
	sig := ws.StopSignal()
	if sig == unix.SIGTRAP|0x80 {
		return 0
	}
	return int(sig)
}

// handleChildProcess adopts a freshly cloned or forked child. The
// child is already seized with the parent's options; it only needs a
// registry entry and a fork report before both sides resume.
func (t *Tracer) handleChildProcess(pid int) error {
	msg, err := unix.PtraceGetEventMsg(pid)
	if err != nil {
		t.logger.Warn("reading clone event message failed", "pid", pid, "error", err)
		t.resumeSyscall(pid, 0)
		return nil
	}
	childPID := int(msg)

	parentPID := sandbox.UnknownParentPID
	exePath := t.selfExe
	if rec, ok := t.tracees.lookup(pid); ok {
		parentPID = rec.parentPID
		exePath = rec.exePath
	}

	if err := t.obs.ReportFork(pid, parentPID, childPID, exePath); err != nil {
		t.logger.Warn("reporting fork failed", "pid", pid, "child", childPID, "error", err)
	}
	t.tracees.insert(traceeRecord{pid: childPID, parentPID: pid, exePath: exePath})

	t.resumeSyscall(pid, 0)
	t.resumeSyscall(childPID, 0)
	return nil
}

// retireTracee drops pid from the registry. When the last tracee
// goes, the loop is released and the runner's own exit is reported so
// the monitor sees the session close even if the exit-event stop for
// some tracee was lost.
func (t *Tracer) retireTracee(pid int) {
	t.tracees.remove(pid)
	if t.tracees.size() == 0 {
		t.drained = true
		if err := t.obs.ReportExit(t.selfPID); err != nil {
			t.logger.Warn("reporting tracer exit failed", "error", err)
		}
	}
}

// stepPastSyscall resumes pid to the matching syscall-exit stop and
// returns the syscall's errno. If the tracee dies instead, it is
// retired and 0 is returned.
func (t *Tracer) stepPastSyscall(pid int) int {
	if err := unix.PtraceSyscall(pid, 0); err != nil {
		return 0
	}
	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, unix.WALL, nil); err != nil {
		return 0
	}
	if ws.Exited() || ws.Signaled() {
		t.retireTracee(pid)
		return 0
	}
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return 0
	}
	return Errno(returnValue(&regs))
}

// resumeSyscall resumes pid to the next syscall or event stop,
// delivering sig. A vanished tracee is not an error.
func (t *Tracer) resumeSyscall(pid, sig int) {
	if err := unix.PtraceSyscall(pid, sig); err != nil && err != unix.ESRCH {
		t.logger.Debug("resuming tracee failed", "pid", pid, "error", err)
	}
}

// resumeCont resumes pid without syscall-stepping.
func (t *Tracer) resumeCont(pid, sig int) {
	if err := unix.PtraceCont(pid, sig); err != nil && err != unix.ESRCH {
		t.logger.Debug("resuming tracee failed", "pid", pid, "error", err)
	}
}

// sendTermination tells the daemon this runner is done. Best effort:
// a missing daemon only costs a log line.
func (t *Tracer) sendTermination() {
	if t.notifySocket == "" {
		return
	}
	q, err := msgqueue.Open(t.notifySocket)
	if err != nil {
		t.logger.Warn("opening control socket failed", "path", t.notifySocket, "error", err)
		return
	}
	defer q.Close()
	if err := q.Send(msgqueue.ExitNotification(t.selfPID)); err != nil {
		t.logger.Warn("sending termination failed", "error", err)
	}
}
