// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

//go:build linux && amd64

package trace

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// seccompData field offsets (struct seccomp_data).
const (
	seccompDataNR   = 0
	seccompDataArch = 4
)

// Filter return actions, from linux/seccomp.h.
const (
	seccompRetTrace = 0x7ff00000
	seccompRetAllow = 0x7fff0000
)

// buildTraceFilter assembles the BPF program that turns each listed
// syscall into a PTRACE_EVENT_SECCOMP stop and lets everything else
// run unimpeded. Foreign-architecture syscalls (x32, compat) are
// allowed through untraced rather than guessed at.
func buildTraceFilter(numbers []int) []unix.SockFilter {
	filter := []unix.SockFilter{
		{Code: unix.BPF_LD | unix.BPF_W | unix.BPF_ABS, K: seccompDataArch},
		{Code: unix.BPF_JMP | unix.BPF_JEQ | unix.BPF_K, Jt: 1, Jf: 0, K: unix.AUDIT_ARCH_X86_64},
		{Code: unix.BPF_RET | unix.BPF_K, K: seccompRetAllow},
		{Code: unix.BPF_LD | unix.BPF_W | unix.BPF_ABS, K: seccompDataNR},
	}
	for _, nr := range numbers {
		filter = append(filter,
			unix.SockFilter{Code: unix.BPF_JMP | unix.BPF_JEQ | unix.BPF_K, Jt: 0, Jf: 1, K: uint32(nr)},
			unix.SockFilter{Code: unix.BPF_RET | unix.BPF_K, K: seccompRetTrace},
		)
	}
	return append(filter, unix.SockFilter{Code: unix.BPF_RET | unix.BPF_K, K: seccompRetAllow})
}

// InstallTraceFilter prepares the calling process for tracing: allows
// tracerPID to attach, drops the ability to regain privileges, and
// installs the seccomp trace filter. Called by the to-be-traced
// process after fork and before exec; any failure here is fatal to the
// launch, since running the pip untraced would silently under-report.
func InstallTraceFilter(tracerPID int) error {
	if err := unix.Prctl(unix.PR_SET_PTRACER, uintptr(tracerPID), 0, 0, 0); err != nil {
		return fmt.Errorf("PR_SET_PTRACER %d: %w", tracerPID, err)
	}
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("PR_SET_NO_NEW_PRIVS: %w", err)
	}

	filter := buildTraceFilter(TracedSyscalls())
	program := unix.SockFprog{
		Len:    uint16(len(filter)),
		Filter: &filter[0],
	}
	if err := unix.Prctl(unix.PR_SET_SECCOMP, unix.SECCOMP_MODE_FILTER,
		uintptr(unsafe.Pointer(&program)), 0, 0); err != nil {
		return fmt.Errorf("installing seccomp trace filter: %w", err)
	}
	return nil
}
