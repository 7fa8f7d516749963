// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

//go:build linux && amd64

package trace

import (
	"bytes"
	"fmt"

	"golang.org/x/sys/unix"
)

// maxSyscallArgs is the ABI limit; only syscalls with at most six
// relevant arguments are traced, so an out-of-range index is a
// programming error, not a runtime condition.
const maxSyscallArgs = 6

// syscallNumber returns the trapped syscall's number. Orig_rax holds
// it even after the kernel has scribbled the (eventual) return value
// into Rax.
func syscallNumber(regs *unix.PtraceRegs) int {
	return int(regs.Orig_rax)
}

// returnValue returns the raw syscall result register.
func returnValue(regs *unix.PtraceRegs) uint64 {
	return regs.Rax
}

// argument returns syscall argument idx in ABI order
// (rdi, rsi, rdx, r10, r8, r9).
func argument(regs *unix.PtraceRegs, idx int) uint64 {
	switch idx {
	case 0:
		return regs.Rdi
	case 1:
		return regs.Rsi
	case 2:
		return regs.Rdx
	case 3:
		return regs.R10
	case 4:
		return regs.R8
	case 5:
		return regs.R9
	}
	panic(fmt.Sprintf("trace: syscall argument index %d out of range", idx))
}

// argumentInt returns argument idx sign-extended from its 32-bit form,
// for descriptor arguments (AT_FDCWD is -100 and arrives as
// 0xffffff9c in the low register half).
func argumentInt(regs *unix.PtraceRegs, idx int) int {
	return int(int32(argument(regs, idx)))
}

// Errno converts a raw return register into a positive errno. The
// kernel encodes failure as a small negative number in two's
// complement; non-negative returns mean success.
func Errno(raw uint64) int {
	v := int64(raw)
	if v >= 0 {
		return 0
	}
	return int(-v)
}

// stringReadChunk is the step size for tracee memory reads. Small
// enough that overshooting a string's terminating NUL rarely crosses
// into an unmapped page.
const stringReadChunk = 64

// readTraceeString reads a NUL-terminated string from the tracee's
// memory at addr, bounded by the platform path length. A failed read
// partway through truncates at the bytes read so far rather than
// failing: foreign memory can be unmapped mid-read in pathological
// cases, and a truncated path only costs one skipped report.
func readTraceeString(pid int, addr uint64) string {
	if addr == 0 {
		return ""
	}
	buf := make([]byte, 0, stringReadChunk)
	var chunk [stringReadChunk]byte
	for len(buf) < unix.PathMax {
		n, err := unix.PtracePeekData(pid, uintptr(addr)+uintptr(len(buf)), chunk[:])
		if n > 0 {
			if i := bytes.IndexByte(chunk[:n], 0); i >= 0 {
				return string(append(buf, chunk[:i]...))
			}
			buf = append(buf, chunk[:n]...)
		}
		if err != nil || n == 0 {
			return string(buf)
		}
	}
	return string(buf[:unix.PathMax])
}

// readStringArgument reads the string pointed to by syscall argument
// idx.
func readStringArgument(pid int, regs *unix.PtraceRegs, idx int) string {
	return readTraceeString(pid, argument(regs, idx))
}
