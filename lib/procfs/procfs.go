// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package procfs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// WorkingDirectory returns the current working directory of pid, or of
// the calling process when pid is 0.
func WorkingDirectory(pid int) (string, error) {
	if pid == 0 {
		directory, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("reading own working directory: %w", err)
		}
		return directory, nil
	}
	directory, err := os.Readlink(fmt.Sprintf("/proc/%d/cwd", pid))
	if err != nil {
		return "", fmt.Errorf("reading cwd of pid %d: %w", pid, err)
	}
	return directory, nil
}

// FDPath resolves an open file descriptor of pid to the path it names.
// For descriptors that are not files (pipes, sockets, anonymous
// inodes) the kernel reports a "type:[inode]" token instead of an
// absolute path; callers distinguish the two by the leading slash.
func FDPath(pid, fd int) (string, error) {
	var link string
	if pid == 0 {
		link = fmt.Sprintf("/proc/self/fd/%d", fd)
	} else {
		link = fmt.Sprintf("/proc/%d/fd/%d", pid, fd)
	}
	path, err := os.Readlink(link)
	if err != nil {
		return "", fmt.Errorf("resolving fd %d of pid %d: %w", fd, pid, err)
	}
	return path, nil
}

// ParentPID returns the parent pid of pid as recorded in
// /proc/pid/stat. The comm field there is parenthesized and may
// itself contain spaces or parens, so parsing anchors on the last
// closing paren.
func ParentPID(pid int) (int, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, fmt.Errorf("reading stat of pid %d: %w", pid, err)
	}
	stat := string(data)
	end := strings.LastIndexByte(stat, ')')
	if end < 0 {
		return 0, fmt.Errorf("malformed stat of pid %d", pid)
	}
	fields := strings.Fields(stat[end+1:])
	if len(fields) < 2 {
		return 0, fmt.Errorf("malformed stat of pid %d", pid)
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, fmt.Errorf("malformed stat of pid %d: %w", pid, err)
	}
	return ppid, nil
}

// Executable returns the path of the program image pid is running, or
// of the calling process when pid is 0. The link keeps pointing at the
// original image even if the file has since been replaced on disk.
func Executable(pid int) (string, error) {
	var link string
	if pid == 0 {
		link = "/proc/self/exe"
	} else {
		link = fmt.Sprintf("/proc/%d/exe", pid)
	}
	path, err := os.Readlink(link)
	if err != nil {
		return "", fmt.Errorf("resolving executable of pid %d: %w", pid, err)
	}
	return path, nil
}
