// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package observer

import (
	"debug/elf"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// staticLinkDetector decides whether a binary carries a dynamic libc.
// Binaries that do not cannot be observed by the in-process
// interposition layer and must be traced with ptrace instead.
//
// The determination opens and parses the binary, so results are
// memoized by (mtime, path); a rebuilt binary gets a fresh look.
// Single-threaded by ownership: only the observing thread consults it.
type staticLinkDetector struct {
	forced  []string
	memo    []staticLinkEntry
	inspect func(path string) bool
}

type staticLinkEntry struct {
	mtime  time.Time
	path   string
	static bool
}

func newStaticLinkDetector(forcedNames []string) *staticLinkDetector {
	return &staticLinkDetector{forced: forcedNames, inspect: inspectStaticLink}
}

func (d *staticLinkDetector) isStaticallyLinked(path string) bool {
	name := filepath.Base(path)
	for _, forced := range d.forced {
		if name == forced {
			return true
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	mtime := info.ModTime()

	for i := range d.memo {
		if d.memo[i].path == path && d.memo[i].mtime.Equal(mtime) {
			return d.memo[i].static
		}
	}

	static := d.inspect(path)
	d.memo = append(d.memo, staticLinkEntry{mtime: mtime, path: path, static: static})
	return static
}

// inspectStaticLink reads the ELF dynamic section of path and looks
// for a libc NEEDED entry. No such entry (or no dynamic section at
// all) means statically linked. Non-ELF files (scripts) run through a
// dynamically linked interpreter and report false.
func inspectStaticLink(path string) bool {
	file, err := elf.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	needed, err := file.DynString(elf.DT_NEEDED)
	if err != nil {
		// No dynamic section.
		return true
	}
	for _, lib := range needed {
		if strings.HasPrefix(lib, "libc.so.") || lib == "libc.so" {
			return false
		}
	}
	return true
}
