// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package observer

import (
	"strings"

	"golang.org/x/sys/unix"

	"github.com/Arya96ii/BuildXL/sandbox"
)

// NormalizePathAt turns a (dirfd, pathname) pair from a traced syscall
// into a canonical absolute path. Absolute pathnames stand on their
// own; relative ones are anchored at the tracee's working directory
// when dirfd is AT_FDCWD, or at the directory named by dirfd
// otherwise. followFinal controls whether a symlink in the final
// component is expanded (false for readlink, unlink, lstat and
// friends).
//
// Returns the empty string when the base directory cannot be resolved,
// which the caller treats as "skip this report". A tracee can exit
// between the trace-stop and the proc lookup, so this is not an error.
func (o *Observer) NormalizePathAt(pid, dirfd int, pathname string, followFinal bool) string {
	if pathname == "" {
		return ""
	}
	full := pathname
	if pathname[0] != '/' {
		var base string
		if dirfd == unix.AT_FDCWD {
			cwd, err := o.cwd(pid)
			if err != nil {
				o.logger.Warn("cannot resolve working directory", "pid", pid, "error", err)
				return ""
			}
			base = cwd
		} else {
			base = o.FDToPath(pid, dirfd)
			if !strings.HasPrefix(base, "/") {
				o.logger.Warn("cannot resolve base directory descriptor", "pid", pid, "fd", dirfd)
				return ""
			}
		}
		full = base + "/" + pathname
	}
	return o.resolvePath(pid, full, followFinal)
}

// resolvePath canonicalizes an absolute path: collapses "//", "/./"
// and "/../" segments, and expands every symlink encountered on the
// way, emitting a synthetic readlink report for each one so the policy
// layer observes the whole traversal, not only the final target.
//
// A visited set breaks symlink cycles: re-encountering a prefix that
// was already expanded stops resolution with whatever has been built
// so far. Non-absolute input is a caller error; it is logged and
// returned unmodified.
func (o *Observer) resolvePath(pid int, path string, followFinal bool) string {
	if path == "" || path[0] != '/' {
		o.logger.Error("resolve called with non-absolute path", "path", path)
		return path
	}

	buf := newPathBuf(path)
	visited := make(map[string]struct{})
	segStart := 1
	i := 1
	for {
		if i < buf.len() && buf.byteAt(i) != '/' {
			i++
			continue
		}
		atEnd := i == buf.len()

		switch seg := buf.slice(segStart, i); seg {
		case "":
			if atEnd {
				if buf.len() == 1 {
					// The bare root.
					return buf.String()
				}
				// Trailing separator. Drop it and re-scan the last
				// component so it still gets its symlink check.
				buf.shiftLeft(buf.len()-1, buf.len())
				segStart, i = resumeAtLastSegment(buf)
				continue
			}
			// "//": drop the duplicate separator.
			buf.shiftLeft(i, i+1)

		case ".":
			if atEnd {
				start := segStart
				if start > 1 {
					start-- // drop the separator before "." too
				}
				buf.shiftLeft(start, i)
				segStart, i = resumeAtLastSegment(buf)
				continue
			}
			buf.shiftLeft(segStart, i+1)
			i = segStart

		case "..":
			// Drop the previous component as well, clamped at root.
			j := segStart - 2
			for j > 0 && buf.byteAt(j) != '/' {
				j--
			}
			if j < 0 {
				j = 0
			}
			if atEnd {
				start := j
				if start == 0 {
					start = 1
				}
				buf.shiftLeft(start, i)
				segStart, i = resumeAtLastSegment(buf)
				continue
			}
			buf.shiftLeft(j+1, i+1)
			segStart = j + 1
			i = segStart

		default:
			if !atEnd || followFinal {
				prefix := buf.slice(0, i)
				if target, ok := o.readlinkStep(prefix); ok {
					if _, seen := visited[prefix]; seen {
						return buf.String()
					}
					visited[prefix] = struct{}{}
					o.reportSymlinkTraversal(pid, prefix)
					if len(target) > 0 && target[0] == '/' {
						buf.splice(0, i, target)
						segStart, i = 1, 1
					} else {
						buf.splice(segStart, i, target)
						i = segStart
					}
					continue
				}
			}
			if atEnd {
				return buf.String()
			}
			segStart = i + 1
			i = segStart
		}
	}
}

// resumeAtLastSegment repositions the scan at the final segment of
// buf, used after a trailing "." or ".." was removed so the (possibly
// new) final component still gets its symlink check.
func resumeAtLastSegment(buf *pathBuf) (segStart, i int) {
	j := buf.len() - 1
	for j > 0 && buf.byteAt(j) != '/' {
		j--
	}
	return j + 1, buf.len()
}

// readlinkStep reads path as a symlink. ok is false when path is not
// a symlink or cannot be read.
func (o *Observer) readlinkStep(path string) (target string, ok bool) {
	target, err := o.readlink(path)
	if err != nil {
		return "", false
	}
	return target, true
}

// reportSymlinkTraversal emits the synthetic readlink event for a
// symlink expanded during resolution. The path is already canonical up
// to this point, so it bypasses normalization.
func (o *Observer) reportSymlinkTraversal(pid int, path string) {
	if err := o.ReportResolved(pid, sandbox.EventReadlink, path, "", AccessOptions{}); err != nil {
		o.logger.Error("symlink traversal report failed", "path", path, "error", err)
	}
}
