// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package observer

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/Arya96ii/BuildXL/sandbox"
)

func TestResolveCanonicalPathUnchanged(t *testing.T) {
	world := &fakeWorld{}
	o := newTestObserver(t, world, Options{})

	for _, path := range []string{"/", "/a", "/a/b/c", "/usr/lib/libm.so.6"} {
		if got := o.resolvePath(1, path, true); got != path {
			t.Errorf("resolvePath(%q) = %q, want unchanged", path, got)
		}
	}
	if len(world.reports) != 0 {
		t.Fatalf("no symlink reports expected, got %d", len(world.reports))
	}
}

func TestResolveDotSegments(t *testing.T) {
	world := &fakeWorld{}
	o := newTestObserver(t, world, Options{})

	cases := map[string]string{
		"/a/./b/../c": "/a/c",
		"/a//b":       "/a/b",
		"/a///b//":    "/a/b",
		"/./a":        "/a",
		"/..":         "/",
		"/../a":       "/a",
		"/a/b/..":     "/a",
		"/a/.":        "/a",
		"/a/":         "/a",
		"/.":          "/",
	}
	for input, want := range cases {
		if got := o.resolvePath(1, input, true); got != want {
			t.Errorf("resolvePath(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestResolveSymlinkExpansion(t *testing.T) {
	world := &fakeWorld{symlinks: map[string]string{"/a": "/b"}}
	o := newTestObserver(t, world, Options{})

	if got := o.resolvePath(1, "/a/c", true); got != "/b/c" {
		t.Fatalf("resolvePath(/a/c) = %q, want /b/c", got)
	}
	readlinks := world.pathsOf(sandbox.EventReadlink)
	if len(readlinks) != 1 || readlinks[0] != "/a" {
		t.Fatalf("expected exactly one synthetic readlink for /a, got %v", readlinks)
	}
}

func TestResolveTrailingSeparatorFollowsSymlink(t *testing.T) {
	world := &fakeWorld{symlinks: map[string]string{"/a": "/b"}}
	o := newTestObserver(t, world, Options{})

	// A trailing separator names the same file as the bare path; the
	// final component is still subject to symlink expansion.
	if got := o.resolvePath(1, "/a/", true); got != "/b" {
		t.Fatalf("resolvePath(/a/) = %q, want /b", got)
	}
	readlinks := world.pathsOf(sandbox.EventReadlink)
	if len(readlinks) != 1 || readlinks[0] != "/a" {
		t.Fatalf("expected exactly one synthetic readlink for /a, got %v", readlinks)
	}
}

func TestResolveRelativeSymlink(t *testing.T) {
	world := &fakeWorld{symlinks: map[string]string{"/dir/link": "sub/real"}}
	o := newTestObserver(t, world, Options{})

	if got := o.resolvePath(1, "/dir/link/f", true); got != "/dir/sub/real/f" {
		t.Fatalf("resolvePath = %q, want /dir/sub/real/f", got)
	}
}

func TestResolveSymlinkChain(t *testing.T) {
	world := &fakeWorld{symlinks: map[string]string{
		"/a": "/b",
		"/b": "/c",
	}}
	o := newTestObserver(t, world, Options{})

	if got := o.resolvePath(1, "/a", true); got != "/c" {
		t.Fatalf("resolvePath(/a) = %q, want /c", got)
	}
	readlinks := world.pathsOf(sandbox.EventReadlink)
	if len(readlinks) != 2 {
		t.Fatalf("expected readlink reports for /a and /b, got %v", readlinks)
	}
}

func TestResolveCycleTerminates(t *testing.T) {
	world := &fakeWorld{symlinks: map[string]string{"/x": "/x"}}
	o := newTestObserver(t, world, Options{})

	// Must terminate, returning whatever was built so far.
	if got := o.resolvePath(1, "/x", true); got != "/x" {
		t.Fatalf("resolvePath(/x) = %q, want /x", got)
	}
}

func TestResolveMutualCycleTerminates(t *testing.T) {
	world := &fakeWorld{symlinks: map[string]string{
		"/p": "/q",
		"/q": "/p",
	}}
	o := newTestObserver(t, world, Options{})

	got := o.resolvePath(1, "/p/tail", true)
	if got == "" {
		t.Fatal("cycle resolution returned empty path")
	}
}

func TestResolveNoFollowFinal(t *testing.T) {
	world := &fakeWorld{symlinks: map[string]string{"/a/link": "/target"}}
	o := newTestObserver(t, world, Options{})

	if got := o.resolvePath(1, "/a/link", false); got != "/a/link" {
		t.Fatalf("final symlink followed despite nofollow: %q", got)
	}
	if got := o.resolvePath(1, "/a/link", true); got != "/target" {
		t.Fatalf("final symlink not followed: %q", got)
	}
}

func TestResolveNonAbsoluteReturnedUnmodified(t *testing.T) {
	world := &fakeWorld{}
	o := newTestObserver(t, world, Options{})

	if got := o.resolvePath(1, "rel/path", true); got != "rel/path" {
		t.Fatalf("non-absolute input must be returned unmodified, got %q", got)
	}
}

func TestNormalizePathAtCwd(t *testing.T) {
	world := &fakeWorld{cwd: "/work"}
	o := newTestObserver(t, world, Options{})

	if got := o.NormalizePathAt(1, unix.AT_FDCWD, "rel/file", true); got != "/work/rel/file" {
		t.Fatalf("NormalizePathAt = %q, want /work/rel/file", got)
	}
}

func TestNormalizePathAtAbsoluteIgnoresDirFD(t *testing.T) {
	world := &fakeWorld{fds: map[int]string{5: "/elsewhere"}}
	o := newTestObserver(t, world, Options{})

	if got := o.NormalizePathAt(0, 5, "/abs/path", true); got != "/abs/path" {
		t.Fatalf("NormalizePathAt = %q, want /abs/path", got)
	}
}

func TestNormalizePathAtEmptyPathname(t *testing.T) {
	o := newTestObserver(t, &fakeWorld{}, Options{})
	if got := o.NormalizePathAt(1, unix.AT_FDCWD, "", true); got != "" {
		t.Fatalf("empty pathname must stay empty, got %q", got)
	}
}

func TestNormalizePathAtBadDirFD(t *testing.T) {
	world := &fakeWorld{fds: map[int]string{}}
	o := newTestObserver(t, world, Options{})

	if got := o.NormalizePathAt(0, 99, "rel", true); got != "" {
		t.Fatalf("unresolvable dirfd must yield empty path, got %q", got)
	}
}

func TestPathBufSplice(t *testing.T) {
	buf := newPathBuf("/a/b/c")
	buf.splice(3, 4, "xyz")
	if buf.String() != "/a/xyz/c" {
		t.Fatalf("splice: %q", buf.String())
	}
	buf.shiftLeft(3, 7)
	if buf.String() != "/a/c" {
		t.Fatalf("shiftLeft: %q", buf.String())
	}
}
