// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package observer

import (
	"testing"
)

func TestFDCacheHit(t *testing.T) {
	world := &fakeWorld{fds: map[int]string{3: "/work/input"}}
	o := newTestObserver(t, world, Options{CacheFDs: true})

	if got := o.FDToPath(0, 3); got != "/work/input" {
		t.Fatalf("FDToPath = %q", got)
	}
	if got := o.FDToPath(0, 3); got != "/work/input" {
		t.Fatalf("FDToPath (cached) = %q", got)
	}
	if world.fdReads != 1 {
		t.Fatalf("expected 1 proc resolution, got %d", world.fdReads)
	}
}

func TestFDCacheInvalidate(t *testing.T) {
	world := &fakeWorld{fds: map[int]string{3: "/work/input"}}
	o := newTestObserver(t, world, Options{CacheFDs: true})

	o.FDToPath(0, 3)
	o.fds.invalidate(3)
	world.fds[3] = "/work/other"

	if got := o.FDToPath(0, 3); got != "/work/other" {
		t.Fatalf("stale path after invalidation: %q", got)
	}
	if world.fdReads != 2 {
		t.Fatalf("expected re-resolution after invalidation, got %d reads", world.fdReads)
	}
}

func TestFDCacheDisable(t *testing.T) {
	world := &fakeWorld{fds: map[int]string{3: "/work/input"}}
	o := newTestObserver(t, world, Options{CacheFDs: true})

	o.FDToPath(0, 3)
	o.DisableFDCache()
	o.FDToPath(0, 3)
	o.FDToPath(0, 3)

	if world.fdReads != 3 {
		t.Fatalf("disabled cache must resolve every time, got %d reads", world.fdReads)
	}
}

func TestFDCacheForeignPIDNeverCached(t *testing.T) {
	world := &fakeWorld{fds: map[int]string{3: "/work/input"}}
	o := newTestObserver(t, world, Options{CacheFDs: true})

	o.FDToPath(777, 3)
	o.FDToPath(777, 3)
	if world.fdReads != 2 {
		t.Fatalf("foreign pid lookups must bypass the cache, got %d reads", world.fdReads)
	}
}

func TestFDCacheFailedReadNotCached(t *testing.T) {
	world := &fakeWorld{fds: map[int]string{}}
	o := newTestObserver(t, world, Options{CacheFDs: true})

	if got := o.FDToPath(0, 9); got != "" {
		t.Fatalf("failed resolution must yield empty path, got %q", got)
	}
	world.fds[9] = "/late"
	if got := o.FDToPath(0, 9); got != "/late" {
		t.Fatalf("failure must not be cached, got %q", got)
	}
}

func TestFDCacheOutOfRange(t *testing.T) {
	world := &fakeWorld{fds: map[int]string{maxCachedFD + 5: "/big"}}
	o := newTestObserver(t, world, Options{CacheFDs: true})

	o.FDToPath(0, maxCachedFD+5)
	o.FDToPath(0, maxCachedFD+5)
	if world.fdReads != 2 {
		t.Fatalf("out-of-range descriptors must not be cached, got %d reads", world.fdReads)
	}
}
