// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package observer

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStaticLinkForcedNames(t *testing.T) {
	d := newStaticLinkDetector([]string{"gcc", "ld"})
	d.inspect = func(string) bool {
		t.Fatal("forced names must not be inspected")
		return false
	}

	if !d.isStaticallyLinked("/usr/bin/gcc") {
		t.Fatal("forced name must classify as statically linked")
	}
	if !d.isStaticallyLinked("/toolchain/bin/ld") {
		t.Fatal("forced basename match must work regardless of directory")
	}
}

func TestStaticLinkMemoized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, []byte("not an elf"), 0755); err != nil {
		t.Fatal(err)
	}

	inspections := 0
	d := newStaticLinkDetector(nil)
	d.inspect = func(string) bool {
		inspections++
		return true
	}

	for i := 0; i < 3; i++ {
		if !d.isStaticallyLinked(path) {
			t.Fatal("expected statically linked")
		}
	}
	if inspections != 1 {
		t.Fatalf("expected 1 inspection, got %d", inspections)
	}
}

func TestStaticLinkReinspectsOnMtimeChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(path, []byte("v1"), 0755); err != nil {
		t.Fatal(err)
	}

	inspections := 0
	d := newStaticLinkDetector(nil)
	d.inspect = func(string) bool {
		inspections++
		return inspections == 1
	}

	if !d.isStaticallyLinked(path) {
		t.Fatal("first inspection should report static")
	}
	// A rebuilt binary gets a fresh determination.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	if d.isStaticallyLinked(path) {
		t.Fatal("changed mtime must trigger re-inspection")
	}
	if inspections != 2 {
		t.Fatalf("expected 2 inspections, got %d", inspections)
	}
}

func TestStaticLinkMissingFile(t *testing.T) {
	d := newStaticLinkDetector(nil)
	if d.isStaticallyLinked("/nonexistent/binary") {
		t.Fatal("missing file must not classify as statically linked")
	}
}

func TestInspectNonELF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\necho hi\n"), 0755); err != nil {
		t.Fatal(err)
	}
	if inspectStaticLink(path) {
		t.Fatal("scripts run through a dynamic interpreter and are not static")
	}
}
