// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package observer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnumerateDirectory(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel string) {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	mustWrite("a.txt")
	mustWrite("sub/b.txt")
	mustWrite("sub/deep/c.txt")

	entries := EnumerateDirectory(root)

	byPath := make(map[string]bool, len(entries))
	for _, e := range entries {
		byPath[e.Path] = e.IsDir
	}
	if len(entries) != 6 {
		t.Fatalf("expected 6 entries (root, 2 dirs, 3 files), got %d: %v", len(entries), entries)
	}
	if isDir, ok := byPath[root]; !ok || !isDir {
		t.Fatal("root must be included as a directory")
	}
	if isDir, ok := byPath[filepath.Join(root, "sub", "deep")]; !ok || !isDir {
		t.Fatal("nested directory missing")
	}
	if isDir, ok := byPath[filepath.Join(root, "sub", "deep", "c.txt")]; !ok || isDir {
		t.Fatal("nested file missing or misclassified")
	}
}

func TestEnumerateDirectoryMissingRoot(t *testing.T) {
	entries := EnumerateDirectory("/nonexistent/dir")
	if len(entries) != 1 {
		t.Fatalf("unreadable root still yields the root entry, got %v", entries)
	}
}
