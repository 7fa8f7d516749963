// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package observer

import (
	"os"
	"path/filepath"
)

// DirEntry is one path discovered by EnumerateDirectory.
type DirEntry struct {
	Path  string
	IsDir bool
}

// EnumerateDirectory walks root iteratively and returns every
// contained path, root included. Rename handling uses this to
// decompose a directory rename into per-entry unlink and create
// events. Unreadable subdirectories are skipped rather than failing
// the whole walk: a partially reported rename is better than none.
func EnumerateDirectory(root string) []DirEntry {
	entries := []DirEntry{{Path: root, IsDir: true}}
	stack := []string{root}

	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, child := range children {
			path := filepath.Join(dir, child.Name())
			isDir := child.IsDir()
			entries = append(entries, DirEntry{Path: path, IsDir: isDir})
			if isDir {
				stack = append(stack, path)
			}
		}
	}
	return entries
}
