// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package binhash

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zeebo/blake3"
)

func TestHashFile(t *testing.T) {
	content := []byte("hello, sandbox")
	path := filepath.Join(t.TempDir(), "test-binary")
	if err := os.WriteFile(path, content, 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}

	want := blake3.Sum256(content)
	if got != want {
		t.Errorf("HashFile = %x, want %x", got, want)
	}
}

func TestHashFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, nil, 0755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}

	want := blake3.Sum256(nil)
	if got != want {
		t.Errorf("HashFile(empty) = %x, want %x", got, want)
	}
}

func TestHashFileNonexistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist")
	if _, err := HashFile(path); err == nil {
		t.Fatal("HashFile should fail for nonexistent file")
	}
}

func TestDigestRoundTrip(t *testing.T) {
	digest := blake3.Sum256([]byte("round trip"))
	formatted := FormatDigest(digest)
	if len(formatted) != 64 {
		t.Fatalf("FormatDigest length = %d, want 64", len(formatted))
	}
	parsed, err := ParseDigest(formatted)
	if err != nil {
		t.Fatalf("ParseDigest: %v", err)
	}
	if parsed != digest {
		t.Errorf("ParseDigest(FormatDigest(d)) = %x, want %x", parsed, digest)
	}
}

func TestParseDigestRejectsBadInput(t *testing.T) {
	for _, input := range []string{"", "zz", "abcd"} {
		if _, err := ParseDigest(input); err == nil {
			t.Errorf("ParseDigest(%q) succeeded, want error", input)
		}
	}
}
