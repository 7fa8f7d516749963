// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

// Package binhash provides BLAKE3 content hashing for binary files.
//
// The sandbox records a content digest on statically-linked-process
// reports so the monitor can key its bookkeeping on binary identity.
// Modification times alone are not enough: a binary rewritten with
// identical content would otherwise be re-reported, and a binary
// replaced within the same timestamp granularity would be missed.
//
// The API surface is three functions:
//
//   - [HashFile] -- streams a file through BLAKE3, returning a [32]byte
//     digest with constant memory usage regardless of file size
//   - [FormatDigest] -- converts a [32]byte digest to its canonical
//     hex-encoded string representation used in reports and log output
//   - [ParseDigest] -- parses a hex-encoded digest string back to a
//     [32]byte array, validating length and encoding
//
// This package has no dependencies on other sandbox packages.
package binhash
