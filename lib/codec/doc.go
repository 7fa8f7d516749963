// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

// Package codec provides the sandbox's standard CBOR encoding
// configuration.
//
// The sandbox uses two serialization formats with a clear boundary:
//
//   - The pipe-delimited ASCII report format on the manager report
//     pipe and the daemon control socket. That wire contract is owned
//     by the managed-side consumer and is hand-encoded where it is
//     produced.
//   - CBOR for everything the sandbox owns end to end: the access
//     journal written alongside a trace and any on-disk state the
//     daemon keeps between runs.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC
// 8949 §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (journal files):
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
package codec
