// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package codec

import (
	"bytes"
	"testing"
)

type journalRecord struct {
	Path  string `cbor:"path"`
	Errno int    `cbor:"errno"`
	PID   int    `cbor:"pid"`
}

func TestMarshalRoundTrip(t *testing.T) {
	in := journalRecord{Path: "/usr/bin/cc", Errno: 2, PID: 4711}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out journalRecord
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	in := map[string]int{"zulu": 1, "alpha": 2, "mike": 3}
	first, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for i := 0; i < 16; i++ {
		again, err := Marshal(in)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding not deterministic: %x vs %x", first, again)
		}
	}
}

func TestUnmarshalIntoAny(t *testing.T) {
	data, err := Marshal(map[string]any{"path": "/tmp/out.o"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var v any
	if err := Unmarshal(data, &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("decoded type %T, want map[string]any", v)
	}
	if m["path"] != "/tmp/out.o" {
		t.Fatalf("decoded value %v", m)
	}
}

func TestStreamEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	records := []journalRecord{
		{Path: "/a", PID: 1},
		{Path: "/b", PID: 2, Errno: 13},
	}
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}
	dec := NewDecoder(&buf)
	for i := range records {
		var got journalRecord
		if err := dec.Decode(&got); err != nil {
			t.Fatalf("Decode %d: %v", i, err)
		}
		if got != records[i] {
			t.Fatalf("record %d: got %+v, want %+v", i, got, records[i])
		}
	}
}
