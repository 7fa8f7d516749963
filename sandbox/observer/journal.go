// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package observer

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/Arya96ii/BuildXL/lib/codec"
)

// Journal records every report of a session as a CBOR stream, zstd
// compressed by default, for post-build diagnostics. The journal is
// strictly best-effort: append failures are logged by the observer and
// never affect reporting.
type Journal struct {
	mu      sync.Mutex
	file    *os.File
	zw      *zstd.Encoder
	encoder *codec.Encoder
}

// JournalRecord is the on-disk form of one report.
type JournalRecord struct {
	Time       time.Time `cbor:"time"`
	Operation  int       `cbor:"op"`
	EventType  int       `cbor:"event"`
	PID        int       `cbor:"pid"`
	RootPID    int       `cbor:"root_pid"`
	Access     int       `cbor:"access"`
	Decision   int       `cbor:"decision"`
	Errno      int       `cbor:"errno,omitempty"`
	Mode       uint32    `cbor:"mode,omitempty"`
	IsDir      bool      `cbor:"dir,omitempty"`
	Digest     string    `cbor:"digest,omitempty"`
	Path       string    `cbor:"path"`
	SecondPath string    `cbor:"second_path,omitempty"`
}

// OpenJournal creates the journal file at path. compress selects zstd
// framing; without it the file is a plain CBOR sequence.
func OpenJournal(path string, compress bool) (*Journal, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}

	j := &Journal{file: file}
	var sink io.Writer = file
	if compress {
		zw, err := zstd.NewWriter(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("initializing journal compression: %w", err)
		}
		j.zw = zw
		sink = zw
	}
	j.encoder = codec.NewEncoder(sink)
	return j, nil
}

// Append writes one report to the journal.
func (j *Journal) Append(report *AccessReport) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.encoder == nil {
		return fmt.Errorf("journal is closed")
	}
	return j.encoder.Encode(JournalRecord{
		Time:       time.Now().UTC(),
		Operation:  int(report.Operation),
		EventType:  int(report.EventType),
		PID:        report.PID,
		RootPID:    report.RootPID,
		Access:     int(report.Access),
		Decision:   int(report.Decision),
		Errno:      report.Errno,
		Mode:       report.Mode,
		IsDir:      report.IsDir,
		Digest:     report.Digest,
		Path:       report.Path,
		SecondPath: report.SecondPath,
	})
}

// Close flushes and closes the journal.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.encoder == nil {
		return nil
	}
	j.encoder = nil
	if j.zw != nil {
		if err := j.zw.Close(); err != nil {
			j.file.Close()
			return fmt.Errorf("flushing journal: %w", err)
		}
	}
	return j.file.Close()
}

// ReadJournal decodes a full journal stream, for tooling and tests.
func ReadJournal(r io.Reader, compressed bool) ([]JournalRecord, error) {
	source := r
	if compressed {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening journal reader: %w", err)
		}
		defer zr.Close()
		source = zr
	}

	decoder := codec.NewDecoder(source)
	var records []JournalRecord
	for {
		var record JournalRecord
		if err := decoder.Decode(&record); err != nil {
			if err == io.EOF {
				return records, nil
			}
			return nil, fmt.Errorf("decoding journal record: %w", err)
		}
		records = append(records, record)
	}
}
