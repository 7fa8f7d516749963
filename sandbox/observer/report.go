// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package observer

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"github.com/Arya96ii/BuildXL/sandbox"
)

// MaxReportSize is the hard bound on one encoded report including its
// length prefix. It equals PIPE_BUF on Linux: writes up to this size
// to the report FIFO are atomic, so the monitor never sees interleaved
// fragments from concurrent writers.
const MaxReportSize = 4096

// reportPrefixSize is the 4-byte little-endian payload length that
// precedes every report on the wire.
const reportPrefixSize = 4

// AccessReport is one wire message to the monitor. Most fields mirror
// the semantic event it was built from; Digest is only populated on
// statically-linked process reports, and Path doubles as the message
// text for debug reports.
type AccessReport struct {
	Operation  sandbox.Operation
	EventType  sandbox.EventType
	PID        int
	RootPID    int
	Access     sandbox.RequestedAccess
	Decision   sandbox.AccessDecision
	Level      sandbox.ReportLevel
	Errno      int
	PipID      string
	Mode       uint32
	IsDir      bool
	Suppressed bool
	Digest     string
	SecondPath string
	Path       string
}

// Encode serializes the report: a 4-byte length prefix followed by
// pipe-delimited ASCII fields with the path last. A report that does
// not fit MaxReportSize is truncated if it is a debug message (the
// path field is free text there) and an error otherwise: silently
// dropping or splitting a real access report would under-report the
// build, which the sandbox must never do.
func (r *AccessReport) Encode() ([]byte, error) {
	payload := fmt.Sprintf("%d|%d|%d|%d|%d|%d|%d|%d|%s|%o|%d|%d|%s|%s|%s",
		r.Operation, r.EventType, r.PID, r.RootPID,
		r.Access, r.Decision, r.Level, r.Errno,
		r.PipID, r.Mode, boolField(r.IsDir), boolField(r.Suppressed),
		r.Digest, r.SecondPath, r.Path)

	if reportPrefixSize+len(payload) > MaxReportSize {
		if r.Operation != sandbox.OpDebugMessage {
			return nil, fmt.Errorf("report for %q exceeds %d bytes and is not truncatable", r.Path, MaxReportSize)
		}
		payload = payload[:MaxReportSize-reportPrefixSize]
	}

	buf := make([]byte, reportPrefixSize+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[reportPrefixSize:], payload)
	return buf, nil
}

func boolField(b bool) int {
	if b {
		return 1
	}
	return 0
}

// sanitizeDebugText rewrites the wire format's delimiter characters so
// free-form debug text cannot corrupt field framing.
var debugSanitizer = strings.NewReplacer("|", "!", "\n", ".", "\r", ".")

func sanitizeDebugText(s string) string {
	return debugSanitizer.Replace(s)
}

// pipeSender writes encoded reports to the monitor's report FIFO. One
// write per report; short writes are an error, not retried, because
// every report is bounded to fit a single atomic pipe write.
type pipeSender struct {
	file *os.File
	path string
}

func newPipeSender(path string, fds *fdCache) (*pipeSender, error) {
	file, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("opening report sink %s: %w", path, err)
	}
	// This descriptor was just handed out by the kernel; whatever the
	// fd cache remembered for its number is stale now.
	fds.invalidate(int(file.Fd()))
	return &pipeSender{file: file, path: path}, nil
}

func (s *pipeSender) Send(data []byte) error {
	n, err := s.file.Write(data)
	if err != nil {
		return fmt.Errorf("writing report to %s: %w", s.path, err)
	}
	if n != len(data) {
		return fmt.Errorf("short report write to %s: %d of %d bytes", s.path, n, len(data))
	}
	return nil
}

func (s *pipeSender) Close() error {
	return s.file.Close()
}
