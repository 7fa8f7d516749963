// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package msgqueue

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Arya96ii/BuildXL/lib/testutil"
)

func TestEncodeRun(t *testing.T) {
	m := Message{
		Command:      CommandRun,
		TraceePID:    4711,
		ParentPID:    4700,
		Exe:          "/usr/bin/cc",
		ManifestPath: "/tmp/fam/manifest",
	}
	data, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(data) != "0|4711|4700|/usr/bin/cc|/tmp/fam/manifest" {
		t.Fatalf("encoded %q", data)
	}
}

func TestEncodeExit(t *testing.T) {
	data, err := Message{Command: CommandExit, TraceePID: 4711}.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(data) != "1|4711" {
		t.Fatalf("encoded %q", data)
	}
}

func TestEncodeRejectsDelimiterInPath(t *testing.T) {
	m := Message{Command: CommandRun, TraceePID: 1, Exe: "/weird|name"}
	if _, err := m.Encode(); err == nil {
		t.Fatal("expected error for path containing delimiter")
	}
}

func TestParseRoundTrip(t *testing.T) {
	messages := []Message{
		{Command: CommandRun, TraceePID: 9, ParentPID: 1, Exe: "/bin/sh", ManifestPath: "/tmp/m"},
		{Command: CommandExit, TraceePID: 9},
	}
	for _, want := range messages {
		data, err := want.Encode()
		if err != nil {
			t.Fatalf("Encode %+v: %v", want, err)
		}
		got, err := Parse(data)
		if err != nil {
			t.Fatalf("Parse %q: %v", data, err)
		}
		if got != want {
			t.Fatalf("round trip: got %+v, want %+v", got, want)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"hello",
		"0|1|2",
		"1|notapid",
		"7|1",
		"0|x|2|/bin/sh|/tmp/m",
	}
	for _, c := range cases {
		if _, err := Parse([]byte(c)); err == nil {
			t.Errorf("Parse(%q): expected error", c)
		}
	}
}

func TestParseRejectsOversized(t *testing.T) {
	data := []byte("0|1|2|/" + strings.Repeat("a", MaxMessageSize) + "|/tmp/m")
	if _, err := Parse(data); err == nil {
		t.Fatal("expected error for oversized message")
	}
}

func TestSendReceive(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "ctl.sock")

	listener, err := Listen(socketPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()

	sender, err := Open(socketPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sender.Close()

	want := Message{
		Command:      CommandRun,
		TraceePID:    100,
		ParentPID:    1,
		Exe:          "/usr/bin/make",
		ManifestPath: filepath.Join(t.TempDir(), "manifest"),
	}
	if err := sender.Send(want); err != nil {
		t.Fatalf("Send: %v", err)
	}

	received := make(chan Message, 1)
	go func() {
		m, err := listener.Receive()
		if err != nil {
			t.Errorf("Receive: %v", err)
			return
		}
		received <- m
	}()

	got := testutil.RequireReceive(t, received, 5*time.Second, "waiting for control message")
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestListenerCloseRemovesSocketFile(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "ctl.sock")

	listener, err := Listen(socketPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if _, err := os.Stat(socketPath); err != nil {
		t.Fatalf("socket file missing after Listen: %v", err)
	}

	if err := listener.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Fatalf("socket file still present after Close: %v", err)
	}
}

func TestSenderCloseLeavesSocketFile(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "ctl.sock")

	listener, err := Listen(socketPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()

	sender, err := Open(socketPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := sender.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(socketPath); err != nil {
		t.Fatalf("sender Close removed the listener's socket file: %v", err)
	}
}

func TestMessageBoundariesPreserved(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "ctl.sock")

	listener, err := Listen(socketPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()

	sender, err := Open(socketPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sender.Close()

	for pid := 1; pid <= 3; pid++ {
		if err := sender.Send(Message{Command: CommandExit, TraceePID: pid}); err != nil {
			t.Fatalf("Send %d: %v", pid, err)
		}
	}

	listener.SetReadDeadline(time.Now().Add(5 * time.Second))
	for pid := 1; pid <= 3; pid++ {
		m, err := listener.Receive()
		if err != nil {
			t.Fatalf("Receive %d: %v", pid, err)
		}
		if m.Command != CommandExit || m.TraceePID != pid {
			t.Fatalf("message %d: got %+v", pid, m)
		}
	}
}
