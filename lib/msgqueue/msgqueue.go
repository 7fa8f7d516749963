// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package msgqueue

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// MaxMessageSize is the largest encoded control message accepted on
// the socket. Messages are small (two paths plus two pids); anything
// larger indicates a corrupt or hostile sender.
const MaxMessageSize = 8192

// Command identifies the request carried by a control message.
type Command int

const (
	// CommandRun asks the daemon to launch a runner attached to the
	// given tracee.
	CommandRun Command = 0

	// CommandExit notifies the daemon that a runner has finished
	// tracing the given pid.
	CommandExit Command = 1
)

// Message is one control-channel request. CommandRun carries all
// fields; CommandExit carries only TraceePID.
type Message struct {
	Command      Command
	TraceePID    int
	ParentPID    int
	Exe          string
	ManifestPath string
}

// RunRequest builds the message a to-be-traced process sends to ask
// the daemon for a tracer.
func RunRequest(pid, parentPID int, exe, manifestPath string) Message {
	return Message{
		Command:      CommandRun,
		TraceePID:    pid,
		ParentPID:    parentPID,
		Exe:          exe,
		ManifestPath: manifestPath,
	}
}

// ExitNotification builds the message a runner sends when its trace
// has drained.
func ExitNotification(pid int) Message {
	return Message{Command: CommandExit, TraceePID: pid}
}

// Encode renders m in the pipe-delimited wire form. Run messages
// encode as "0|pid|ppid|exe|manifest", exit messages as "1|pid".
func (m Message) Encode() ([]byte, error) {
	var encoded string
	switch m.Command {
	case CommandRun:
		if strings.ContainsRune(m.Exe, '|') || strings.ContainsRune(m.ManifestPath, '|') {
			return nil, fmt.Errorf("msgqueue: path contains delimiter: exe=%q manifest=%q", m.Exe, m.ManifestPath)
		}
		encoded = fmt.Sprintf("%d|%d|%d|%s|%s", CommandRun, m.TraceePID, m.ParentPID, m.Exe, m.ManifestPath)
	case CommandExit:
		encoded = fmt.Sprintf("%d|%d", CommandExit, m.TraceePID)
	default:
		return nil, fmt.Errorf("msgqueue: unknown command %d", m.Command)
	}
	if len(encoded) > MaxMessageSize {
		return nil, fmt.Errorf("msgqueue: message size %d exceeds limit %d", len(encoded), MaxMessageSize)
	}
	return []byte(encoded), nil
}

// Parse decodes one wire-form control message.
func Parse(data []byte) (Message, error) {
	if len(data) > MaxMessageSize {
		return Message{}, fmt.Errorf("msgqueue: message size %d exceeds limit %d", len(data), MaxMessageSize)
	}
	fields := strings.Split(string(data), "|")
	command, err := strconv.Atoi(fields[0])
	if err != nil {
		return Message{}, fmt.Errorf("msgqueue: bad command field %q: %w", fields[0], err)
	}

	switch Command(command) {
	case CommandRun:
		if len(fields) != 5 {
			return Message{}, fmt.Errorf("msgqueue: run message has %d fields, want 5", len(fields))
		}
		pid, err := strconv.Atoi(fields[1])
		if err != nil {
			return Message{}, fmt.Errorf("msgqueue: bad pid field %q: %w", fields[1], err)
		}
		ppid, err := strconv.Atoi(fields[2])
		if err != nil {
			return Message{}, fmt.Errorf("msgqueue: bad ppid field %q: %w", fields[2], err)
		}
		return Message{
			Command:      CommandRun,
			TraceePID:    pid,
			ParentPID:    ppid,
			Exe:          fields[3],
			ManifestPath: fields[4],
		}, nil

	case CommandExit:
		if len(fields) != 2 {
			return Message{}, fmt.Errorf("msgqueue: exit message has %d fields, want 2", len(fields))
		}
		pid, err := strconv.Atoi(fields[1])
		if err != nil {
			return Message{}, fmt.Errorf("msgqueue: bad pid field %q: %w", fields[1], err)
		}
		return Message{Command: CommandExit, TraceePID: pid}, nil

	default:
		return Message{}, fmt.Errorf("msgqueue: unknown command %d", command)
	}
}

// Queue is one endpoint of the control channel. The daemon holds the
// listening end; tracees and runners hold sending ends.
type Queue struct {
	conn     *net.UnixConn
	path     string
	listener bool
}

// Listen binds the receiving end of the control channel at path. The
// socket file must not already exist; the daemon owns its lifecycle.
func Listen(path string) (*Queue, error) {
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return nil, fmt.Errorf("msgqueue: listen %s: %w", path, err)
	}
	return &Queue{conn: conn, path: path, listener: true}, nil
}

// Open connects a sending end to the control channel at path.
func Open(path string) (*Queue, error) {
	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return nil, fmt.Errorf("msgqueue: open %s: %w", path, err)
	}
	return &Queue{conn: conn, path: path}, nil
}

// Send encodes and transmits one message. Datagram semantics: the
// message is delivered whole or not at all.
func (q *Queue) Send(m Message) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	n, err := q.conn.Write(data)
	if err != nil {
		return fmt.Errorf("msgqueue: send on %s: %w", q.path, err)
	}
	if n != len(data) {
		return fmt.Errorf("msgqueue: short send on %s: %d of %d bytes", q.path, n, len(data))
	}
	return nil
}

// Receive blocks for the next message. Close unblocks it with an
// error.
func (q *Queue) Receive() (Message, error) {
	buf := make([]byte, MaxMessageSize)
	n, err := q.conn.Read(buf)
	if err != nil {
		return Message{}, fmt.Errorf("msgqueue: receive on %s: %w", q.path, err)
	}
	return Parse(buf[:n])
}

// SetReadDeadline bounds the next Receive call.
func (q *Queue) SetReadDeadline(t time.Time) error {
	return q.conn.SetReadDeadline(t)
}

// Path returns the socket path this endpoint is bound or connected to.
func (q *Queue) Path() string {
	return q.path
}

// Close releases the endpoint. The listening end also removes the
// socket file.
func (q *Queue) Close() error {
	err := q.conn.Close()
	if q.listener {
		if rmErr := os.Remove(q.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
			err = rmErr
		}
	}
	return err
}
