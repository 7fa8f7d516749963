// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package sandbox

import "testing"

func TestCoalesceKeyClasses(t *testing.T) {
	writeClass := []EventType{EventTruncate, EventSetAttr, EventSetOwner, EventSetMode, EventWrite, EventSetTime}
	for _, et := range writeClass {
		if got := et.CoalesceKey(); got != EventWrite {
			t.Errorf("%v coalesces to %v, want %v", et, got, EventWrite)
		}
	}
	statClass := []EventType{EventGetAttr, EventAccess, EventStat}
	for _, et := range statClass {
		if got := et.CoalesceKey(); got != EventStat {
			t.Errorf("%v coalesces to %v, want %v", et, got, EventStat)
		}
	}
	selfKeyed := []EventType{EventOpen, EventCreate, EventReadlink, EventUnlink, EventLink, EventRename, EventExec, EventFork, EventExit}
	for _, et := range selfKeyed {
		if got := et.CoalesceKey(); got != et {
			t.Errorf("%v coalesces to %v, want itself", et, got)
		}
	}
}

func TestEventTypeString(t *testing.T) {
	if got := EventReadlink.String(); got != "readlink" {
		t.Errorf("EventReadlink.String() = %q", got)
	}
	if got := EventType(999).String(); got != "eventtype(999)" {
		t.Errorf("unknown type String() = %q", got)
	}
}

func TestAccessCheckResultSentinel(t *testing.T) {
	if NotChecked.Checked() {
		t.Error("NotChecked reports as checked")
	}
	result := AllowAll{}.CheckAccess(&Event{Type: EventOpen, Path: "/x"})
	if !result.Checked() {
		t.Error("AllowAll result reports as not checked")
	}
	if result.Denied() {
		t.Error("AllowAll denied an access")
	}
}
