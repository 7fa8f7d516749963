// Copyright 2026 The BuildXL Authors
// SPDX-License-Identifier: MIT

package sandbox

// RequestedAccess is a bit set describing what an operation wanted
// from its target. The values are wire constants shared with the
// monitor's report parser.
type RequestedAccess int

const (
	// AccessNone means no access was requested (sentinel results).
	AccessNone RequestedAccess = 0

	// AccessRead covers content reads.
	AccessRead RequestedAccess = 1 << 0

	// AccessWrite covers content and metadata mutations.
	AccessWrite RequestedAccess = 1 << 1

	// AccessProbe covers existence and metadata probes.
	AccessProbe RequestedAccess = 1 << 2

	// AccessEnumerate covers directory enumeration.
	AccessEnumerate RequestedAccess = 1 << 3
)

// AccessDecision is the policy engine's verdict on one event.
type AccessDecision int

const (
	// DecisionNone marks a result where no check took place: cache
	// hit, non-file target, or empty path. It is the distinguished
	// sentinel carried by [NotChecked].
	DecisionNone AccessDecision = iota

	// DecisionAllow permits the operation.
	DecisionAllow

	// DecisionDeny rejects the operation. In trace mode the verdict
	// is observational; the interposition sandbox may enforce it.
	DecisionDeny
)

// ReportLevel says whether the monitor wants this event reported.
type ReportLevel int

const (
	// ReportNever suppresses the report.
	ReportNever ReportLevel = iota

	// ReportAlways requests an explicit report.
	ReportAlways
)

// AccessCheckResult is what the policy collaborator returns for one
// event. The zero value is the "no check was necessary" sentinel.
type AccessCheckResult struct {
	Access   RequestedAccess
	Decision AccessDecision
	Level    ReportLevel
}

// NotChecked is the sentinel result meaning no policy check happened.
var NotChecked = AccessCheckResult{}

// Checked reports whether a policy check actually took place.
func (r AccessCheckResult) Checked() bool {
	return r.Decision != DecisionNone
}

// Denied reports whether the policy engine rejected the access.
func (r AccessCheckResult) Denied() bool {
	return r.Decision == DecisionDeny
}

// AccessChecker is the external policy collaborator. It is invoked
// synchronously for every non-deduplicated event; its result is
// recorded in the wire report but never blocks reporting.
//
// Implementations live outside this repository (the build engine's
// file-access manifest evaluator). [AllowAll] is the stand-in used by
// the runner when no policy engine is attached.
type AccessChecker interface {
	CheckAccess(event *Event) AccessCheckResult
}

// AllowAll is an AccessChecker that permits and reports everything.
// Trace mode is purely observational, so this is the default checker
// wired by the runner binary.
type AllowAll struct{}

// CheckAccess implements [AccessChecker].
func (AllowAll) CheckAccess(event *Event) AccessCheckResult {
	access := AccessRead
	switch event.Type {
	case EventCreate, EventWrite, EventTruncate, EventUnlink, EventLink,
		EventRename, EventSetMode, EventSetOwner, EventSetTime, EventSetAttr:
		access = AccessWrite
	case EventStat, EventAccess, EventGetAttr, EventReadlink:
		access = AccessProbe
	}
	return AccessCheckResult{Access: access, Decision: DecisionAllow, Level: ReportAlways}
}

// Operation identifies the kind of a wire report. File accesses carry
// the event type alongside; the remaining codes are bookkeeping
// messages that share the report channel.
type Operation int

const (
	// OpFileAccess is a normal file-access report.
	OpFileAccess Operation = iota

	// OpProcessExit reports the termination of a traced process.
	OpProcessExit

	// OpStaticallyLinkedProcess reports that a binary about to run
	// cannot be observed by the interposition sandbox and needs the
	// ptrace path.
	OpStaticallyLinkedProcess

	// OpDebugMessage carries sanitized debug text in the path field.
	// Debug reports may be truncated to fit the wire bound; nothing
	// else may.
	OpDebugMessage
)

func (op Operation) String() string {
	switch op {
	case OpFileAccess:
		return "file-access"
	case OpProcessExit:
		return "process-exit"
	case OpStaticallyLinkedProcess:
		return "statically-linked"
	case OpDebugMessage:
		return "debug"
	default:
		return "unknown"
	}
}
