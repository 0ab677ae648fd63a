// Package transferstate implements the TransferState value described in
// spec.md §4.1: a small, immutable readiness/termination descriptor
// returned by every invocation of a processor's transfer function.
package transferstate

// TransferState describes whether a processor's transfer function may run
// right now, and whether it has permanently terminated. It is a plain
// value type: comparable, copyable, and safe to return from a pure
// function.
type TransferState struct {
	ready     bool
	completed bool
}

// NotInitialized is returned by processor variants that have not yet
// computed their first real TransferState. It is neither ready nor
// completed.
var NotInitialized = TransferState{}

// New constructs a TransferState from its two observable booleans.
func New(ready, completed bool) TransferState {
	return TransferState{ready: ready, completed: completed}
}

// IsReady reports whether the transfer function may run.
func (s TransferState) IsReady() bool { return s.ready }

// IsCompleted reports whether the transfer function has permanently
// terminated and will never become ready again.
func (s TransferState) IsCompleted() bool { return s.completed }

// IsExecutable reports whether the pump should invoke the transfer
// function: ready and not completed.
func (s TransferState) IsExecutable() bool { return s.ready && !s.completed }

// And combines two TransferStates conjunctively: ready iff both are ready,
// completed iff either is completed. Used to compose e.g. NeedsInput and
// NeedsDemand into NeedsInputAndDemand.
func And(a, b TransferState) TransferState {
	return TransferState{ready: a.ready && b.ready, completed: a.completed || b.completed}
}

// Or combines two TransferStates disjunctively: ready iff either is ready,
// completed iff both are completed.
func Or(a, b TransferState) TransferState {
	return TransferState{ready: a.ready || b.ready, completed: a.completed && b.completed}
}
