// Package pump implements the single re-entry point that drives a
// processor variant's transfer function while its TransferState reports
// executable, and stops the instant it does not.
package pump

import (
	"fmt"

	"github.com/flowkit/reactor/transferstate"
)

// Variant is the capability a processor variant exposes to the pump: a
// way to compute the current TransferState and a way to run one
// transfer step. Transfer is only ever called when TransferState last
// reported IsExecutable.
type Variant interface {
	TransferState() transferstate.TransferState
	Transfer()
}

// Pump drives Variant.Transfer in a loop as long as its TransferState
// remains executable, then calls onCompleted exactly once if the final
// state it observed was completed. It guards against re-entrant Run calls
// from within Transfer itself: a transfer step that synchronously causes
// more signals to be processed (e.g. a variant emitting onNext which in
// turn drives demand back into the same buffer) must not recurse into a
// second concurrent pump loop.
type Pump struct {
	variant     Variant
	onCompleted func()
	onFailed    func(cause error)
	running     bool
}

// New constructs a Pump bound to one variant, the completion callback the
// owning processor uses to tear down and notify its downstream, and the
// failure callback invoked if TransferState or Transfer panics.
func New(variant Variant, onCompleted func(), onFailed func(cause error)) *Pump {
	return &Pump{variant: variant, onCompleted: onCompleted, onFailed: onFailed}
}

// Run drives the transfer loop. Calling Run from within a Transfer call it
// is itself driving (re-entrantly, via the same goroutine) is a no-op: the
// outer Run call's loop will observe the updated state on its own next
// iteration. A panic from the variant's own TransferState or Transfer is
// not allowed to crash the actor goroutine: it is recovered and reported
// through onFailed instead, per the transfer-failure contract every
// variant gets for free.
func (p *Pump) Run() {
	if p.running {
		return
	}
	p.running = true
	defer func() { p.running = false }()
	defer func() {
		if r := recover(); r != nil {
			p.onFailed(panicCause(r))
		}
	}()

	for {
		state := p.variant.TransferState()
		if !state.IsExecutable() {
			if state.IsCompleted() {
				p.onCompleted()
			}
			return
		}
		p.variant.Transfer()
	}
}

func panicCause(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("pump: transfer panicked: %w", err)
	}
	return fmt.Errorf("pump: transfer panicked: %v", r)
}
