package pump

import (
	"errors"
	"testing"

	"github.com/flowkit/reactor/internal/assert"
	"github.com/flowkit/reactor/transferstate"
)

type countingVariant struct {
	remaining int
	transfers int
}

func (v *countingVariant) TransferState() transferstate.TransferState {
	return transferstate.New(v.remaining > 0, v.remaining <= 0)
}

func (v *countingVariant) Transfer() {
	v.remaining--
	v.transfers++
}

func TestPumpDrainsUntilNotExecutable(t *testing.T) {
	v := &countingVariant{remaining: 3}
	completed := false
	p := New(v, func() { completed = true }, func(error) {})
	p.Run()
	assert.Equal(t, v.transfers, 3)
	assert.True(t, completed)
}

func TestPumpDoesNotCallOnCompletedWhenNotCompleted(t *testing.T) {
	calls := 0
	stalled := &stalledVariant{}
	p := New(stalled, func() { calls++ }, func(error) {})
	p.Run()
	assert.Equal(t, calls, 0)
}

type stalledVariant struct{}

func (stalledVariant) TransferState() transferstate.TransferState {
	return transferstate.New(false, false)
}
func (stalledVariant) Transfer() {}

func TestReentrantRunIsNoOp(t *testing.T) {
	var p *Pump
	reentered := false
	completions := 0
	v := &reentrantVariant{}
	p = New(v, func() { completions++ }, func(error) {})
	v.onTransfer = func() {
		reentered = true
		p.Run() // re-entrant call during Transfer must be a no-op
	}
	p.Run()
	assert.True(t, reentered)
	// A re-entrant Run that ran its own loop would observe the completed
	// state and call onCompleted a second time.
	assert.Equal(t, completions, 1)
}

// TestTransferPanicFailsInsteadOfCrashing is spec.md §4.4 item 2 and §7's
// "Transfer failure" category: a panic out of Transfer must never escape
// Run, it must be turned into an onFailed call.
func TestTransferPanicFailsInsteadOfCrashing(t *testing.T) {
	v := &panickingVariant{}
	var failedWith error
	p := New(v, func() { t.Fatal("onCompleted must not be called") }, func(cause error) {
		failedWith = cause
	})
	p.Run()
	assert.True(t, failedWith != nil)
	assert.True(t, errors.Is(failedWith, errBoom))
}

type panickingVariant struct{}

var errBoom = errors.New("boom")

func (panickingVariant) TransferState() transferstate.TransferState {
	return transferstate.New(true, false)
}
func (panickingVariant) Transfer() { panic(errBoom) }

func TestPumpRunnableAgainAfterPanic(t *testing.T) {
	calls := 0
	p := New(&panickingVariant{}, func() {}, func(error) { calls++ })
	p.Run()
	p.Run()
	// The reentrancy guard is reset by the same deferred cleanup that runs
	// on a normal return, so a panicked Run does not wedge the Pump.
	assert.Equal(t, calls, 2)
}

type reentrantVariant struct {
	calls      int
	onTransfer func()
}

func (v *reentrantVariant) TransferState() transferstate.TransferState {
	return transferstate.New(v.calls < 1, v.calls >= 1)
}

func (v *reentrantVariant) Transfer() {
	v.calls++
	if v.onTransfer != nil {
		v.onTransfer()
	}
}
