// Package inputbuffer implements the demand-driven prefetch queue a
// processor keeps over its single upstream. It owns the request(n)
// batching policy: the full prefetch window is computed at construction
// and requested by the owning processor once the upstream subscription
// arrives, and a fresh batch is requested every time the window has drained by
// half, so upstream never sees the consumer stall waiting on demand.
package inputbuffer

import "github.com/flowkit/reactor/transferstate"

// InputBuffer queues elements received from a single upstream publisher
// between the signal that delivered them and the processor's transfer
// function consuming them. It is mutated only from the owning processor's
// own goroutine; it holds no lock.
type InputBuffer struct {
	maxCapacity int
	batchSize   int // B = max(1, maxCapacity/2)

	queue []any

	dequeuedSinceRequest int
	outstandingRequest   int64 // demand issued upstream, not yet satisfied by onNext

	completed bool
	cancelled bool

	requestUpstream func(int64)
	cancelUpstream  func()
}

// SetUpstreamRequester installs the callback Dequeue invokes whenever the
// batching policy decides a fresh request is due. The owning processor
// wires this to its upstream handle's Request method once the upstream
// subscription is known; before that, Dequeue is never called.
func (ib *InputBuffer) SetUpstreamRequester(f func(int64)) {
	ib.requestUpstream = f
}

// SetUpstreamCanceller installs the callback Cancel invokes the first time
// it runs. The owning processor wires this to its upstream handle's Cancel
// method once the upstream subscription is known.
func (ib *InputBuffer) SetUpstreamCanceller(f func()) {
	ib.cancelUpstream = f
}

// NewInputBuffer constructs an InputBuffer and reports the initial prefetch
// amount the caller must Request(n) from its upstream subscription before
// any element can arrive. maxCapacity is the hard cap on queued elements
// and must be >= initialPrefetch; the batch-request threshold B is derived
// from maxCapacity, not from initialPrefetch.
func NewInputBuffer(maxCapacity, initialPrefetch int) (*InputBuffer, int64) {
	b := maxCapacity / 2
	if b < 1 {
		b = 1
	}
	ib := &InputBuffer{
		maxCapacity: maxCapacity,
		batchSize:   b,
		queue:       make([]any, 0, maxCapacity),
	}
	ib.outstandingRequest = int64(initialPrefetch)
	return ib, int64(initialPrefetch)
}

// Enqueue appends one element delivered by an OnNext signal. It does not by
// itself trigger a new upstream request; only Dequeue advances the
// batch-request counter.
func (ib *InputBuffer) Enqueue(element any) {
	ib.queue = append(ib.queue, element)
	ib.outstandingRequest--
}

// Dequeue removes and returns the oldest queued element. Every batchSize
// dequeues, a fresh batch of batchSize is requested from upstream via the
// installed requester, so the prefetch window stays full without issuing a
// request on every single element.
func (ib *InputBuffer) Dequeue() any {
	element := ib.queue[0]
	ib.queue = ib.queue[1:]

	ib.dequeuedSinceRequest++
	if ib.dequeuedSinceRequest >= ib.batchSize {
		ib.dequeuedSinceRequest = 0
		ib.outstandingRequest += int64(ib.batchSize)
		if ib.requestUpstream != nil {
			ib.requestUpstream(int64(ib.batchSize))
		}
	}
	return element
}

// IsEmpty reports whether there is no element ready for Dequeue.
func (ib *InputBuffer) IsEmpty() bool { return len(ib.queue) == 0 }

// Complete marks the upstream as gracefully exhausted. Already-queued
// elements remain available to Dequeue.
func (ib *InputBuffer) Complete() { ib.completed = true }

// Cancel marks the upstream as abandoned (due to a failure or a downstream
// cancellation propagating upstream) and discards any queued elements:
// they can never be delivered to a cancelled output. Idempotent: the
// installed canceller is invoked at most once, and not at all if the
// upstream had already completed gracefully.
func (ib *InputBuffer) Cancel() {
	if ib.cancelled {
		return
	}
	ib.cancelled = true
	ib.queue = nil
	if !ib.completed && ib.cancelUpstream != nil {
		ib.cancelUpstream()
	}
}

// NeedsInput reports the TransferState of this buffer alone: ready when at
// least one element is queued, completed once the upstream has completed
// or been cancelled and the queue has drained.
func (ib *InputBuffer) NeedsInput() transferstate.TransferState {
	drained := (ib.completed || ib.cancelled) && ib.IsEmpty()
	return transferstate.New(!ib.IsEmpty(), drained)
}

// Source is the uniform view a processor holds over either a live
// InputBuffer or the zero-input EmptyInputs sentinel, letting variants with
// no upstream (e.g. a pure generator) share the same transfer-loop shape as
// variants with one.
type Source interface {
	NeedsInput() transferstate.TransferState
	IsEmpty() bool
	Dequeue() any
}

// EmptyInputs is a Source with no upstream: permanently empty and
// permanently completed, so And-ing it into a variant's TransferState never
// blocks and never prevents shutdown.
type EmptyInputs struct{}

func (EmptyInputs) NeedsInput() transferstate.TransferState {
	return transferstate.New(false, true)
}
func (EmptyInputs) IsEmpty() bool { return true }
func (EmptyInputs) Dequeue() any {
	panic("inputbuffer: Dequeue called on EmptyInputs")
}

var (
	_ Source = (*InputBuffer)(nil)
	_ Source = EmptyInputs{}
)
