package variant

import (
	"github.com/flowkit/reactor/fanout"
	"github.com/flowkit/reactor/inputbuffer"
	"github.com/flowkit/reactor/transferstate"
)

// Branch pairs a value with the boolean a SplitWhen predicate assigned it:
// true for the branch the predicate matched, false otherwise. As with
// GroupBy, a single shared OutputFanOut means the split is expressed as a
// tag rather than as two separate downstream publishers.
type Branch[T any] struct {
	Matched bool
	Value   T
}

// SplitPredicate reports which of the two branches an element belongs to.
type SplitPredicate[T any] func(T) bool

// SplitWhen tags every element with the branch its SplitPredicate assigned
// it, preserving arrival order across both branches.
type SplitWhen[T any] struct {
	predicate SplitPredicate[T]
}

// NewSplitWhen returns a SplitWhen capability driven by predicate.
func NewSplitWhen[T any](predicate SplitPredicate[T]) *SplitWhen[T] {
	return &SplitWhen[T]{predicate: predicate}
}

func (s *SplitWhen[T]) InitialTransferState() transferstate.TransferState {
	return transferstate.New(true, false)
}

func (s *SplitWhen[T]) Transfer(in inputbuffer.Source, out *fanout.OutputFanOut) transferstate.TransferState {
	element := in.Dequeue().(T)
	out.EnqueueOutputElement(Branch[T]{Matched: s.predicate(element), Value: element})
	return transferstate.New(true, false)
}
