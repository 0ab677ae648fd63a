package variant

import (
	"github.com/flowkit/reactor/fanout"
	"github.com/flowkit/reactor/inputbuffer"
	"github.com/flowkit/reactor/transferstate"
)

// FilterPredicate reports whether an element should pass downstream.
type FilterPredicate[T any] func(T) bool

// Filter discards elements that do not match its predicate.
//
// in  -- 1 -- 2 ---- 3 -- 4 ------ 5 --
//
// [ -------- FilterPredicate -------- ]
//
// out -- 1 -- 2 ------------------ 5 --
//
// A Filter step that drops an element still counts as one transfer: it
// dequeues from the input but produces nothing into the output, so the
// pump immediately re-evaluates TransferState rather than reporting
// itself ready with nothing to show for it.
type Filter[T any] struct {
	predicate FilterPredicate[T]
}

// NewFilter returns a Filter capability driven by predicate.
func NewFilter[T any](predicate FilterPredicate[T]) *Filter[T] {
	return &Filter[T]{predicate: predicate}
}

func (f *Filter[T]) InitialTransferState() transferstate.TransferState {
	return transferstate.New(true, false)
}

func (f *Filter[T]) Transfer(in inputbuffer.Source, out *fanout.OutputFanOut) transferstate.TransferState {
	element := in.Dequeue().(T)
	if f.predicate(element) {
		out.EnqueueOutputElement(element)
	}
	return transferstate.New(true, false)
}
