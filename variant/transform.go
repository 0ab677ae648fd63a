// Package variant implements the concrete processor capabilities: the
// per-stage transfer logic plugged into a processor.Processor. Each type
// here implements processor.Capability and owns none of the backpressure
// machinery itself — that lives in inputbuffer and fanout — only the
// business logic of what to do with one dequeued element.
package variant

import (
	"github.com/flowkit/reactor/fanout"
	"github.com/flowkit/reactor/inputbuffer"
	"github.com/flowkit/reactor/transferstate"
)

// MapFunction transforms one element of type T into one element of type R.
type MapFunction[T, R any] func(T) R

// Transform applies a MapFunction to every element that passes through.
//
// in  -- 1 -- 2 ---- 3 -- 4 ------ 5 --
//
// [ ------------ MapFunction --------- ]
//
// out -- 1' - 2' --- 3' - 4' ----- 5' -
type Transform[T, R any] struct {
	fn MapFunction[T, R]
}

// NewTransform returns a Transform capability driven by fn.
func NewTransform[T, R any](fn MapFunction[T, R]) *Transform[T, R] {
	return &Transform[T, R]{fn: fn}
}

func (t *Transform[T, R]) InitialTransferState() transferstate.TransferState {
	return transferstate.New(true, false)
}

func (t *Transform[T, R]) Transfer(in inputbuffer.Source, out *fanout.OutputFanOut) transferstate.TransferState {
	element := in.Dequeue().(T)
	out.EnqueueOutputElement(t.fn(element))
	return transferstate.New(true, false)
}
