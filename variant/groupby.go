package variant

import (
	"github.com/flowkit/reactor/fanout"
	"github.com/flowkit/reactor/inputbuffer"
	"github.com/flowkit/reactor/transferstate"
)

// Keyed pairs a value with the key its GroupBy capability extracted from
// it. A processor exposes exactly one OutputFanOut, so partitioning by key
// is expressed by tagging elements rather than by routing to separate
// downstream publishers; a subscriber that only wants one key's elements
// filters on Key itself.
type Keyed[K comparable, V any] struct {
	Key   K
	Value V
}

// KeySelector extracts the partition key from an element.
type KeySelector[K comparable, V any] func(V) K

// GroupBy tags every element with the key its KeySelector extracts,
// preserving arrival order.
type GroupBy[K comparable, V any] struct {
	selector KeySelector[K, V]
}

// NewGroupBy returns a GroupBy capability driven by selector.
func NewGroupBy[K comparable, V any](selector KeySelector[K, V]) *GroupBy[K, V] {
	return &GroupBy[K, V]{selector: selector}
}

func (g *GroupBy[K, V]) InitialTransferState() transferstate.TransferState {
	return transferstate.New(true, false)
}

func (g *GroupBy[K, V]) Transfer(in inputbuffer.Source, out *fanout.OutputFanOut) transferstate.TransferState {
	element := in.Dequeue().(V)
	out.EnqueueOutputElement(Keyed[K, V]{Key: g.selector(element), Value: element})
	return transferstate.New(true, false)
}
