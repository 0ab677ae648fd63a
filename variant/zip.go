package variant

import (
	"math"
	"sync"

	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/fanout"
	"github.com/flowkit/reactor/inputbuffer"
	"github.com/flowkit/reactor/processor"
	"github.com/flowkit/reactor/transferstate"
)

// zipSource holds one queue per upstream and reports an element ready only
// once every queue has at least one; Dequeue then hands back one aligned
// row (one element per upstream) that the zip capability combines.
type zipSource struct {
	mu     sync.Mutex
	queues [][]any
	done   []bool
	wake   func()
}

func newZipSource(count int) *zipSource {
	return &zipSource{queues: make([][]any, count), done: make([]bool, count)}
}

func (z *zipSource) start(upstreams []reactor.Publisher, wake func()) {
	z.wake = wake
	for i, up := range upstreams {
		up.Subscribe(&zipSourceSubscriber{source: z, index: i})
	}
}

func (z *zipSource) allReady() bool {
	for i, q := range z.queues {
		if len(q) == 0 && !z.done[i] {
			return false
		}
	}
	return true
}

func (z *zipSource) anyDone() bool {
	for _, d := range z.done {
		if d {
			return true
		}
	}
	return false
}

func (z *zipSource) NeedsInput() transferstate.TransferState {
	z.mu.Lock()
	defer z.mu.Unlock()
	return transferstate.New(z.allReady() && !z.anyDone(), z.anyDone())
}

func (z *zipSource) IsEmpty() bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	return !z.allReady() || z.anyDone()
}

// Dequeue returns one aligned row: one element from each upstream queue,
// in upstream order.
func (z *zipSource) Dequeue() any {
	z.mu.Lock()
	defer z.mu.Unlock()
	row := make([]any, len(z.queues))
	for i := range z.queues {
		row[i] = z.queues[i][0]
		z.queues[i] = z.queues[i][1:]
	}
	return row
}

func (z *zipSource) enqueue(index int, element any) {
	z.mu.Lock()
	z.queues[index] = append(z.queues[index], element)
	z.mu.Unlock()
	if z.wake != nil {
		z.wake()
	}
}

func (z *zipSource) markDone(index int) {
	z.mu.Lock()
	z.done[index] = true
	z.mu.Unlock()
	if z.wake != nil {
		z.wake()
	}
}

type zipSourceSubscriber struct {
	source *zipSource
	index  int
}

func (z *zipSourceSubscriber) OnSubscribe(sub reactor.Subscription) { sub.Request(math.MaxInt32) }
func (z *zipSourceSubscriber) OnNext(element any)                   { z.source.enqueue(z.index, element) }
func (z *zipSourceSubscriber) OnComplete()                          { z.source.markDone(z.index) }
func (z *zipSourceSubscriber) OnError(error)                        { z.source.markDone(z.index) }

// Combiner produces one downstream element from one aligned row of
// upstream elements, one per zipped Publisher, in the order they were
// given to NewZip.
type Combiner[R any] func(row []any) R

// zipCapability defers subscribing to its upstreams to PublisherExposed,
// for the same reason mergeCapability and concatCapability do: no outbound
// subscription may happen before this processor's own publisher is
// exposed to its actor.
type zipCapability[R any] struct {
	combine   Combiner[R]
	source    *zipSource
	upstreams []reactor.Publisher
	waker     func()
}

func (z *zipCapability[R]) InitialTransferState() transferstate.TransferState {
	return transferstate.New(true, false)
}

func (z *zipCapability[R]) Transfer(in inputbuffer.Source, out *fanout.OutputFanOut) transferstate.TransferState {
	row := in.Dequeue().([]any)
	out.EnqueueOutputElement(z.combine(row))
	return transferstate.New(true, false)
}

// PublisherExposed implements processor.PublisherExposedHook.
func (z *zipCapability[R]) PublisherExposed(reactor.PublisherHandle) {
	z.source.start(z.upstreams, z.waker)
}

// NewZip builds a processor that emits one combined element per aligned
// row across every given upstream Publisher, stopping the instant any one
// of them completes or fails, since no further row can be aligned once one
// side runs dry.
func NewZip[R any](settings reactor.MaterializerSettings, combine Combiner[R], upstreams ...reactor.Publisher) (*processor.Processor, error) {
	source := newZipSource(len(upstreams))
	capability := &zipCapability[R]{combine: combine, source: source, upstreams: upstreams}
	p, err := processor.NewWithSource(settings, capability, source)
	if err != nil {
		return nil, err
	}
	capability.waker = p.Waker()
	p.Start()
	return p, nil
}
