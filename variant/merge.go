package variant

import (
	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/fanout"
	"github.com/flowkit/reactor/inputbuffer"
	"github.com/flowkit/reactor/processor"
	"github.com/flowkit/reactor/transferstate"
)

// mergeCapability is the identity Capability sitting on top of a
// multiSource: every element the fan-in Source produces is forwarded
// downstream unchanged, interleaved in whatever order it arrived.
// Subscribing to the upstreams is deferred to PublisherExposed so that an
// upstream which chains synchronously into a Wake signal can never arrive
// before this processor's own publisher has been exposed to its actor.
type mergeCapability struct {
	source    *multiSource
	upstreams []reactor.Publisher
	waker     func()
}

func (m *mergeCapability) InitialTransferState() transferstate.TransferState {
	return transferstate.New(true, false)
}

func (m *mergeCapability) Transfer(in inputbuffer.Source, out *fanout.OutputFanOut) transferstate.TransferState {
	out.EnqueueOutputElement(in.Dequeue())
	return transferstate.New(true, false)
}

// PublisherExposed implements processor.PublisherExposedHook.
func (m *mergeCapability) PublisherExposed(reactor.PublisherHandle) {
	m.source.start(m.upstreams, m.waker)
}

// NewMerge builds a processor whose output interleaves elements from every
// given upstream Publisher as they arrive. It closes only once every
// upstream has completed.
func NewMerge(settings reactor.MaterializerSettings, upstreams ...reactor.Publisher) (*processor.Processor, error) {
	source := newMultiSource(len(upstreams))
	capability := &mergeCapability{source: source, upstreams: upstreams}
	p, err := processor.NewWithSource(settings, capability, source)
	if err != nil {
		return nil, err
	}
	capability.waker = p.Waker()
	p.Start()
	return p, nil
}
