package variant

import (
	"sync"

	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/fanout"
	"github.com/flowkit/reactor/inputbuffer"
	"github.com/flowkit/reactor/processor"
	"github.com/flowkit/reactor/transferstate"
)

// concatSource drains its upstreams strictly in order: the second is not
// subscribed to until the first has completed, so elements from later
// upstreams can never overtake elements from earlier ones.
type concatSource struct {
	mu        sync.Mutex
	queue     []any
	upstreams []reactor.Publisher
	next      int
	done      bool
	wake      func()
}

func newConcatSource(upstreams []reactor.Publisher) *concatSource {
	return &concatSource{upstreams: upstreams}
}

func (s *concatSource) start(wake func()) {
	s.wake = wake
	s.subscribeNext()
}

func (s *concatSource) subscribeNext() {
	s.mu.Lock()
	if s.next >= len(s.upstreams) {
		s.done = true
		s.mu.Unlock()
		if s.wake != nil {
			s.wake()
		}
		return
	}
	up := s.upstreams[s.next]
	s.next++
	s.mu.Unlock()
	up.Subscribe(&concatSourceSubscriber{source: s})
}

func (s *concatSource) NeedsInput() transferstate.TransferState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return transferstate.New(len(s.queue) > 0, s.done && len(s.queue) == 0)
}

func (s *concatSource) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) == 0
}

func (s *concatSource) Dequeue() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	element := s.queue[0]
	s.queue = s.queue[1:]
	return element
}

func (s *concatSource) enqueue(element any) {
	s.mu.Lock()
	s.queue = append(s.queue, element)
	s.mu.Unlock()
	if s.wake != nil {
		s.wake()
	}
}

// concatSourceSubscriber is concat's per-upstream subscriber: unlike
// multiSourceSubscriber's OnComplete, which just decrements a shared
// counter, this one advances to the next upstream in sequence.
type concatSourceSubscriber struct {
	source *concatSource
}

func (c *concatSourceSubscriber) OnSubscribe(sub reactor.Subscription) {
	const unboundedDemand = 1 << 30
	sub.Request(unboundedDemand)
}
func (c *concatSourceSubscriber) OnNext(element any) { c.source.enqueue(element) }
func (c *concatSourceSubscriber) OnComplete()        { c.source.subscribeNext() }
func (c *concatSourceSubscriber) OnError(error)      { c.source.subscribeNext() }

// concatCapability forwards elements from the concatSource downstream
// unchanged, preserving upstream order. Subscribing to the first upstream
// is deferred to PublisherExposed for the same reason mergeCapability
// defers it: no outbound subscription may happen before this processor's
// own publisher is exposed to its actor.
type concatCapability struct {
	source *concatSource
	waker  func()
}

func (c *concatCapability) InitialTransferState() transferstate.TransferState {
	return transferstate.New(true, false)
}

func (c *concatCapability) Transfer(in inputbuffer.Source, out *fanout.OutputFanOut) transferstate.TransferState {
	out.EnqueueOutputElement(in.Dequeue())
	return transferstate.New(true, false)
}

// PublisherExposed implements processor.PublisherExposedHook.
func (c *concatCapability) PublisherExposed(reactor.PublisherHandle) {
	c.source.start(c.waker)
}

// NewConcat builds a processor that drains each given upstream fully, in
// order, before subscribing to the next.
func NewConcat(settings reactor.MaterializerSettings, upstreams ...reactor.Publisher) (*processor.Processor, error) {
	source := newConcatSource(upstreams)
	capability := &concatCapability{source: source}
	p, err := processor.NewWithSource(settings, capability, source)
	if err != nil {
		return nil, err
	}
	capability.waker = p.Waker()
	p.Start()
	return p, nil
}
