package variant

import (
	"math"
	"sync"

	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/transferstate"
)

// multiSource is an inputbuffer.Source fed by several upstream Publishers
// at once, each subscribed with a single request of math.MaxInt32. It is
// the Source Merge hands to processor.NewWithSource: the processor's own
// actor treats it like any other input feed, while multiSource itself
// absorbs the fan-in plumbing. It applies no backpressure of its own to
// the upstreams: its queue grows with whatever they deliver.
type multiSource struct {
	mu        sync.Mutex
	queue     []any
	remaining int // upstreams not yet completed
	wake      func()
}

func newMultiSource(upstreamCount int) *multiSource {
	return &multiSource{remaining: upstreamCount}
}

// start subscribes to every upstream. wake is called once Start has armed
// the owning processor's mailbox; subscribing earlier would let elements
// arrive before anyone could notice them.
func (s *multiSource) start(upstreams []reactor.Publisher, wake func()) {
	s.wake = wake
	for _, up := range upstreams {
		up.Subscribe(&multiSourceSubscriber{source: s})
	}
}

func (s *multiSource) NeedsInput() transferstate.TransferState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return transferstate.New(len(s.queue) > 0, s.remaining == 0 && len(s.queue) == 0)
}

func (s *multiSource) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) == 0
}

func (s *multiSource) Dequeue() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	element := s.queue[0]
	s.queue = s.queue[1:]
	return element
}

func (s *multiSource) enqueue(element any) {
	s.mu.Lock()
	s.queue = append(s.queue, element)
	s.mu.Unlock()
	if s.wake != nil {
		s.wake()
	}
}

func (s *multiSource) completeOne() {
	s.mu.Lock()
	s.remaining--
	s.mu.Unlock()
	if s.wake != nil {
		s.wake()
	}
}

type multiSourceSubscriber struct {
	source *multiSource
}

func (m *multiSourceSubscriber) OnSubscribe(sub reactor.Subscription) {
	sub.Request(math.MaxInt32)
}
func (m *multiSourceSubscriber) OnNext(element any) { m.source.enqueue(element) }
func (m *multiSourceSubscriber) OnComplete()        { m.source.completeOne() }
func (m *multiSourceSubscriber) OnError(error)      { m.source.completeOne() }
