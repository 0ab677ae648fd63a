// Package bridge adapts the plain push-channel shape every connector in
// this module naturally produces (an unbuffered chan any a goroutine
// either fills or drains) into the demand-driven reactor.Publisher and
// reactor.Subscriber contracts the processor core speaks. It is the seam
// between "channel idiom", which every connector below is written in, and
// "protocol idiom", which the actor core requires.
package bridge

import (
	"sync"

	"github.com/flowkit/reactor"
)

// FromChannel adapts a plain receive-only channel into a reactor.Publisher:
// each subscriber gets its own independent cursor over a small internal
// queue fed by one goroutine draining ch, so a slow subscriber never
// blocks a fast one and vice versa. Closing ch completes every current and
// future subscriber.
type FromChannel struct {
	mu   sync.Mutex
	subs []*channelSubscription
	buf  []any
	done bool
	err  error
}

// NewFromChannel starts draining ch in the background and returns the
// Publisher view over it.
func NewFromChannel(ch <-chan any) *FromChannel {
	f := &FromChannel{}
	go f.drain(ch)
	return f
}

func (f *FromChannel) drain(ch <-chan any) {
	for element := range ch {
		f.mu.Lock()
		f.buf = append(f.buf, element)
		subs := append([]*channelSubscription(nil), f.subs...)
		f.mu.Unlock()
		for _, s := range subs {
			s.deliverOne()
		}
	}
	f.mu.Lock()
	f.done = true
	subs := append([]*channelSubscription(nil), f.subs...)
	f.mu.Unlock()
	for _, s := range subs {
		s.deliverOne()
	}
}

func (f *FromChannel) Subscribe(subscriber reactor.Subscriber) {
	f.mu.Lock()
	sub := &channelSubscription{publisher: f, subscriber: subscriber, cursor: 0}
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	subscriber.OnSubscribe(sub)
}

type channelSubscription struct {
	mu         sync.Mutex
	publisher  *FromChannel
	subscriber reactor.Subscriber
	cursor     int
	demand     int64
	cancelled  bool
}

func (s *channelSubscription) Request(n int64) {
	if n <= 0 {
		s.subscriber.OnError(reactor.ErrNonPositiveDemand)
		return
	}
	s.mu.Lock()
	s.demand += n
	s.mu.Unlock()
	s.deliverOne()
}

func (s *channelSubscription) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

func (s *channelSubscription) deliverOne() {
	for {
		s.mu.Lock()
		if s.cancelled || s.demand <= 0 {
			s.mu.Unlock()
			return
		}
		s.publisher.mu.Lock()
		if s.cursor >= len(s.publisher.buf) {
			completed := s.publisher.done
			err := s.publisher.err
			s.publisher.mu.Unlock()
			if completed {
				// the terminal signal goes out once; later calls stop above
				s.cancelled = true
			}
			s.mu.Unlock()
			if completed {
				if err != nil {
					s.subscriber.OnError(err)
				} else {
					s.subscriber.OnComplete()
				}
			}
			return
		}
		element := s.publisher.buf[s.cursor]
		s.publisher.mu.Unlock()
		s.cursor++
		s.demand--
		s.mu.Unlock()
		s.subscriber.OnNext(element)
	}
}

// ToChannel adapts a reactor.Publisher into a plain send-only channel:
// it subscribes with unbounded-ish demand refreshed as the channel drains,
// and closes the returned channel on completion or error.
type ToChannel struct {
	out chan any
	err error
}

// NewToChannel subscribes to publisher and returns a channel of its
// elements; the channel closes once the publisher completes or fails.
// Err returns the failure cause, if any, after the channel closes.
func NewToChannel(publisher reactor.Publisher, bufferSize int) *ToChannel {
	t := &ToChannel{out: make(chan any, bufferSize)}
	publisher.Subscribe(&toChannelSubscriber{target: t})
	return t
}

func (t *ToChannel) Out() <-chan any { return t.out }
func (t *ToChannel) Err() error      { return t.err }

type toChannelSubscriber struct {
	target *ToChannel
	sub    reactor.Subscription
}

func (s *toChannelSubscriber) OnSubscribe(sub reactor.Subscription) {
	s.sub = sub
	sub.Request(int64(cap(s.target.out)) + 1)
}

func (s *toChannelSubscriber) OnNext(element any) {
	s.target.out <- element
	s.sub.Request(1)
}

func (s *toChannelSubscriber) OnComplete() {
	close(s.target.out)
}

func (s *toChannelSubscriber) OnError(cause error) {
	s.target.err = cause
	close(s.target.out)
}
