// Package fanout implements OutputFanOut: the shared output buffer a
// processor uses to serve many independent downstream subscribers from a
// single upstream transfer function. Each subscriber tracks its own
// cursor and its own outstanding demand; elements are retained only until
// every registered subscriber has consumed them, then evicted.
package fanout

import (
	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/transferstate"
)

// subscriberState tracks one registered subscriber's position in the
// shared buffer and its outstanding demand.
type subscriberState struct {
	subscriber reactor.Subscriber
	cursor     uint64 // absolute sequence number of the next element to deliver
	demand     int64
	cancelled  bool
}

// OutputFanOut is the shared, sequence-numbered output buffer a processor
// drains into and many subscribers drain from. It is mutated only by the
// owning processor's own goroutine.
type OutputFanOut struct {
	maxCapacity int

	// buf holds elements at absolute sequence numbers [base, base+len(buf)).
	buf  []any
	base uint64
	tail uint64 // next sequence number to be assigned on EnqueueOutputElement

	subs      map[reactor.SubscriptionID]*subscriberState
	nextID    reactor.SubscriptionID
	makeSub   func(id reactor.SubscriptionID) reactor.Subscription
	completed bool
	abortErr  error
}

// New constructs an OutputFanOut with the given initial capacity hint
// (grown lazily up to maxCapacity) and the subscription factory the owning
// processor uses to hand each new subscriber a Subscription that routes
// Request/Cancel back into the processor's own mailbox, never touching
// OutputFanOut state directly from the subscriber's calling goroutine.
func New(initialCapacity, maxCapacity int, makeSub func(reactor.SubscriptionID) reactor.Subscription) *OutputFanOut {
	return &OutputFanOut{
		maxCapacity: maxCapacity,
		buf:         make([]any, 0, initialCapacity),
		subs:        make(map[reactor.SubscriptionID]*subscriberState),
		makeSub:     makeSub,
	}
}

// RegisterSubscriber admits a new downstream subscriber, assigns it a
// SubscriptionID, calls its OnSubscribe with a routed Subscription, and
// positions its cursor at the current tail: a late subscriber only ever
// sees elements enqueued after it joined.
func (f *OutputFanOut) RegisterSubscriber(sub reactor.Subscriber) reactor.SubscriptionID {
	f.nextID++
	id := f.nextID
	f.subs[id] = &subscriberState{subscriber: sub, cursor: f.tail}
	sub.OnSubscribe(f.makeSub(id))
	return id
}

// MoreRequested records additional demand from a subscriber and attempts
// immediate delivery; it is a no-op for an unknown or already-cancelled id.
func (f *OutputFanOut) MoreRequested(id reactor.SubscriptionID, n int64) {
	st, ok := f.subs[id]
	if !ok || st.cancelled {
		return
	}
	st.demand += n
	f.deliver(st)
	f.evict()
}

// UnregisterSubscription withdraws a subscriber. Already-delivered state is
// left as is; the subscriber is removed from eviction accounting so it can
// no longer hold buffered elements hostage.
func (f *OutputFanOut) UnregisterSubscription(id reactor.SubscriptionID) {
	if st, ok := f.subs[id]; ok {
		st.cancelled = true
		delete(f.subs, id)
		f.evict()
	}
}

// EnqueueOutputElement appends one element produced by the transfer
// function, assigning it the next absolute sequence number, then attempts
// immediate delivery to every subscriber with outstanding demand.
func (f *OutputFanOut) EnqueueOutputElement(element any) {
	f.buf = append(f.buf, element)
	f.tail++
	for _, st := range f.subs {
		f.deliver(st)
	}
	f.evict()
}

// deliver pushes as many buffered elements as st's cursor and demand allow,
// then completes the subscriber if the buffer itself has been marked
// completed and st has now caught all the way up to the tail.
func (f *OutputFanOut) deliver(st *subscriberState) {
	for st.demand > 0 && st.cursor < f.tail {
		idx := st.cursor - f.base
		st.subscriber.OnNext(f.buf[idx])
		st.cursor++
		st.demand--
	}
	if f.completed && f.abortErr == nil && st.cursor >= f.tail && !st.cancelled {
		st.subscriber.OnComplete()
		st.cancelled = true
	}
}

// evict drops buffered elements that every remaining subscriber has
// already consumed, keeping the shared buffer bounded by the slowest
// subscriber rather than by the fastest.
func (f *OutputFanOut) evict() {
	if len(f.subs) == 0 {
		f.buf = f.buf[:0]
		f.base = f.tail
		return
	}
	min := f.tail
	for _, st := range f.subs {
		if st.cursor < min {
			min = st.cursor
		}
	}
	if min > f.base {
		drop := min - f.base
		f.buf = f.buf[drop:]
		f.base = min
	}
}

// Complete marks the output as gracefully exhausted: once every buffered
// element has been delivered and evicted, each subscriber's OnComplete is
// called exactly once.
func (f *OutputFanOut) Complete() {
	f.completed = true
	for _, st := range f.subs {
		f.deliver(st)
	}
	f.evict()
}

// Abort marks the output as failed: every subscriber is told OnError
// immediately, regardless of undelivered buffered elements, since the
// transfer function can no longer make progress.
func (f *OutputFanOut) Abort(cause error) {
	f.completed = true
	f.abortErr = cause
	for id, st := range f.subs {
		st.subscriber.OnError(cause)
		delete(f.subs, id)
	}
}

// activeCount returns how many registered subscribers have not yet been
// delivered their terminal signal.
func (f *OutputFanOut) activeCount() int {
	n := 0
	for _, st := range f.subs {
		if !st.cancelled {
			n++
		}
	}
	return n
}

// Drained reports whether every registered subscriber has now received
// its terminal signal (or cancelled): once true after Complete or Abort
// has been called, the processor holding this buffer may finish shutting
// down.
func (f *OutputFanOut) Drained() bool {
	return f.completed && f.activeCount() == 0
}

// isFull reports whether the shared buffer has grown to its configured cap
// without having been evicted, i.e. the slowest live subscriber has fallen
// maxCapacity elements behind the tail. Further production must wait for
// that subscriber to request more before the pump is allowed to run again.
func (f *OutputFanOut) isFull() bool {
	return int(f.tail-f.base) >= f.maxCapacity
}

// NeedsDemand reports the TransferState of this buffer alone: ready when at
// least one active subscriber has outstanding demand and the shared buffer
// has not filled to capacity, completed once Complete or Abort has been
// called and no active subscriber remains.
func (f *OutputFanOut) NeedsDemand() transferstate.TransferState {
	active := f.activeCount()
	if active == 0 {
		return transferstate.New(false, f.completed)
	}
	if f.isFull() {
		return transferstate.New(false, false)
	}
	for _, st := range f.subs {
		if !st.cancelled && st.demand > 0 {
			return transferstate.New(true, false)
		}
	}
	return transferstate.New(false, false)
}

// NeedsDemandOrCancel is NeedsDemand widened to also admit progress when
// every subscriber has cancelled: a processor variant that only pushes
// elements out (no side channel) must still be able to shut down once it
// has nobody left to serve. Before the first subscriber has registered it
// is not ready, so nothing is produced for an empty audience.
func (f *OutputFanOut) NeedsDemandOrCancel() transferstate.TransferState {
	if f.activeCount() == 0 && f.nextID > 0 {
		return transferstate.New(true, f.completed)
	}
	return f.NeedsDemand()
}
