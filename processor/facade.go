package processor

import "github.com/flowkit/reactor"

// publisherFacade is the reactor.Publisher a processor hands out to
// downstream code. Subscribe never touches OutputFanOut directly: it
// enqueues a SubscribePending signal so registration happens on the
// actor's own goroutine like every other mutation. A subscriber arriving
// after the actor has already shut down would otherwise be silently
// dropped by the closed mailbox, so that case is handled here instead,
// delivering the terminal signal directly as spec.md §4.3 requires of a
// late registerSubscriber.
type publisherFacade Processor

func (f *publisherFacade) Subscribe(subscriber reactor.Subscriber) {
	p := (*Processor)(f)
	if p.mailbox.Enqueue(reactor.SubscribePending{Subscriber: subscriber}) {
		return
	}
	// The mailbox was already closed: deliver the terminal signal directly
	// rather than losing the subscription to a loop that has stopped
	// consuming.
	_, cause := p.mailbox.Closed()
	subscriber.OnSubscribe(closedSubscription{})
	if cause != nil {
		subscriber.OnError(cause)
	} else {
		subscriber.OnComplete()
	}
}

// closedSubscription is handed to a subscriber that registered after the
// processor had already shut down: there is nothing left to request or
// cancel.
type closedSubscription struct{}

func (closedSubscription) Request(int64) {}
func (closedSubscription) Cancel()       {}

// upstreamFacade is the reactor.Subscriber a processor hands to its
// upstream Publisher's Subscribe call. Every method just forwards the
// corresponding signal into the processor's own mailbox.
type upstreamFacade Processor

func (f *upstreamFacade) OnSubscribe(subscription reactor.Subscription) {
	p := (*Processor)(f)
	p.mailbox.Enqueue(reactor.OnSubscribe{Upstream: subscription})
}

func (f *upstreamFacade) OnNext(element any) {
	p := (*Processor)(f)
	p.mailbox.Enqueue(reactor.OnNext{Element: element})
}

func (f *upstreamFacade) OnComplete() {
	p := (*Processor)(f)
	p.mailbox.Enqueue(reactor.OnComplete{})
}

func (f *upstreamFacade) OnError(cause error) {
	p := (*Processor)(f)
	p.mailbox.Enqueue(reactor.OnError{Cause: cause})
}
