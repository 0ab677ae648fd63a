// Package reactor defines the narrow capability contracts shared by the
// processor core and its variants and connectors: the reactive-streams
// vocabulary (Publisher, Subscriber, Subscription, UpstreamHandle) and the
// Signal types that cross a processor's boundary.
//
// It plays the same role for this module that streams.go plays for the
// teacher: a small, dependency-free file of interfaces that every other
// package in the module is built around.
package reactor

// SubscriptionID identifies a single downstream subscription for the
// lifetime of a processor. IDs are assigned by the OutputFanOut and are
// never reused within one processor instance.
type SubscriptionID uint64

// UpstreamHandle is the capability a processor holds over its upstream
// publisher. It is idempotent after Cancel: calling either method again
// has no observable effect.
type UpstreamHandle interface {
	// Request asks the upstream publisher for n additional elements.
	// n must be a positive integer; callers never request 0 or a negative
	// amount.
	Request(n int64)
	// Cancel tells the upstream publisher this subscriber is no longer
	// interested. Idempotent.
	Cancel()
}

// Subscriber is the downstream capability a processor calls into: onNext,
// onComplete, onError. Exactly one of OnComplete or OnError is ever called,
// and never after the other, and never after Cancel has been observed by
// the publisher side.
type Subscriber interface {
	// OnSubscribe is called exactly once, before any other method, with
	// the Subscription the subscriber can use to request elements or
	// cancel.
	OnSubscribe(subscription Subscription)
	// OnNext delivers one element. Never called more times than the
	// cumulative demand the subscriber has requested.
	OnNext(element any)
	// OnComplete signals graceful completion. Terminal.
	OnComplete()
	// OnError signals failure. Terminal.
	OnError(cause error)
}

// Subscription is the capability a subscriber holds over a publisher: it
// may request more elements or cancel. Safe for concurrent use.
type Subscription interface {
	// Request asks for n additional elements. A non-positive n is a
	// protocol violation and fails the subscriber with ErrNonPositiveDemand.
	Request(n int64)
	// Cancel withdraws the subscription. Idempotent.
	Cancel()
}

// Publisher exposes a stream of elements to subscribers under demand-driven
// backpressure. A single Publisher may be subscribed to by many
// subscribers; each gets an independent Subscription and cursor.
type Publisher interface {
	Subscribe(subscriber Subscriber)
}

// PublisherHandle is the Publisher-facing capability exposed to a
// processor's own actor loop via the ExposedPublisher signal. It is
// deliberately the same interface as Publisher: the handle a materializer
// holds and the handle the actor is told about are the same object, so
// that replies racing the ExposedPublisher signal are impossible to
// observe before the actor itself learns about its own publisher.
type PublisherHandle = Publisher
