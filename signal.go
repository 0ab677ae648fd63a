package reactor

// Signal is the tagged variant over the reactive-streams vocabulary that
// crosses a processor's boundary. Every concrete signal type below
// implements the marker method so a processor can safely type switch over
// an inbound Signal.
type Signal interface {
	signal()
}

// OnSubscribe is upstream-ingress: the upstream publisher has accepted the
// processor's subscription and handed it the capability to request more
// elements or cancel.
type OnSubscribe struct {
	Upstream UpstreamHandle
}

// OnNext is upstream-ingress: one element arrived from the upstream
// publisher.
type OnNext struct {
	Element any
}

// OnComplete is upstream-ingress: the upstream publisher has no more
// elements to send.
type OnComplete struct{}

// OnError is upstream-ingress: the upstream publisher failed.
type OnError struct {
	Cause error
}

// SubscribePending is downstream-ingress: at least one new subscriber is
// waiting to be registered with the OutputFanOut.
type SubscribePending struct {
	Subscriber Subscriber
}

// RequestMore is downstream-ingress: a registered subscriber has requested
// n additional elements.
type RequestMore struct {
	SubscriptionID SubscriptionID
	N              int64
}

// Cancel is downstream-ingress: a registered subscriber has withdrawn.
type Cancel struct {
	SubscriptionID SubscriptionID
}

// Wake carries no data; it tells a processor to re-evaluate its
// TransferState. A Capability whose Source is fed from outside the normal
// OnNext signal path (a fan-in variant merging several upstreams on its
// own background goroutines) enqueues Wake whenever it appends to that
// Source, since the actor otherwise has no way to learn the Source's
// readiness changed.
type Wake struct{}

// ExposedPublisher is materializer-ingress: the processor's own downstream
// Publisher facade has been constructed and handed to the materializer.
// It must always be the first signal a processor observes; any outbound
// signal a processor variant wants to emit (e.g. subscribing to a second
// upstream for a fan-in variant) must be deferred until this signal is
// processed, via the variant's publisherExposed hook.
type ExposedPublisher struct {
	Publisher PublisherHandle
}

func (OnSubscribe) signal()      {}
func (OnNext) signal()           {}
func (OnComplete) signal()       {}
func (OnError) signal()          {}
func (SubscribePending) signal() {}
func (RequestMore) signal()      {}
func (Cancel) signal()           {}
func (ExposedPublisher) signal() {}
func (Wake) signal()             {}
