// Package processor implements ProcessorActor: the single-threaded,
// mailbox-driven actor that owns one InputBuffer, one OutputFanOut, and a
// variant-specific Capability, and drives them through the pump whenever a
// signal changes their readiness.
package processor

import (
	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/fanout"
	"github.com/flowkit/reactor/inputbuffer"
	"github.com/flowkit/reactor/pump"
	"github.com/flowkit/reactor/transferstate"
)

// Signal is the vocabulary a processor's mailbox carries; it is exactly
// reactor.Signal, aliased here so variant and connector code that only
// imports processor does not also need to import reactor directly.
type Signal = reactor.Signal

// Capability is the contract a processor variant implements: its own
// readiness contribution (independent of the shared InputBuffer and
// OutputFanOut) and the single transfer step that consumes from the input
// and produces into the output.
type Capability interface {
	// InitialTransferState is this capability's own TransferState before
	// any element has been transferred. Most variants with no internal
	// state beyond the shared buffers return transferstate.New(true, false).
	InitialTransferState() transferstate.TransferState

	// Transfer performs one step: it may Dequeue zero or one elements from
	// in and EnqueueOutputElement zero or more elements into out. It
	// returns this capability's updated own-state contribution.
	Transfer(in inputbuffer.Source, out *fanout.OutputFanOut) transferstate.TransferState
}

// PublisherExposedHook is an optional Capability extension: a variant that
// needs to react to its own publisher becoming available (for example, a
// fan-in variant that must now subscribe to a second upstream) implements
// it; the actor calls it exactly once, synchronously, while handling the
// ExposedPublisher signal.
type PublisherExposedHook interface {
	PublisherExposed(publisher reactor.PublisherHandle)
}

type actorState int

const (
	stateWaitingExposedPublisher actorState = iota
	stateWaitingForUpstream
	stateRunning
	stateFlushing
	stateShutDown
)

// Processor is the ProcessorActor: it owns exactly one InputBuffer, one
// OutputFanOut, and a Capability, and serializes every mutation to them
// through its own mailbox. All fields below are touched only from loop(),
// which always executes on the single goroutine Start spawns.
type Processor struct {
	mailbox *mailbox

	state      actorState
	capability Capability
	capState   transferstate.TransferState

	input  inputbuffer.Source
	output *fanout.OutputFanOut
	pump   *pump.Pump

	upstream        reactor.UpstreamHandle
	initialPrefetch int64

	hasUpstream bool

	// shuttingDown is pump.New's onCompleted distinct from the actor-level
	// Flushing state: the actor enters Flushing the instant OnComplete is
	// observed (rejecting new OnSubscribe), but the one-time cancel +
	// clear + complete-output sequence only runs once the pump itself
	// observes an executable TransferState has gone completed, which may
	// be later, once any already-buffered elements have actually drained.
	shuttingDown bool

	// shutdownCause is the error Dispose records for late subscribers; nil
	// for a graceful completion.
	shutdownCause error

	publisher reactor.PublisherHandle

	stopped chan struct{}
}

// New constructs a Processor for a variant with exactly one upstream. The
// returned Processor is inert until Start is called.
func New(settings reactor.MaterializerSettings, capability Capability) (*Processor, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	p := &Processor{
		mailbox:     newMailbox(),
		capability:  capability,
		capState:    capability.InitialTransferState(),
		hasUpstream: true,
		stopped:     make(chan struct{}),
	}
	ib, initial := inputbuffer.NewInputBuffer(settings.MaxInputBufferSize, settings.InitialInputBufferSize)
	p.input = ib
	p.initialPrefetch = initial
	p.output = fanout.New(settings.InitialFanOutBufferSize, settings.MaxFanOutBufferSize, p.makeSubscription)
	p.pump = pump.New(p, p.onCompleted, p.fail)
	return p, nil
}

// NewWithSource constructs a Processor whose InputBuffer is replaced by a
// caller-supplied inputbuffer.Source. It is the escape hatch fan-in
// variants (Merge, Concat) use: they manage their own demand over several
// upstream publishers internally and only need the actor to treat the
// result as a single ordinary input feed. The processor never calls
// Request or Cancel on any upstream through this path; the Source
// implementation is responsible for its own upstream backpressure.
func NewWithSource(settings reactor.MaterializerSettings, capability Capability, source inputbuffer.Source) (*Processor, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	p := &Processor{
		mailbox:     newMailbox(),
		capability:  capability,
		capState:    capability.InitialTransferState(),
		input:       source,
		hasUpstream: false,
		stopped:     make(chan struct{}),
	}
	p.output = fanout.New(settings.InitialFanOutBufferSize, settings.MaxFanOutBufferSize, p.makeSubscription)
	p.pump = pump.New(p, p.onCompleted, p.fail)
	return p, nil
}

// NewSource constructs a Processor for a variant with no upstream at all
// (a pure generator): its InputBuffer is replaced with the permanently
// drained EmptyInputs sentinel, so it becomes Running the instant its
// publisher is exposed rather than waiting on an OnSubscribe that will
// never arrive.
func NewSource(settings reactor.MaterializerSettings, capability Capability) (*Processor, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	p := &Processor{
		mailbox:     newMailbox(),
		capability:  capability,
		capState:    capability.InitialTransferState(),
		input:       inputbuffer.EmptyInputs{},
		hasUpstream: false,
		stopped:     make(chan struct{}),
	}
	p.output = fanout.New(settings.InitialFanOutBufferSize, settings.MaxFanOutBufferSize, p.makeSubscription)
	p.pump = pump.New(p, p.onCompleted, p.fail)
	return p, nil
}

// Publisher returns the reactor.Publisher facade downstream subscribers
// subscribe to. It is safe to call before Start; subscriptions arriving
// before the actor loop starts are queued on the mailbox like any other
// signal.
func (p *Processor) Publisher() reactor.Publisher {
	return (*publisherFacade)(p)
}

// UpstreamSubscriber returns the reactor.Subscriber facade an upstream
// Publisher should be given to Subscribe(); it feeds OnSubscribe/OnNext/
// OnComplete/OnError back into this processor's mailbox.
func (p *Processor) UpstreamSubscriber() reactor.Subscriber {
	return (*upstreamFacade)(p)
}

// Start spawns the actor's serialized signal-processing goroutine and
// immediately delivers the ExposedPublisher signal that must be the first
// thing the actor observes.
func (p *Processor) Start() {
	go p.loop()
	p.mailbox.Enqueue(reactor.ExposedPublisher{Publisher: p.Publisher()})
}

func (p *Processor) loop() {
	for {
		p.mailbox.Wait()
		batch := p.mailbox.Dequeue()
		for i, s := range batch {
			p.handle(s)
			if p.state == stateShutDown {
				// Any SubscribePending already dequeued in this same
				// batch but not yet reached will never otherwise be
				// handled: the loop is about to return, and Dispose has
				// already closed the mailbox out from under Subscribe's
				// own fallback path. Honor it here instead.
				p.drainPendingSubscriptions(batch[i+1:])
				close(p.stopped)
				return
			}
		}
	}
}

// drainPendingSubscriptions delivers the terminal signal directly to every
// SubscribePending signal left over in a batch the actor is abandoning
// mid-iteration, so a subscriber that raced the processor's own shutdown
// inside a single mailbox batch is never simply dropped.
func (p *Processor) drainPendingSubscriptions(rest []Signal) {
	for _, s := range rest {
		sp, ok := s.(reactor.SubscribePending)
		if !ok {
			continue
		}
		sp.Subscriber.OnSubscribe(closedSubscription{})
		if p.shutdownCause != nil {
			sp.Subscriber.OnError(p.shutdownCause)
		} else {
			sp.Subscriber.OnComplete()
		}
	}
}

func (p *Processor) handle(s Signal) {
	switch sig := s.(type) {
	case reactor.ExposedPublisher:
		p.onExposedPublisher(sig)
	case reactor.OnSubscribe:
		p.onOnSubscribe(sig)
	case reactor.OnNext:
		p.onOnNext(sig)
	case reactor.OnComplete:
		p.onOnComplete()
	case reactor.OnError:
		p.onOnError(sig)
	case reactor.SubscribePending:
		p.onSubscribePending(sig)
	case reactor.RequestMore:
		p.onRequestMore(sig)
	case reactor.Cancel:
		p.onCancel(sig)
	case reactor.Wake:
		p.onWake()
	default:
		p.fail(reactor.ErrProtocolViolation)
	}
}

func (p *Processor) onExposedPublisher(sig reactor.ExposedPublisher) {
	if p.state != stateWaitingExposedPublisher {
		p.fail(reactor.ErrProtocolViolation)
		return
	}
	p.publisher = sig.Publisher
	if hook, ok := p.capability.(PublisherExposedHook); ok {
		hook.PublisherExposed(p.publisher)
	}
	if p.hasUpstream {
		p.state = stateWaitingForUpstream
	} else {
		p.state = stateRunning
		p.pump.Run()
	}
}

func (p *Processor) onOnSubscribe(sig reactor.OnSubscribe) {
	if p.state != stateWaitingForUpstream {
		p.fail(reactor.ErrProtocolViolation)
		return
	}
	p.upstream = sig.Upstream
	p.state = stateRunning
	if ib, ok := p.input.(*inputbuffer.InputBuffer); ok {
		ib.SetUpstreamRequester(p.upstream.Request)
		ib.SetUpstreamCanceller(p.upstream.Cancel)
	}
	// request the initial prefetch window computed at construction
	if n := p.initialPrefetch; n > 0 {
		p.upstream.Request(n)
	}
	p.pump.Run()
}

func (p *Processor) onOnNext(sig reactor.OnNext) {
	switch p.state {
	case stateRunning:
		ib, ok := p.input.(*inputbuffer.InputBuffer)
		if !ok {
			p.fail(reactor.ErrProtocolViolation)
			return
		}
		ib.Enqueue(sig.Element)
		p.pump.Run()
	case stateFlushing:
		// Upstream already completed or was cancelled; a further OnNext
		// breaks the reactive-streams rule that no signal follows a
		// terminal one, but the actor itself is past the point of caring
		// which cause to report, so it is simply ignored, per the state
		// table's Flushing/other row.
	default:
		p.fail(reactor.ErrProtocolViolation)
	}
}

func (p *Processor) onOnComplete() {
	switch p.state {
	case stateWaitingExposedPublisher:
		// No upstream has even been subscribed to yet: an OnComplete this
		// early is a protocol violation, not a legitimate empty stream.
		p.fail(reactor.ErrProtocolViolation)
	case stateWaitingForUpstream:
		// Upstream completed before ever sending OnSubscribe: there is no
		// subscription to request from or cancel, so the InputBuffer this
		// processor was constructed with is replaced by the permanently
		// drained EmptyInputs sentinel and the actor moves straight to
		// Running.
		p.input = inputbuffer.EmptyInputs{}
		p.state = stateRunning
		p.pump.Run()
	case stateRunning:
		if ib, ok := p.input.(*inputbuffer.InputBuffer); ok {
			ib.Complete()
		}
		p.state = stateFlushing
		p.pump.Run()
	default:
		// Flushing, ShutDown: ignore, per the state table's "other" row.
	}
}

func (p *Processor) onOnError(sig reactor.OnError) {
	switch p.state {
	case stateWaitingExposedPublisher:
		// Same reasoning as onOnComplete: there is no upstream yet for this
		// to legitimately report a failure from.
		p.fail(reactor.ErrProtocolViolation)
	case stateFlushing, stateShutDown:
		// Already terminating; ignore per the state table's "other" row.
	default:
		p.fail(sig.Cause)
	}
}

func (p *Processor) onWake() {
	if p.state != stateRunning && p.state != stateFlushing {
		return
	}
	p.pump.Run()
	p.checkDrained()
}

// Waker returns a function an externally-fed inputbuffer.Source (see
// NewWithSource) calls after appending an element, so the actor learns to
// re-evaluate its TransferState instead of staying blocked forever.
func (p *Processor) Waker() func() {
	return func() { p.mailbox.Enqueue(reactor.Wake{}) }
}

func (p *Processor) onSubscribePending(sig reactor.SubscribePending) {
	if p.state == stateShutDown {
		return
	}
	p.output.RegisterSubscriber(sig.Subscriber)
	p.pump.Run()
	p.checkDrained()
}

func (p *Processor) onRequestMore(sig reactor.RequestMore) {
	if p.state == stateShutDown {
		return
	}
	if sig.N <= 0 {
		p.fail(reactor.ErrNonPositiveDemand)
		return
	}
	p.output.MoreRequested(sig.SubscriptionID, sig.N)
	p.pump.Run()
	p.checkDrained()
}

func (p *Processor) onCancel(sig reactor.Cancel) {
	if p.state == stateShutDown {
		return
	}
	p.output.UnregisterSubscription(sig.SubscriptionID)
	p.pump.Run()
	p.checkDrained()
}

// checkDrained finishes the shutdown a Flushing processor started once
// every subscriber has received its terminal signal.
func (p *Processor) checkDrained() {
	if p.state == stateFlushing && p.output.Drained() {
		p.shutdown()
	}
}

// TransferState implements pump.Variant: the combined readiness of the
// capability's own state, the shared InputBuffer, and the shared
// OutputFanOut.
func (p *Processor) TransferState() transferstate.TransferState {
	combined := transferstate.And(p.capState, p.input.NeedsInput())
	return transferstate.And(combined, p.output.NeedsDemandOrCancel())
}

// Transfer implements pump.Variant: run one capability transfer step. Any
// upstream request the InputBuffer's batching policy calls for is issued
// from within Dequeue during that step.
func (p *Processor) Transfer() {
	p.capState = p.capability.Transfer(p.input, p.output)
}

func (p *Processor) onCompleted() {
	if p.state == stateShutDown || p.shuttingDown {
		return
	}
	p.shuttingDown = true
	p.state = stateFlushing
	p.cancelAndClearInput()
	p.output.Complete()
	p.checkDrained()
}

// cancelAndClearInput implements the pump's step 3: cancel and clear
// primaryInputs once the transfer function reports completed, discarding
// any buffered-but-not-yet-transferred elements the way InputBuffer.Cancel
// specifies. It is a no-op for sources with no real upstream handle (a
// fan-in multiSource, or EmptyInputs).
func (p *Processor) cancelAndClearInput() {
	if ib, ok := p.input.(*inputbuffer.InputBuffer); ok {
		ib.Cancel()
	}
}

// fail tears the processor down abruptly: the output is told OnError, the
// upstream subscription (if any) is cancelled, and the actor transitions
// straight to ShutDown regardless of its current state.
func (p *Processor) fail(cause error) {
	if p.state == stateShutDown {
		return
	}
	p.output.Abort(cause)
	p.cancelAndClearInput()
	p.shutdownCause = cause
	p.shutdown()
}

func (p *Processor) shutdown() {
	p.state = stateShutDown
	p.mailbox.Dispose(p.shutdownCause)
}

// makeSubscription is the OutputFanOut subscription factory: it returns a
// Subscription that routes Request/Cancel back into this processor's own
// mailbox rather than mutating OutputFanOut state from the subscriber's
// calling goroutine.
func (p *Processor) makeSubscription(id reactor.SubscriptionID) reactor.Subscription {
	return &subscriptionFacade{processor: p, id: id}
}

type subscriptionFacade struct {
	processor *Processor
	id        reactor.SubscriptionID
}

func (s *subscriptionFacade) Request(n int64) {
	s.processor.mailbox.Enqueue(reactor.RequestMore{SubscriptionID: s.id, N: n})
}

func (s *subscriptionFacade) Cancel() {
	s.processor.mailbox.Enqueue(reactor.Cancel{SubscriptionID: s.id})
}
