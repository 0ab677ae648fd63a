package processor

import (
	"testing"
	"time"

	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/fanout"
	"github.com/flowkit/reactor/inputbuffer"
	"github.com/flowkit/reactor/internal/assert"
	"github.com/flowkit/reactor/transferstate"
)

// passthroughCapability is the simplest possible Capability: whenever
// there is an element and demand, dequeue one and enqueue it unchanged.
type passthroughCapability struct{}

func (passthroughCapability) InitialTransferState() transferstate.TransferState {
	return transferstate.New(true, false)
}

func (passthroughCapability) Transfer(in inputbuffer.Source, out *fanout.OutputFanOut) transferstate.TransferState {
	out.EnqueueOutputElement(in.Dequeue())
	return transferstate.New(true, false)
}

type fakeUpstream struct {
	requested []int64
	cancelled bool
}

func (f *fakeUpstream) Request(n int64) { f.requested = append(f.requested, n) }
func (f *fakeUpstream) Cancel()         { f.cancelled = true }

type recordingSubscriber struct {
	received  []any
	completed bool
	err       error
	sub       reactor.Subscription
}

func (r *recordingSubscriber) OnSubscribe(s reactor.Subscription) { r.sub = s }
func (r *recordingSubscriber) OnNext(v any)                       { r.received = append(r.received, v) }
func (r *recordingSubscriber) OnComplete()                        { r.completed = true }
func (r *recordingSubscriber) OnError(err error)                  { r.err = err }

func eventually(t *testing.T, cond func() bool) {
	assert.Eventually(t, time.Second, time.Millisecond, cond)
}

func TestProcessorDeliversElementsToSubscriber(t *testing.T) {
	settings := reactor.DefaultMaterializerSettings()
	p, err := New(settings, passthroughCapability{})
	assert.NoError(t, err)
	p.Start()

	sub := &recordingSubscriber{}
	p.Publisher().Subscribe(sub)
	eventually(t, func() bool { return sub.sub != nil })
	sub.sub.Request(2)

	up := &fakeUpstream{}
	p.UpstreamSubscriber().OnSubscribe(up)
	eventually(t, func() bool { return len(up.requested) > 0 })

	p.UpstreamSubscriber().OnNext("a")
	p.UpstreamSubscriber().OnNext("b")

	eventually(t, func() bool { return len(sub.received) == 2 })
	assert.Equal(t, sub.received, []any{"a", "b"})
}

func TestProcessorCompletesSubscriberAfterUpstreamCompletes(t *testing.T) {
	settings := reactor.DefaultMaterializerSettings()
	p, err := New(settings, passthroughCapability{})
	assert.NoError(t, err)
	p.Start()

	sub := &recordingSubscriber{}
	p.Publisher().Subscribe(sub)
	eventually(t, func() bool { return sub.sub != nil })
	sub.sub.Request(1)

	up := &fakeUpstream{}
	p.UpstreamSubscriber().OnSubscribe(up)
	p.UpstreamSubscriber().OnNext("only")
	p.UpstreamSubscriber().OnComplete()

	eventually(t, func() bool { return sub.completed })
	assert.Equal(t, sub.received, []any{"only"})
}

func TestProcessorPropagatesUpstreamError(t *testing.T) {
	settings := reactor.DefaultMaterializerSettings()
	p, err := New(settings, passthroughCapability{})
	assert.NoError(t, err)
	p.Start()

	sub := &recordingSubscriber{}
	p.Publisher().Subscribe(sub)
	eventually(t, func() bool { return sub.sub != nil })

	up := &fakeUpstream{}
	p.UpstreamSubscriber().OnSubscribe(up)

	cause := assertableError{"boom"}
	p.UpstreamSubscriber().OnError(cause)
	eventually(t, func() bool { return sub.err != nil })
	assert.Equal(t, sub.err, error(cause))
}

type assertableError struct{ msg string }

func (e assertableError) Error() string { return e.msg }

// TestBackpressureBoundsOutstandingUpstreamDemand is Scenario A: with a
// max input buffer of 4 and zero downstream demand, upstream must never
// see more than the initial prefetch requested until the consumer asks
// for elements.
func TestBackpressureBoundsOutstandingUpstreamDemand(t *testing.T) {
	settings := reactor.MaterializerSettings{
		InitialInputBufferSize: 4, MaxInputBufferSize: 4,
		InitialFanOutBufferSize: 4, MaxFanOutBufferSize: 4,
	}
	p, err := New(settings, passthroughCapability{})
	assert.NoError(t, err)
	p.Start()

	sub := &recordingSubscriber{}
	p.Publisher().Subscribe(sub)
	eventually(t, func() bool { return sub.sub != nil })

	up := &fakeUpstream{}
	p.UpstreamSubscriber().OnSubscribe(up)
	eventually(t, func() bool { return len(up.requested) > 0 })

	p.UpstreamSubscriber().OnNext(1)
	p.UpstreamSubscriber().OnNext(2)
	p.UpstreamSubscriber().OnNext(3)
	p.UpstreamSubscriber().OnNext(4)

	var total int64
	for _, n := range up.requested {
		total += n
	}
	assert.Equal(t, total, int64(4))

	sub.sub.Request(2)
	eventually(t, func() bool { return len(sub.received) == 2 })
	assert.Equal(t, sub.received, []any{1, 2})
}

// TestLateSubscriberNeverSeesAlreadyDrainedElements is Scenario C.
func TestLateSubscriberNeverSeesAlreadyDrainedElements(t *testing.T) {
	settings := reactor.DefaultMaterializerSettings()
	p, err := New(settings, passthroughCapability{})
	assert.NoError(t, err)
	p.Start()

	first := &recordingSubscriber{}
	p.Publisher().Subscribe(first)
	eventually(t, func() bool { return first.sub != nil })
	first.sub.Request(10)

	up := &fakeUpstream{}
	p.UpstreamSubscriber().OnSubscribe(up)
	for i := 1; i <= 10; i++ {
		p.UpstreamSubscriber().OnNext(i)
	}
	eventually(t, func() bool { return len(first.received) == 10 })

	late := &recordingSubscriber{}
	p.Publisher().Subscribe(late)
	eventually(t, func() bool { return late.sub != nil })
	late.sub.Request(5)

	p.UpstreamSubscriber().OnNext(11)
	p.UpstreamSubscriber().OnNext(12)
	eventually(t, func() bool { return len(late.received) == 2 })
	assert.Equal(t, late.received, []any{11, 12})
}

// TestMidStreamCancelDoesNotAffectOtherSubscribers is Scenario D.
func TestMidStreamCancelDoesNotAffectOtherSubscribers(t *testing.T) {
	settings := reactor.DefaultMaterializerSettings()
	p, err := New(settings, passthroughCapability{})
	assert.NoError(t, err)
	p.Start()

	a := &recordingSubscriber{}
	b := &recordingSubscriber{}
	p.Publisher().Subscribe(a)
	p.Publisher().Subscribe(b)
	eventually(t, func() bool { return a.sub != nil && b.sub != nil })
	a.sub.Request(100)
	b.sub.Request(10)

	up := &fakeUpstream{}
	p.UpstreamSubscriber().OnSubscribe(up)
	p.UpstreamSubscriber().OnNext(1)
	p.UpstreamSubscriber().OnNext(2)
	p.UpstreamSubscriber().OnNext(3)
	eventually(t, func() bool { return len(a.received) == 3 && len(b.received) == 3 })

	a.sub.Cancel()
	eventually(t, func() bool { return true })

	p.UpstreamSubscriber().OnNext(4)
	eventually(t, func() bool { return len(b.received) == 4 })
	assert.Equal(t, a.received, []any{1, 2, 3})
	assert.Equal(t, b.received, []any{1, 2, 3, 4})
}

// TestEarlyUpstreamCompletionYieldsOnlyOnComplete is Scenario B.
func TestEarlyUpstreamCompletionYieldsOnlyOnComplete(t *testing.T) {
	settings := reactor.DefaultMaterializerSettings()
	p, err := New(settings, passthroughCapability{})
	assert.NoError(t, err)
	p.Start()

	// The upstream publisher completes before ever calling OnSubscribe.
	p.UpstreamSubscriber().OnComplete()

	sub := &recordingSubscriber{}
	p.Publisher().Subscribe(sub)
	eventually(t, func() bool { return sub.sub != nil })
	sub.sub.Request(1)

	eventually(t, func() bool { return sub.completed })
	assert.Equal(t, len(sub.received), 0)
}

// TestSubscribeAfterShutdownReceivesTerminalSignalOnly is Scenario F: once
// the processor has fully shut down, a new subscriber never sees onNext,
// only the terminal signal the processor itself ended with.
func TestSubscribeAfterShutdownReceivesTerminalSignalOnly(t *testing.T) {
	settings := reactor.DefaultMaterializerSettings()
	p, err := New(settings, passthroughCapability{})
	assert.NoError(t, err)
	p.Start()

	// No subscriber ever registers, and upstream completes immediately:
	// the processor shuts down gracefully with nobody downstream.
	p.UpstreamSubscriber().OnComplete()
	eventually(t, func() bool {
		closed, _ := p.mailbox.Closed()
		return closed
	})

	late := &recordingSubscriber{}
	p.Publisher().Subscribe(late)
	assert.True(t, late.sub != nil)
	assert.True(t, late.completed)
	assert.Equal(t, len(late.received), 0)
}

// TestSubscribeAfterAbortReceivesTheSameError is Scenario F's error twin.
func TestSubscribeAfterAbortReceivesTheSameError(t *testing.T) {
	settings := reactor.DefaultMaterializerSettings()
	p, err := New(settings, passthroughCapability{})
	assert.NoError(t, err)
	p.Start()

	up := &fakeUpstream{}
	p.UpstreamSubscriber().OnSubscribe(up)
	cause := assertableError{"boom"}
	p.UpstreamSubscriber().OnError(cause)
	eventually(t, func() bool {
		closed, _ := p.mailbox.Closed()
		return closed
	})

	late := &recordingSubscriber{}
	p.Publisher().Subscribe(late)
	assert.True(t, late.sub != nil)
	assert.Equal(t, late.err, error(cause))
	assert.Equal(t, len(late.received), 0)
}

// TestOnCompleteBeforeExposedPublisherIsProtocolViolation covers the state
// table's "WaitingExposedPublisher | anything else | fail with protocol
// violation" row: an OnComplete arriving before the actor has even seen
// its own publisher is not a legitimate empty stream, it is a misuse of
// the signal ordering.
func TestOnCompleteBeforeExposedPublisherIsProtocolViolation(t *testing.T) {
	settings := reactor.DefaultMaterializerSettings()
	p, err := New(settings, passthroughCapability{})
	assert.NoError(t, err)

	// handle is called directly, bypassing Start, so the actor is still in
	// its zero-value stateWaitingExposedPublisher.
	p.handle(reactor.OnComplete{})
	assert.Equal(t, p.state, stateShutDown)
	assert.ErrorIs(t, p.shutdownCause, reactor.ErrProtocolViolation)
}

// TestOnErrorBeforeExposedPublisherIsProtocolViolation is OnError's twin of
// the above: the reported cause is the protocol violation, not whatever
// sig.Cause happened to carry, since no upstream exists yet to legitimately
// report that cause.
func TestOnErrorBeforeExposedPublisherIsProtocolViolation(t *testing.T) {
	settings := reactor.DefaultMaterializerSettings()
	p, err := New(settings, passthroughCapability{})
	assert.NoError(t, err)

	p.handle(reactor.OnError{Cause: assertableError{"boom"}})
	assert.Equal(t, p.state, stateShutDown)
	assert.ErrorIs(t, p.shutdownCause, reactor.ErrProtocolViolation)
}
