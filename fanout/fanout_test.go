package fanout

import (
	"errors"
	"testing"

	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/internal/assert"
)

type recordingSubscriber struct {
	received []any
	completed bool
	err      error
}

func (r *recordingSubscriber) OnSubscribe(reactor.Subscription) {}
func (r *recordingSubscriber) OnNext(v any)                     { r.received = append(r.received, v) }
func (r *recordingSubscriber) OnComplete()                      { r.completed = true }
func (r *recordingSubscriber) OnError(err error)                { r.err = err }

type noopSubscription struct{}

func (noopSubscription) Request(int64) {}
func (noopSubscription) Cancel()       {}

func newFanOut() *OutputFanOut {
	return New(4, 16, func(reactor.SubscriptionID) reactor.Subscription { return noopSubscription{} })
}

func TestLateSubscriberOnlySeesFutureElements(t *testing.T) {
	f := newFanOut()
	f.EnqueueOutputElement("early")

	sub := &recordingSubscriber{}
	id := f.RegisterSubscriber(sub)
	f.MoreRequested(id, 10)
	assert.Equal(t, len(sub.received), 0)

	f.EnqueueOutputElement("late")
	assert.Equal(t, sub.received, []any{"late"})
}

func TestDeliveryRespectsDemand(t *testing.T) {
	f := newFanOut()
	sub := &recordingSubscriber{}
	id := f.RegisterSubscriber(sub)

	f.EnqueueOutputElement("a")
	f.EnqueueOutputElement("b")
	assert.Equal(t, len(sub.received), 0)

	f.MoreRequested(id, 1)
	assert.Equal(t, sub.received, []any{"a"})

	f.MoreRequested(id, 1)
	assert.Equal(t, sub.received, []any{"a", "b"})
}

func TestEvictionWaitsForSlowestSubscriber(t *testing.T) {
	f := newFanOut()
	fast := &recordingSubscriber{}
	slow := &recordingSubscriber{}
	fastID := f.RegisterSubscriber(fast)
	slowID := f.RegisterSubscriber(slow)

	f.MoreRequested(fastID, 10)
	f.EnqueueOutputElement("x")
	assert.Equal(t, fast.received, []any{"x"})
	assert.Equal(t, f.base, uint64(0))

	f.MoreRequested(slowID, 10)
	assert.Equal(t, slow.received, []any{"x"})
	assert.Equal(t, f.base, uint64(1))
}

func TestCancelStopsHoldingBufferHostage(t *testing.T) {
	f := newFanOut()
	slow := &recordingSubscriber{}
	slowID := f.RegisterSubscriber(slow)
	f.EnqueueOutputElement("x")

	f.UnregisterSubscription(slowID)
	assert.Equal(t, f.base, uint64(1))
}

func TestCompleteDeliversOnCompleteAfterDrain(t *testing.T) {
	f := newFanOut()
	sub := &recordingSubscriber{}
	id := f.RegisterSubscriber(sub)
	f.EnqueueOutputElement("x")
	f.Complete()
	assert.True(t, !sub.completed)

	f.MoreRequested(id, 1)
	assert.True(t, sub.completed)
}

func TestFullBufferParksReadinessUntilSlowSubscriberCatchesUp(t *testing.T) {
	f := New(2, 2, func(reactor.SubscriptionID) reactor.Subscription { return noopSubscription{} })
	fast := &recordingSubscriber{}
	slow := &recordingSubscriber{}
	fastID := f.RegisterSubscriber(fast)
	slowID := f.RegisterSubscriber(slow)
	f.MoreRequested(fastID, 100)
	f.MoreRequested(slowID, 0) // slow never requests

	f.EnqueueOutputElement("a")
	assert.True(t, f.NeedsDemand().IsReady())

	// fast has demand but the buffer is now at its cap since slow hasn't
	// moved its cursor: the span between base and tail equals maxCapacity.
	f.EnqueueOutputElement("b")
	assert.True(t, !f.NeedsDemand().IsReady())

	f.MoreRequested(slowID, 10)
	assert.Equal(t, slow.received, []any{"a", "b"})
	assert.True(t, f.NeedsDemand().IsReady())
}

func TestCancelledSubscriberReceivesNoFurtherSignals(t *testing.T) {
	f := newFanOut()
	a := &recordingSubscriber{}
	b := &recordingSubscriber{}
	aID := f.RegisterSubscriber(a)
	bID := f.RegisterSubscriber(b)
	f.MoreRequested(aID, 100)
	f.MoreRequested(bID, 10)

	f.EnqueueOutputElement(1)
	f.EnqueueOutputElement(2)
	f.EnqueueOutputElement(3)
	f.UnregisterSubscription(aID)

	f.EnqueueOutputElement(4)
	assert.Equal(t, a.received, []any{1, 2, 3})
	assert.Equal(t, b.received, []any{1, 2, 3, 4})
}

func TestAbortDeliversOnErrorImmediately(t *testing.T) {
	f := newFanOut()
	sub := &recordingSubscriber{}
	f.RegisterSubscriber(sub)
	f.EnqueueOutputElement("x")

	cause := errors.New("boom")
	f.Abort(cause)
	assert.True(t, sub.err == cause)
}
