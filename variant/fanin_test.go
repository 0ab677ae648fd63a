package variant

import (
	"sync"
	"testing"
	"time"

	"github.com/flowkit/reactor"
	"github.com/flowkit/reactor/internal/assert"
)

// syncPublisher delivers OnSubscribe/OnNext/OnComplete synchronously, on
// the calling goroutine, the instant Subscribe is called. It exists to
// exercise the exact race the design note warns about: an upstream whose
// Subscribe chains straight into element delivery, with no goroutine hop
// in between.
type syncPublisher struct{ elements []any }

func (s *syncPublisher) Subscribe(sub reactor.Subscriber) {
	sub.OnSubscribe(noopSub{})
	for _, e := range s.elements {
		sub.OnNext(e)
	}
	sub.OnComplete()
}

type fanInRecorder struct {
	mu        sync.Mutex
	received  []any
	completed bool
}

func (r *fanInRecorder) OnSubscribe(s reactor.Subscription) { s.Request(100) }
func (r *fanInRecorder) OnNext(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, v)
}
func (r *fanInRecorder) OnComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = true
}
func (r *fanInRecorder) OnError(error) {}

func (r *fanInRecorder) snapshot() (received []any, completed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.received...), r.completed
}

func eventually(t *testing.T, cond func() bool) {
	assert.Eventually(t, time.Second, time.Millisecond, cond)
}

// TestMergeSubscribesOnlyAfterPublisherExposed is a regression test for the
// synchronous-Subscribe race: merge's own upstreams must not be subscribed
// to until the owning processor's publisher has been exposed, even when an
// upstream answers Subscribe with immediate, synchronous delivery.
func TestMergeSubscribesOnlyAfterPublisherExposed(t *testing.T) {
	settings := reactor.DefaultMaterializerSettings()
	p, err := NewMerge(settings, &syncPublisher{elements: []any{1, 2}}, &syncPublisher{elements: []any{3, 4}})
	assert.NoError(t, err)

	sub := &fanInRecorder{}
	p.Publisher().Subscribe(sub)

	eventually(t, func() bool {
		received, completed := sub.snapshot()
		return len(received) == 4 && completed
	})
}

func TestConcatSubscribesOnlyAfterPublisherExposed(t *testing.T) {
	settings := reactor.DefaultMaterializerSettings()
	p, err := NewConcat(settings, &syncPublisher{elements: []any{1, 2}}, &syncPublisher{elements: []any{3, 4}})
	assert.NoError(t, err)

	sub := &fanInRecorder{}
	p.Publisher().Subscribe(sub)

	eventually(t, func() bool {
		received, completed := sub.snapshot()
		return len(received) == 4 && completed
	})
	received, _ := sub.snapshot()
	assert.Equal(t, received, []any{1, 2, 3, 4})
}

// TestZipSubscribesOnlyAfterPublisherExposed only asserts the processor
// reaches completion without deadlocking or panicking: it is the same
// synchronous-Subscribe race as the merge/concat variants above; zip's
// own row-alignment policy around a mid-stream completion is not asserted
// here.
func TestZipSubscribesOnlyAfterPublisherExposed(t *testing.T) {
	settings := reactor.DefaultMaterializerSettings()
	combine := func(row []any) any { return row }
	p, err := NewZip(settings, combine, &syncPublisher{elements: []any{1, 2}}, &syncPublisher{elements: []any{"a", "b"}})
	assert.NoError(t, err)

	sub := &fanInRecorder{}
	p.Publisher().Subscribe(sub)

	eventually(t, func() bool {
		_, completed := sub.snapshot()
		return completed
	})
}
