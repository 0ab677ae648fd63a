package inputbuffer

import (
	"testing"

	"github.com/flowkit/reactor/internal/assert"
)

func TestNewInputBufferReportsInitialPrefetch(t *testing.T) {
	_, n := NewInputBuffer(16, 16)
	assert.Equal(t, n, int64(16))
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	ib, _ := NewInputBuffer(4, 4)
	ib.Enqueue(1)
	ib.Enqueue(2)
	assert.Equal(t, ib.Dequeue(), any(1))
	assert.Equal(t, ib.Dequeue(), any(2))
	assert.True(t, ib.IsEmpty())
}

func TestBatchRequestEveryHalfCapacity(t *testing.T) {
	ib, initial := NewInputBuffer(8, 8)
	assert.Equal(t, initial, int64(8))
	for i := 0; i < 8; i++ {
		ib.Enqueue(i)
	}

	var totalRequested int64
	ib.SetUpstreamRequester(func(n int64) { totalRequested += n })
	for i := 0; i < 8; i++ {
		ib.Dequeue()
	}
	// batchSize = max(1, 8/2) = 4; two full batches of 4 dequeues each
	// trigger exactly two re-requests of 4.
	assert.Equal(t, totalRequested, int64(8))
}

func TestBatchSizeFloorIsOne(t *testing.T) {
	ib, initial := NewInputBuffer(1, 1)
	assert.Equal(t, initial, int64(1))
	ib.Enqueue("x")
	var requested int64
	ib.SetUpstreamRequester(func(n int64) { requested = n })
	ib.Dequeue()
	assert.Equal(t, requested, int64(1))
}

func TestNeedsInputReflectsCompletionOnlyAfterDrain(t *testing.T) {
	ib, _ := NewInputBuffer(4, 4)
	ib.Enqueue("a")
	ib.Complete()

	ts := ib.NeedsInput()
	assert.True(t, ts.IsReady())
	assert.True(t, !ts.IsCompleted())

	ib.Dequeue()
	ts = ib.NeedsInput()
	assert.True(t, !ts.IsReady())
	assert.True(t, ts.IsCompleted())
}

func TestCancelDiscardsQueuedElements(t *testing.T) {
	ib, _ := NewInputBuffer(4, 4)
	ib.Enqueue("a")
	ib.Enqueue("b")
	ib.Cancel()
	assert.True(t, ib.IsEmpty())
	ts := ib.NeedsInput()
	assert.True(t, ts.IsCompleted())
}

func TestCancelCallsUpstreamCancellerExactlyOnce(t *testing.T) {
	ib, _ := NewInputBuffer(4, 4)
	calls := 0
	ib.SetUpstreamCanceller(func() { calls++ })
	ib.Cancel()
	ib.Cancel()
	assert.Equal(t, calls, 1)
}

func TestCancelAfterCompleteDoesNotCallUpstreamCanceller(t *testing.T) {
	ib, _ := NewInputBuffer(4, 4)
	calls := 0
	ib.SetUpstreamCanceller(func() { calls++ })
	ib.Complete()
	ib.Cancel()
	assert.Equal(t, calls, 0)
}

func TestEmptyInputsIsAlwaysCompleted(t *testing.T) {
	var src Source = EmptyInputs{}
	ts := src.NeedsInput()
	assert.True(t, !ts.IsReady())
	assert.True(t, ts.IsCompleted())
	assert.True(t, src.IsEmpty())
}
