package processor

import "sync"

// mailbox is the single-consumer, multi-producer unbounded queue every
// signal bound for a processor's actor loop passes through. Enqueue never
// blocks and only refuses a signal once the mailbox is disposed: callers on
// arbitrary goroutines (an upstream's
// signal delivery, a subscriber's Request/Cancel call) must never be made
// to wait on the processor's own serialized loop.
type mailbox struct {
	mu     sync.Mutex
	queue  []Signal
	notify chan struct{}
	closed bool

	// shutdownErr records the outcome the actor shut down with, nil for a
	// graceful completion. It is read by a late subscriber racing Dispose:
	// spec.md §4.3 requires registerSubscriber to hand a subscriber that
	// arrives after shutdown has begun its terminal signal immediately,
	// rather than silently dropping it because the actor's own loop has
	// already stopped consuming the mailbox.
	shutdownErr error
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

// Enqueue appends a signal and wakes the consumer if it is idle. It
// reports false, without appending, once the mailbox has been disposed,
// so a caller racing Dispose can fall back to handling the signal itself
// instead of having it silently swallowed.
func (m *mailbox) Enqueue(s Signal) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, s)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

// Dequeue drains and returns everything currently queued, or nil if empty.
// Only ever called from the processor's own actor goroutine.
func (m *mailbox) Dequeue() []Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil
	}
	batch := m.queue
	m.queue = nil
	return batch
}

// Wait blocks until Enqueue wakes the consumer, or returns immediately if
// a wake was already pending.
func (m *mailbox) Wait() {
	<-m.notify
}

// Dispose marks the mailbox closed: further Enqueue calls are refused and
// report false. Queued signals not yet dequeued are discarded. cause is nil for
// a graceful shutdown, or the failure every late subscriber must still be
// told about.
func (m *mailbox) Dispose(cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.queue = nil
	m.shutdownErr = cause
}

// Closed reports whether Dispose has already run and, if so, the outcome
// it recorded. Safe to call from any goroutine.
func (m *mailbox) Closed() (closed bool, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed, m.shutdownErr
}
