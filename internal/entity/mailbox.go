package entity

import "sync"

// Envelope is a message together with the Ref that replies should go to.
// Sender is nil when no reply is expected.
type Envelope struct {
	Message any
	Sender  Ref
}

// mailbox is an unbounded, thread-safe FIFO of envelopes.
//
// Enqueue never blocks, so a process replying to another process (or to its
// parent) can never deadlock against it. The consumer waits on Wait() in a
// select alongside context cancellation.
type mailbox struct {
	mu      sync.Mutex
	pending []Envelope
	closed  bool
	signal  chan struct{} // buffered, size 1; closed on Close
}

func newMailbox() *mailbox {
	return &mailbox{
		pending: make([]Envelope, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue appends an envelope. Returns false if the mailbox is closed.
func (m *mailbox) Enqueue(e Envelope) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.pending = append(m.pending, e)

	// Coalesce: one pending signal is enough to wake the consumer.
	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front envelope without blocking.
func (m *mailbox) TryDequeue() (Envelope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) == 0 {
		return Envelope{}, false
	}
	e := m.pending[0]
	// Clear the slot so the backing array does not pin the message.
	m.pending[0] = Envelope{}
	if len(m.pending) == 1 {
		m.pending = m.pending[:0]
	} else {
		m.pending = m.pending[1:]
	}
	return e, true
}

// Wait returns a channel that receives when envelopes may be available and
// is closed once the mailbox is closed.
func (m *mailbox) Wait() <-chan struct{} {
	return m.signal
}

// Len returns the number of queued envelopes.
func (m *mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Close rejects further envelopes and wakes the consumer.
// Already queued envelopes stay available to TryDequeue.
func (m *mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	close(m.signal)
}
