// Package mailbox implements a single-slot latest-wins buffer.
//
// The live feed publishes frames at its own cadence while the display loop
// consumes at the display rate. The mailbox never queues: a new value
// overwrites an unconsumed one, favoring display smoothness over frame
// completeness. Dropped values are counted for monitoring.
package mailbox

import "sync"

// Mailbox is a single-slot latest-wins buffer.
//
// Publish is non-blocking and overwrites any unconsumed value. Take is
// non-blocking and consumes the slot. Receive blocks until a value arrives or
// the mailbox is closed. All methods are safe for concurrent use; Receive is
// intended for a single consumer goroutine.
type Mailbox[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	value  T
	full   bool
	closed bool

	published uint64
	dropped   uint64
}

// Stats is a snapshot of mailbox counters.
type Stats struct {
	// Published is the total number of Publish calls.
	Published uint64
	// Dropped counts values overwritten before being consumed.
	Dropped uint64
}

// New creates an empty mailbox.
func New[T any]() *Mailbox[T] {
	m := &Mailbox[T]{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Publish stores v, overwriting any unconsumed value. It never blocks.
// Publishing to a closed mailbox is a no-op.
func (m *Mailbox[T]) Publish(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.full {
		m.dropped++
	}
	m.value = v
	m.full = true
	m.published++
	m.cond.Signal()
}

// Take consumes the current value if one is present. It never blocks.
func (m *Mailbox[T]) Take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.full {
		var zero T
		return zero, false
	}
	v := m.value
	var zero T
	m.value = zero
	m.full = false
	return v, true
}

// Receive blocks until a value is available or the mailbox is closed.
// It returns ok=false on close.
func (m *Mailbox[T]) Receive() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for !m.full && !m.closed {
		m.cond.Wait()
	}
	if !m.full {
		var zero T
		return zero, false
	}
	v := m.value
	var zero T
	m.value = zero
	m.full = false
	return v, true
}

// Close marks the mailbox closed and wakes any blocked Receive.
// Close is idempotent.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.cond.Broadcast()
}

// Stats returns a snapshot of the counters.
func (m *Mailbox[T]) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Published: m.published, Dropped: m.dropped}
}
