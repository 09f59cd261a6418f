package eventbus

import "sync/atomic"

// Bus is a bounded, single-producer/single-consumer event channel with a
// drop-newest-on-full overflow policy: the writer never blocks, and every
// drop is accounted for.
//
// Outbound writes never suspend: a full channel means the event is
// dropped and droppedCount is incremented. Once capacity frees up, a
// single BufferOverflow event carrying the accumulated count is enqueued
// and the counter resets to zero.
type Bus struct {
	ch           chan Event
	droppedCount uint64
	pendingFlush int32
}

// New creates a Bus with the given capacity. capacity <= 0 is treated as 1
// (spec default is 1024; callers should pass that explicitly).
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 1
	}
	return &Bus{ch: make(chan Event, capacity)}
}

// Publish attempts to enqueue ev without blocking. On a full channel the
// event is dropped and the dropped counter is incremented; the next
// successful Publish call additionally enqueues a BufferOverflow event
// ahead of ev, carrying the accumulated drop count, then resets it.
func (b *Bus) Publish(ev Event) {
	if atomic.LoadInt32(&b.pendingFlush) == 1 {
		b.flushOverflow()
	}

	select {
	case b.ch <- ev:
	default:
		atomic.AddUint64(&b.droppedCount, 1)
		atomic.StoreInt32(&b.pendingFlush, 1)
	}
}

func (b *Bus) flushOverflow() {
	dropped := atomic.SwapUint64(&b.droppedCount, 0)
	if dropped == 0 {
		atomic.StoreInt32(&b.pendingFlush, 0)
		return
	}
	select {
	case b.ch <- Event{Category: CategoryBufferOverflow, DroppedCount: dropped}:
		atomic.StoreInt32(&b.pendingFlush, 0)
	default:
		// Channel still full; restore the count and try again on the next Publish.
		atomic.AddUint64(&b.droppedCount, dropped)
	}
}

// Events returns the receive-only channel consumers range over.
func (b *Bus) Events() <-chan Event {
	return b.ch
}

// DroppedCount returns the current (not-yet-flushed) number of dropped
// events. Exposed for monitoring; not part of the delivery guarantee.
func (b *Bus) DroppedCount() uint64 {
	return atomic.LoadUint64(&b.droppedCount)
}

// Close closes the underlying channel. It is not idempotent: a second call
// panics per Go channel semantics, so callers (the session shutdown path)
// must call this exactly once.
func (b *Bus) Close() {
	close(b.ch)
}
