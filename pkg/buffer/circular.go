package buffer

import (
	"fmt"
	"iter"

	"github.com/c360/ringstream/errors"
)

// Append adds item as the newest element.
//
// When the buffer is full the oldest element is evicted and the overrun flag
// is set. With ExceptOnOverrun disabled subscribers receive EventOverrun and
// the item is stored. With it enabled Append returns a transient error wrapping
// errors.ErrOverrun and item is not stored; the eviction still happens.
func (rb *RingBuffer[T]) Append(item T) error {
	var ev pendingEvents[T]

	rb.mu.Lock()
	if rb.full {
		evicted := rb.items[rb.tail]
		rb.advanceLocked(1)
		rb.hasOverrun = true
		rb.stats.Overrun()
		if rb.metrics != nil {
			rb.metrics.recordOverrun()
		}

		if rb.exceptOnOverrun {
			rb.observeLocked()
			rb.mu.Unlock()
			return rb.fault(errors.ErrOverrun, "Append", "append to full buffer")
		}
		ev.add(Event[T]{Kind: EventOverrun, Count: rb.countLocked(), Capacity: rb.capacity, Item: evicted})
	}

	rb.items[rb.head] = item
	rb.head = (rb.head + 1) % rb.capacity
	if rb.head == rb.tail {
		rb.full = true
	}
	rb.appendSeq++
	rb.appended.Broadcast()

	count := rb.countLocked()
	rb.stats.Append(count)
	if rb.metrics != nil {
		rb.metrics.recordAppend()
	}
	rb.afterAppendLocked(count, &ev)
	ev.add(Event[T]{Kind: EventItemAppended, Count: count, Capacity: rb.capacity, Item: item})
	rb.observeLocked()
	rb.mu.Unlock()

	rb.dispatch(&ev)
	return nil
}

// AppendSlice appends items in order, as if by repeated Append. It stops at
// the first error, leaving the remaining items unappended.
func (rb *RingBuffer[T]) AppendSlice(items []T) error {
	for _, item := range items {
		if err := rb.Append(item); err != nil {
			return err
		}
	}
	return nil
}

// AppendSeq appends every value produced by seq, as if by repeated Append.
// It stops at the first error.
func (rb *RingBuffer[T]) AppendSeq(seq iter.Seq[T]) error {
	for item := range seq {
		if err := rb.Append(item); err != nil {
			return err
		}
	}
	return nil
}

// AppendRange appends items[offset:offset+count]. A window outside items is
// an Invalid error wrapping errors.ErrInvalidRange and appends nothing.
func (rb *RingBuffer[T]) AppendRange(items []T, offset, count int) error {
	if offset < 0 || count < 0 || offset > len(items) || count > len(items)-offset {
		return errors.WrapInvalid(errors.ErrInvalidRange, "RingBuffer", "AppendRange",
			fmt.Sprintf("window [%d:%d+%d] of %d items", offset, offset, count, len(items)))
	}
	return rb.AppendSlice(items[offset : offset+count])
}

// Remove takes the oldest element out of the buffer. ok is false when the
// buffer was empty; in that case the underrun flag is set and either
// subscribers receive EventUnderrun or, with ExceptOnUnderrun, a transient
// error wrapping errors.ErrUnderrun is returned.
func (rb *RingBuffer[T]) Remove() (item T, ok bool, err error) {
	var ev pendingEvents[T]

	rb.mu.Lock()
	if rb.countLocked() == 0 {
		if err := rb.underrunLocked(&ev, "Remove"); err != nil {
			return item, false, err
		}
		rb.dispatch(&ev)
		return item, false, nil
	}

	item = rb.items[rb.tail]
	rb.advanceLocked(1)

	count := rb.countLocked()
	rb.stats.Remove(1)
	if rb.metrics != nil {
		rb.metrics.recordRemove(1)
	}
	rb.afterRemoveLocked(count, &ev)
	rb.observeLocked()
	rb.mu.Unlock()

	rb.dispatch(&ev)
	return item, true, nil
}

// Peek returns the oldest element without removing it. An empty buffer is
// handled exactly like Remove on an empty buffer.
func (rb *RingBuffer[T]) Peek() (item T, ok bool, err error) {
	var ev pendingEvents[T]

	rb.mu.Lock()
	if rb.countLocked() == 0 {
		if err := rb.underrunLocked(&ev, "Peek"); err != nil {
			return item, false, err
		}
		rb.dispatch(&ev)
		return item, false, nil
	}

	item = rb.items[rb.tail]
	rb.stats.Peek()
	if rb.metrics != nil {
		rb.metrics.recordPeek()
	}
	rb.mu.Unlock()

	return item, true, nil
}

// Clear discards all elements and re-arms the watermarks: high water not
// crossed, low water crossed. Sticky flags, levels and subscriptions are kept.
// No events are raised.
func (rb *RingBuffer[T]) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.clearLocked()
}

// Reset is Clear plus clearing the sticky overrun and underrun flags.
func (rb *RingBuffer[T]) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.clearLocked()
	rb.hasOverrun = false
	rb.hasUnderrun = false
}

func (rb *RingBuffer[T]) clearLocked() {
	clear(rb.items)
	rb.head = 0
	rb.tail = 0
	rb.full = false
	rb.highWaterCrossed = false
	rb.lowWaterCrossed = true
	rb.observeLocked()
}

// underrunLocked records an underrun and releases rb.mu. It returns the
// fail-fast error, or nil after queueing EventUnderrun on ev.
func (rb *RingBuffer[T]) underrunLocked(ev *pendingEvents[T], op string) error {
	rb.hasUnderrun = true
	rb.stats.Underrun()
	if rb.metrics != nil {
		rb.metrics.recordUnderrun()
	}

	if rb.exceptOnUnderrun {
		rb.mu.Unlock()
		return rb.fault(errors.ErrUnderrun, op, "read from empty buffer")
	}

	ev.add(Event[T]{Kind: EventUnderrun, Capacity: rb.capacity})
	rb.mu.Unlock()
	return nil
}

// fault logs and wraps a fail-fast buffer fault. Must be called without rb.mu.
func (rb *RingBuffer[T]) fault(sentinel error, op, action string) error {
	rb.logger.Debug("buffer fault", "operation", op, "error", sentinel)
	return errors.WrapTransient(sentinel, "RingBuffer", op, action)
}

// advanceLocked drops n elements from the tail. Freed slots are zeroed so the
// buffer does not pin evicted values.
func (rb *RingBuffer[T]) advanceLocked(n int) {
	if n <= 0 {
		return
	}
	end := rb.tail + n
	if end <= rb.capacity {
		clear(rb.items[rb.tail:end])
	} else {
		clear(rb.items[rb.tail:])
		clear(rb.items[:end-rb.capacity])
	}
	rb.tail = end % rb.capacity
	rb.full = false
}

// afterAppendLocked applies watermark transitions for a grown count.
func (rb *RingBuffer[T]) afterAppendLocked(count int, ev *pendingEvents[T]) {
	if rb.highWaterLevel > 0 && count >= rb.highWaterLevel && !rb.highWaterCrossed {
		rb.highWaterCrossed = true
		rb.stats.HighWater()
		if rb.metrics != nil {
			rb.metrics.recordHighWater()
		}
		ev.add(Event[T]{Kind: EventHighWater, Count: count, Capacity: rb.capacity})
	}
	if rb.lowWaterLevel > 0 && count > rb.lowWaterLevel {
		rb.lowWaterCrossed = false
	}
}

// afterRemoveLocked applies watermark transitions for a shrunk count.
func (rb *RingBuffer[T]) afterRemoveLocked(count int, ev *pendingEvents[T]) {
	if rb.highWaterLevel > 0 && count < rb.highWaterLevel {
		rb.highWaterCrossed = false
	}
	if rb.lowWaterLevel > 0 && count <= rb.lowWaterLevel && !rb.lowWaterCrossed {
		rb.lowWaterCrossed = true
		rb.stats.LowWater()
		if rb.metrics != nil {
			rb.metrics.recordLowWater()
		}
		ev.add(Event[T]{Kind: EventLowWater, Count: count, Capacity: rb.capacity})
	}
}

func (rb *RingBuffer[T]) observeLocked() {
	if rb.metrics != nil {
		rb.metrics.observe(rb.countLocked(), rb.capacity)
	}
}
