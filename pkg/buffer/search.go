package buffer

import (
	"iter"
)

// At returns the element at logical position i, where 0 is the oldest.
// Out-of-range positions wrap modulo MaxElements over the physical storage
// and may return a stale or zero value; callers wanting checked access
// compare i against Count first.
func (rb *RingBuffer[T]) At(i int) T {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	idx := (rb.tail + i) % rb.capacity
	if idx < 0 {
		idx += rb.capacity
	}
	return rb.items[idx]
}

// Values returns a copy of the elements from oldest to newest.
func (rb *RingBuffer[T]) Values() []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	out := make([]T, rb.countLocked())
	rb.copyOutLocked(out, len(out))
	return out
}

// All returns an iterator over a snapshot of the elements, oldest first.
// The snapshot is taken when iteration starts; later mutations are not seen.
func (rb *RingBuffer[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, v := range rb.Values() {
			if !yield(v) {
				return
			}
		}
	}
}

// First returns the oldest element matching pred, or def when none does.
// pred runs under the buffer lock and must not call back into the buffer.
func (rb *RingBuffer[T]) First(pred func(T) bool, def T) T {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := rb.countLocked()
	for i := 0; i < n; i++ {
		v := rb.items[(rb.tail+i)%rb.capacity]
		if pred(v) {
			return v
		}
	}
	return def
}

// Last returns the newest element matching pred, or def when none does.
// pred runs under the buffer lock and must not call back into the buffer.
func (rb *RingBuffer[T]) Last(pred func(T) bool, def T) T {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for i := rb.countLocked() - 1; i >= 0; i-- {
		v := rb.items[(rb.tail+i)%rb.capacity]
		if pred(v) {
			return v
		}
	}
	return def
}

// ContainsFunc reports whether any held element satisfies pred.
// pred runs under the buffer lock and must not call back into the buffer.
func (rb *RingBuffer[T]) ContainsFunc(pred func(T) bool) bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := rb.countLocked()
	for i := 0; i < n; i++ {
		if pred(rb.items[(rb.tail+i)%rb.capacity]) {
			return true
		}
	}
	return false
}

// Contains reports whether rb holds an element equal to value.
func Contains[T comparable](rb *RingBuffer[T], value T) bool {
	return rb.ContainsFunc(func(v T) bool { return v == value })
}

// RemoveN removes and returns the n oldest elements, oldest first. If fewer
// than n elements are held, or n <= 0, nothing is removed and an empty slice
// is returned.
func (rb *RingBuffer[T]) RemoveN(n int) []T {
	var ev pendingEvents[T]

	rb.mu.Lock()
	if n <= 0 || n > rb.countLocked() {
		rb.mu.Unlock()
		return []T{}
	}

	out := make([]T, n)
	rb.takeLocked(out, n, &ev)
	rb.mu.Unlock()

	rb.dispatch(&ev)
	return out
}

// MoveItemsTo moves up to count of the oldest elements into dst starting at
// dst[index] and returns how many were moved: the minimum of count, Count and
// len(dst)-index. An index outside [0, len(dst)] or a non-positive count moves
// nothing. Low water is evaluated once, after the move.
func (rb *RingBuffer[T]) MoveItemsTo(dst []T, index, count int) int {
	if count <= 0 || index < 0 || index > len(dst) {
		return 0
	}

	var ev pendingEvents[T]

	rb.mu.Lock()
	actual := min(count, rb.countLocked(), len(dst)-index)
	if actual == 0 {
		rb.mu.Unlock()
		return 0
	}
	rb.takeLocked(dst[index:], actual, &ev)
	rb.mu.Unlock()

	rb.dispatch(&ev)
	return actual
}

// takeLocked copies the n oldest elements into dst and drops them.
func (rb *RingBuffer[T]) takeLocked(dst []T, n int, ev *pendingEvents[T]) {
	rb.copyOutLocked(dst, n)
	rb.advanceLocked(n)

	count := rb.countLocked()
	rb.stats.Remove(n)
	if rb.metrics != nil {
		rb.metrics.recordRemove(n)
	}
	rb.afterRemoveLocked(count, ev)
	rb.observeLocked()
}

// copyOutLocked copies the n oldest elements into dst with at most two
// copies, splitting where the run from tail reaches the end of storage.
func (rb *RingBuffer[T]) copyOutLocked(dst []T, n int) {
	if n <= 0 {
		return
	}
	run := rb.capacity - rb.tail
	if run >= n {
		copy(dst[:n], rb.items[rb.tail:rb.tail+n])
		return
	}
	copy(dst[:run], rb.items[rb.tail:])
	copy(dst[run:n], rb.items[:n-run])
}
