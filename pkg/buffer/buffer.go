package buffer

import (
	"log/slog"
	"sync"

	"github.com/c360/ringstream/errors"
)

// RingBuffer is a fixed-capacity circular buffer guarded by a single mutex.
// The zero value is not usable; create instances with New.
type RingBuffer[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	head     int // next write position
	tail     int // next read position
	full     bool

	highWaterLevel   int
	lowWaterLevel    int
	highWaterCrossed bool
	lowWaterCrossed  bool
	exceptOnOverrun  bool
	exceptOnUnderrun bool
	hasOverrun       bool
	hasUnderrun      bool

	// appendSeq counts successful appends; waiters compare against it.
	appendSeq uint64
	appended  *sync.Cond

	events  *eventRegistry[T]
	stats   *Statistics
	metrics *bufferMetrics // nil unless WithMetrics was given
	logger  *slog.Logger
	name    string
}

// New creates a ring buffer holding at most capacity elements.
// A non-positive capacity or a negative watermark is an Invalid error, as is
// a failed metrics registration when WithMetrics is used.
func New[T any](capacity int, options ...Option[T]) (*RingBuffer[T], error) {
	if capacity <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidCapacity, "RingBuffer", "New",
			"validate capacity")
	}

	opts := applyOptions(options...)
	if opts.highWaterLevel < 0 || opts.lowWaterLevel < 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "RingBuffer", "New",
			"validate watermark levels")
	}

	var metrics *bufferMetrics
	if opts.metricsReg != nil {
		var err error
		metrics, err = newBufferMetrics(opts.metricsReg, opts.name)
		if err != nil {
			return nil, errors.Wrap(err, "RingBuffer", "New", "metrics registration")
		}
	}

	rb := &RingBuffer[T]{
		items:            make([]T, capacity),
		capacity:         capacity,
		highWaterLevel:   opts.highWaterLevel,
		lowWaterLevel:    opts.lowWaterLevel,
		lowWaterCrossed:  true,
		exceptOnOverrun:  opts.exceptOnOverrun,
		exceptOnUnderrun: opts.exceptOnUnderrun,
		events:           newEventRegistry[T](),
		stats:            NewStatistics(),
		metrics:          metrics,
		logger:           opts.logger.With("component", "buffer", "buffer", opts.name),
		name:             opts.name,
	}
	rb.appended = sync.NewCond(&rb.mu)

	for _, sub := range opts.handlers {
		rb.events.subscribe(sub.kind, sub.handler)
	}

	if metrics != nil {
		metrics.observe(0, capacity)
	}

	return rb, nil
}

// Name returns the name used for logging and metrics labels.
func (rb *RingBuffer[T]) Name() string {
	return rb.name
}

// MaxElements returns the fixed capacity.
func (rb *RingBuffer[T]) MaxElements() int {
	return rb.capacity // immutable, no lock needed
}

// Count returns the number of elements currently held.
func (rb *RingBuffer[T]) Count() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.countLocked()
}

// IsFull reports whether Count equals MaxElements.
func (rb *RingBuffer[T]) IsFull() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.full
}

// IsEmpty reports whether the buffer holds no elements.
func (rb *RingBuffer[T]) IsEmpty() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.countLocked() == 0
}

func (rb *RingBuffer[T]) countLocked() int {
	if rb.full {
		return rb.capacity
	}
	if rb.head >= rb.tail {
		return rb.head - rb.tail
	}
	return rb.capacity - rb.tail + rb.head
}

// HighWaterLevel returns the high-water threshold; 0 means disabled.
func (rb *RingBuffer[T]) HighWaterLevel() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.highWaterLevel
}

// SetHighWaterLevel sets the high-water threshold. Values <= 0 disable it.
// The current edge state is kept.
func (rb *RingBuffer[T]) SetHighWaterLevel(level int) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.highWaterLevel = max(level, 0)
}

// LowWaterLevel returns the low-water threshold; 0 means disabled.
func (rb *RingBuffer[T]) LowWaterLevel() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.lowWaterLevel
}

// SetLowWaterLevel sets the low-water threshold. Values <= 0 disable it.
// The current edge state is kept.
func (rb *RingBuffer[T]) SetLowWaterLevel(level int) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.lowWaterLevel = max(level, 0)
}

// ExceptOnOverrun reports whether overruns are returned as errors.
func (rb *RingBuffer[T]) ExceptOnOverrun() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.exceptOnOverrun
}

// SetExceptOnOverrun selects between notifying subscribers (false) and
// returning an error (true) when Append evicts an element.
func (rb *RingBuffer[T]) SetExceptOnOverrun(v bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.exceptOnOverrun = v
}

// ExceptOnUnderrun reports whether underruns are returned as errors.
func (rb *RingBuffer[T]) ExceptOnUnderrun() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.exceptOnUnderrun
}

// SetExceptOnUnderrun selects between notifying subscribers (false) and
// returning an error (true) when Remove or Peek find the buffer empty.
func (rb *RingBuffer[T]) SetExceptOnUnderrun(v bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.exceptOnUnderrun = v
}

// HasOverrun reports whether an overrun happened since the flag was last
// cleared. Only Reset and SetHasOverrun clear it.
func (rb *RingBuffer[T]) HasOverrun() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.hasOverrun
}

// SetHasOverrun overwrites the sticky overrun flag.
func (rb *RingBuffer[T]) SetHasOverrun(v bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.hasOverrun = v
}

// HasUnderrun reports whether an underrun happened since the flag was last
// cleared. Only Reset and SetHasUnderrun clear it.
func (rb *RingBuffer[T]) HasUnderrun() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.hasUnderrun
}

// SetHasUnderrun overwrites the sticky underrun flag.
func (rb *RingBuffer[T]) SetHasUnderrun(v bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.hasUnderrun = v
}

// Stats returns the always-on operation counters.
func (rb *RingBuffer[T]) Stats() *Statistics {
	return rb.stats
}
