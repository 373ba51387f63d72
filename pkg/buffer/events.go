package buffer

import (
	"sync"
	"sync/atomic"
)

// EventKind identifies a buffer notification.
type EventKind int

// Event kinds delivered to subscribers.
const (
	// EventItemAppended fires after every successful append.
	EventItemAppended EventKind = iota
	// EventOverrun fires when an append evicts the oldest element.
	EventOverrun
	// EventUnderrun fires when Remove or Peek find the buffer empty.
	EventUnderrun
	// EventHighWater fires when Count first reaches the high-water level.
	EventHighWater
	// EventLowWater fires when Count first drops to the low-water level.
	EventLowWater

	numEventKinds
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventItemAppended:
		return "item_appended"
	case EventOverrun:
		return "overrun"
	case EventUnderrun:
		return "underrun"
	case EventHighWater:
		return "high_water"
	case EventLowWater:
		return "low_water"
	default:
		return "unknown"
	}
}

// Event describes a buffer notification. Count is the element count when the
// event was raised; for EventOverrun that is after the eviction and before the
// new element is stored. Item is the appended element for EventItemAppended and the
// evicted element for EventOverrun; it is the zero value otherwise.
type Event[T any] struct {
	Kind     EventKind
	Count    int
	Capacity int
	Item     T
}

// Handler receives buffer events. Handlers run synchronously on the goroutine
// that triggered the event, after the buffer lock is released, so they may
// call back into the buffer.
type Handler[T any] func(Event[T])

// SubscriptionID identifies a subscription for Unsubscribe.
type SubscriptionID uint64

type subscription[T any] struct {
	id      SubscriptionID
	handler Handler[T]
}

// eventRegistry keeps per-kind handler lists. Lists are copied on write so
// emit can iterate without holding the lock.
type eventRegistry[T any] struct {
	mu     sync.RWMutex
	subs   [numEventKinds][]subscription[T]
	nextID atomic.Uint64
}

func newEventRegistry[T any]() *eventRegistry[T] {
	return &eventRegistry[T]{}
}

func (r *eventRegistry[T]) subscribe(kind EventKind, handler Handler[T]) SubscriptionID {
	if kind < 0 || kind >= numEventKinds || handler == nil {
		return 0
	}

	id := SubscriptionID(r.nextID.Add(1))

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.subs[kind]
	next := make([]subscription[T], len(current), len(current)+1)
	copy(next, current)
	r.subs[kind] = append(next, subscription[T]{id: id, handler: handler})

	return id
}

func (r *eventRegistry[T]) unsubscribe(id SubscriptionID) bool {
	if id == 0 {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for kind, current := range r.subs {
		for i, sub := range current {
			if sub.id != id {
				continue
			}
			next := make([]subscription[T], 0, len(current)-1)
			next = append(next, current[:i]...)
			next = append(next, current[i+1:]...)
			r.subs[kind] = next
			return true
		}
	}
	return false
}

func (r *eventRegistry[T]) emit(e Event[T]) {
	r.mu.RLock()
	handlers := r.subs[e.Kind]
	r.mu.RUnlock()

	for _, sub := range handlers {
		sub.handler(e)
	}
}

// pendingEvents collects events raised under the buffer lock. A single
// operation raises at most three (overrun, high water, appended).
type pendingEvents[T any] struct {
	events [3]Event[T]
	n      int
}

func (p *pendingEvents[T]) add(e Event[T]) {
	p.events[p.n] = e
	p.n++
}

// Subscribe registers handler for events of the given kind and returns an id
// for Unsubscribe. Handlers for the same kind run in subscription order.
// An unknown kind or nil handler yields the zero id and is not registered.
func (rb *RingBuffer[T]) Subscribe(kind EventKind, handler Handler[T]) SubscriptionID {
	return rb.events.subscribe(kind, handler)
}

// Unsubscribe removes a subscription. It reports whether the id was found.
func (rb *RingBuffer[T]) Unsubscribe(id SubscriptionID) bool {
	return rb.events.unsubscribe(id)
}

// dispatch delivers events collected under the lock. Must be called without
// holding rb.mu.
func (rb *RingBuffer[T]) dispatch(p *pendingEvents[T]) {
	for i := 0; i < p.n; i++ {
		e := p.events[i]
		switch e.Kind {
		case EventOverrun:
			rb.logger.Debug("buffer overrun, oldest element evicted",
				"capacity", e.Capacity)
		case EventUnderrun:
			rb.logger.Debug("buffer underrun, read from empty buffer")
		}
		rb.events.emit(e)
	}
}
