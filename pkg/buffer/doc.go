// Package buffer provides a generic, fixed-capacity, thread-safe ring buffer
// with watermarks, overrun and underrun detection, event subscriptions and
// built-in statistics, plus optional Prometheus metrics integration.
//
// # Overview
//
// RingBuffer sits between producers and consumers of a data stream, for
// example a sensor reader and a batching uploader. Writes always succeed:
// appending to a full buffer evicts the oldest element. Consumers remove
// elements one at a time, in all-or-nothing batches (RemoveN), or by moving
// as many as fit into a caller-provided slice (MoveItemsTo).
//
// # Quick Start
//
//	rb, err := buffer.New[Sample](1024,
//		buffer.WithHighWaterLevel[Sample](768),
//		buffer.WithLowWaterLevel[Sample](64),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	_ = rb.Append(sample)
//
//	batch := make([]Sample, 256)
//	n := rb.MoveItemsTo(batch, 0, len(batch))
//	upload(batch[:n])
//
// # Overrun and Underrun
//
// An overrun happens when Append finds the buffer full; an underrun when
// Remove or Peek find it empty. Both set a sticky flag (HasOverrun,
// HasUnderrun) that only Reset or the explicit setters clear. Clear keeps the
// flags so a consumer can drain and still see that data was lost.
//
// Each fault is reported one of two ways, chosen per buffer:
//
//   - Notify (default): subscribers receive EventOverrun or EventUnderrun and
//     the operation completes. Append stores the new element; Remove and Peek
//     return ok == false.
//   - Fail fast (WithExceptOnOverrun, WithExceptOnUnderrun): the operation
//     returns a transient error wrapping errors.ErrOverrun or
//     errors.ErrUnderrun. A failing Append has already evicted the oldest
//     element but does not store the new one.
//
// # Watermarks
//
// Watermarks are edge triggered. EventHighWater fires once when Count reaches
// the high-water level and re-arms after a removal takes Count below it.
// EventLowWater fires once when a removal takes Count to or below the
// low-water level and re-arms after an append takes Count above it. A new
// buffer counts as already below its low-water mark, so draining an untouched
// buffer raises nothing. A level of 0 disables the watermark.
//
// # Events
//
// Subscribe registers a handler for one EventKind and returns an id for
// Unsubscribe. Handlers run synchronously on the goroutine that caused the
// event, in subscription order, after the buffer lock has been released.
// A handler may therefore call back into the buffer, but a slow handler slows
// the producer or consumer that triggered it.
//
//	rb.Subscribe(buffer.EventHighWater, func(e buffer.Event[Sample]) {
//		logger.Warn("buffer filling up", "count", e.Count, "capacity", e.Capacity)
//	})
//
// # Waiting for Data
//
// WaitForAppend and WaitForAppendContext block until an append happens after
// the call started. They are wakeup hints, not a queue: elements already
// present do not satisfy a wait, and another consumer may drain the new
// element before the waiter looks.
//
//	for rb.WaitForAppendContext(ctx) {
//		n := rb.MoveItemsTo(batch, 0, len(batch))
//		process(batch[:n])
//	}
//
// # Observability
//
// Statistics are always collected and available via Stats(). Passing
// WithMetrics additionally exports them as ringstream_buffer_* series
// labelled with the buffer name:
//
//	rb, err := buffer.New[Sample](1024,
//		buffer.WithMetrics[Sample](registry, "imu"),
//	)
//
// Overruns and underruns are logged at Debug level through the logger given
// with WithLogger, or slog.Default.
//
// # Thread Safety
//
// Every operation takes a single mutex and is atomic with respect to the
// others. Predicates passed to First, Last and ContainsFunc run under that
// mutex and must not call back into the buffer. All iterates over a snapshot.
package buffer
