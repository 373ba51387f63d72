// Package ringstream is a bounded, thread-safe ring buffer with watermarks,
// overrun and underrun policies, and the plumbing to drain it in batches.
//
// # Architecture
//
// The module is layered bottom-up:
//
//   - pkg/buffer: the generic RingBuffer[T]. Fixed capacity, FIFO order,
//     sticky overrun/underrun flags with notify or fail-fast policies,
//     high and low water events, wait-for-append, search and bulk moves.
//   - pkg/retry: exponential backoff used by the pump and by sink connects.
//   - pump: moves batches from a buffer to a Sink, retrying transient
//     failures and dropping invalid batches, with a bounded drain on stop.
//   - output/natssink, output/file: sinks that publish JSON envelopes to
//     NATS or append JSON to a local file.
//   - health, metric: pull-based component health and Prometheus metrics,
//     served together over HTTP.
//   - config: layered JSON/YAML configuration with environment overrides.
//   - cmd/ringstream: a simulated sensor pipeline wiring all of the above.
//
// # Error Handling
//
// Errors are classified by the errors package as transient, invalid or
// fatal. Buffer faults wrap errors.ErrOverrun or errors.ErrUnderrun and are
// reported as transient so producers may retry once consumers catch up:
//
//	if err := rb.Append(sample); errors.IsBufferFault(err) {
//	    // fail-fast overrun: oldest element evicted, sample not stored
//	}
//
// # Observability
//
// Every component logs through log/slog with a "component" attribute.
// Buffers and pumps register their collectors with a metric.MetricsRegistry
// when one is supplied; nothing is registered otherwise.
package ringstream
