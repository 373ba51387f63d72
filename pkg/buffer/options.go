package buffer

import (
	"log/slog"

	"github.com/c360/ringstream/metric"
)

// DefaultName labels buffers created without WithName or WithMetrics.
const DefaultName = "ring"

// Option configures buffer behavior using the functional options pattern.
type Option[T any] func(*bufferOptions[T])

// bufferOptions holds construction-time configuration.
// Stats are always collected; metrics are opt-in via WithMetrics.
type bufferOptions[T any] struct {
	highWaterLevel   int
	lowWaterLevel    int
	exceptOnOverrun  bool
	exceptOnUnderrun bool

	name       string
	logger     *slog.Logger
	metricsReg *metric.MetricsRegistry
	handlers   []pendingSubscription[T]
}

type pendingSubscription[T any] struct {
	kind    EventKind
	handler Handler[T]
}

// WithHighWaterLevel sets the count at which EventHighWater fires. 0 disables it.
func WithHighWaterLevel[T any](level int) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.highWaterLevel = level
	}
}

// WithLowWaterLevel sets the count at or below which EventLowWater fires. 0 disables it.
func WithLowWaterLevel[T any](level int) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.lowWaterLevel = level
	}
}

// WithExceptOnOverrun makes Append return an error instead of notifying
// subscribers when it has to evict an element.
func WithExceptOnOverrun[T any](v bool) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.exceptOnOverrun = v
	}
}

// WithExceptOnUnderrun makes Remove and Peek return an error instead of
// notifying subscribers when the buffer is empty.
func WithExceptOnUnderrun[T any](v bool) Option[T] {
	return func(opts *bufferOptions[T]) {
		opts.exceptOnUnderrun = v
	}
}

// WithName sets the name used in log records.
func WithName[T any](name string) Option[T] {
	return func(opts *bufferOptions[T]) {
		if name != "" {
			opts.name = name
		}
	}
}

// WithLogger sets the logger used for overrun and underrun diagnostics.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(opts *bufferOptions[T]) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

// WithMetrics exports buffer statistics as Prometheus metrics labelled with
// name. If registry is nil or name is empty, this option is ignored.
func WithMetrics[T any](registry *metric.MetricsRegistry, name string) Option[T] {
	return func(opts *bufferOptions[T]) {
		if registry != nil && name != "" {
			opts.metricsReg = registry
			opts.name = name
		}
	}
}

// WithHandler subscribes handler to kind before the buffer is returned, so no
// event can be missed between New and Subscribe.
func WithHandler[T any](kind EventKind, handler Handler[T]) Option[T] {
	return func(opts *bufferOptions[T]) {
		if handler != nil {
			opts.handlers = append(opts.handlers, pendingSubscription[T]{kind: kind, handler: handler})
		}
	}
}

func applyOptions[T any](options ...Option[T]) *bufferOptions[T] {
	opts := &bufferOptions[T]{
		name:   DefaultName,
		logger: slog.Default(),
	}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	return opts
}
