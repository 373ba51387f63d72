package pump

import (
	"context"
	"log/slog"
)

// Sink receives batches from a Pump. Write must not retain batch after it
// returns; the pump reuses the backing array. Errors are retried according
// to the pump's retry policy unless classified Invalid or Fatal.
type Sink[T any] interface {
	Write(ctx context.Context, batch []T) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc[T any] func(ctx context.Context, batch []T) error

// Write calls f(ctx, batch).
func (f SinkFunc[T]) Write(ctx context.Context, batch []T) error {
	return f(ctx, batch)
}

// LogSink writes a record per batch to a logger. Items are included only
// when the logger is enabled for Debug.
type LogSink[T any] struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default.
func NewLogSink[T any](logger *slog.Logger) *LogSink[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink[T]{logger: logger.With("component", "log-sink")}
}

// Write logs the batch.
func (s *LogSink[T]) Write(ctx context.Context, batch []T) error {
	if s.logger.Enabled(ctx, slog.LevelDebug) {
		s.logger.DebugContext(ctx, "batch received", "count", len(batch), "items", batch)
		return nil
	}
	s.logger.InfoContext(ctx, "batch received", "count", len(batch))
	return nil
}
