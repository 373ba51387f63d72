// Package retry provides exponential backoff retry logic for transient failures.
//
// # Overview
//
// Do runs an operation until it succeeds, the attempt budget is spent, the
// context ends, or the operation returns an error that retrying cannot fix.
// ringstream uses it around sink deliveries and NATS connection setup.
//
// # Core Functions
//
//   - Do: Execute function with retry and exponential backoff
//   - DoWithResult: Execute function with retry, returns both result and error
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay (normal operations)
//   - Quick(): 10 attempts, 50ms-1s delay (component startup)
//   - Persistent(): 30 attempts, 200ms-10s delay (critical resources)
//
// # Usage Examples
//
// Basic retry with defaults:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return sink.Write(ctx, batch)
//	})
//
// Connection with result and retry logging:
//
//	cfg := retry.Quick()
//	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
//	    logger.Warn("connect failed, retrying", "attempt", attempt, "delay", delay, "error", err)
//	}
//	conn, err := retry.DoWithResult(ctx, cfg, func() (*nats.Conn, error) {
//	    return nats.Connect(url)
//	})
//
// # Error Classification
//
// An error stops retrying immediately when it is wrapped with NonRetryable or
// classified Invalid or Fatal by the errors package. Everything else,
// including unclassified errors, is retried. When all attempts fail the
// returned error matches errors.ErrMaxRetriesExceeded and still wraps the last
// failure.
//
// # Context Cancellation
//
// Do checks the context after every failed attempt and during each backoff
// delay, returning an error that wraps ctx.Err().
//
// # Thread Safety
//
// All functions are safe for concurrent use. Jitter draws from math/rand/v2.
package retry
