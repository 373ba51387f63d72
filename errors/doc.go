// Package errors provides standardized error handling patterns for ringstream components.
//
// # Overview
//
// The errors package implements a three-class error classification system: Transient
// (temporary, retryable), Invalid (bad input, non-retryable), and Fatal (unrecoverable,
// stop processing). Components use the classification to decide whether a failure is
// retried, reported, or escalated.
//
// # Buffer Faults
//
// A ring buffer configured to fail fast reports overruns and underruns as errors
// wrapping ErrOverrun and ErrUnderrun. Both are classified Transient: the condition
// clears as soon as a consumer catches up or a producer appends. The buffer itself
// never retries them.
//
//	if err := rb.Append(sample); err != nil {
//	    if errors.IsBufferFault(err) {
//	        // the oldest sample was evicted; decide whether that matters
//	    }
//	}
//
// Constructing a buffer with a non-positive capacity returns ErrInvalidCapacity,
// classified Invalid.
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")  // For retryable errors
//	errors.WrapInvalid(err, "Component", "Method", "action")    // For validation errors
//	errors.WrapFatal(err, "Component", "Method", "action")      // For unrecoverable errors
//
// The plain Wrap() function adds context without setting a class.
//
// # Integration with errors.As/Is
//
// All error types support standard library error inspection:
//
//	var ce *errors.ClassifiedError
//	if errors.As(err, &ce) {
//	    slog.Warn("operation failed", "component", ce.Component, "class", ce.Class)
//	}
//
// Context errors (context.DeadlineExceeded, context.Canceled) are classified as
// Transient.
//
// # Thread Safety
//
// All classification and wrapping operations are safe for concurrent use. The
// ClassifiedError type is safe to share across goroutines after creation.
package errors
