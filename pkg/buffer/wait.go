package buffer

import (
	"context"
	"time"
)

// WaitForAppend blocks until an Append succeeds after the call began or
// timeout elapses, and reports which happened. A non-positive timeout
// returns false immediately. Elements already present do not satisfy the
// wait, and a Remove between the append and the wakeup does not cancel it.
func (rb *RingBuffer[T]) WaitForAppend(timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return rb.WaitForAppendContext(ctx)
}

// WaitForAppendContext blocks until an Append succeeds after the call began
// or ctx is done. It returns true only for an observed append.
func (rb *RingBuffer[T]) WaitForAppendContext(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	// Wake every waiter when ctx ends; each rechecks its own state.
	stop := context.AfterFunc(ctx, func() {
		rb.mu.Lock()
		rb.appended.Broadcast()
		rb.mu.Unlock()
	})
	defer stop()

	rb.mu.Lock()
	defer rb.mu.Unlock()

	start := rb.appendSeq
	for rb.appendSeq == start {
		if ctx.Err() != nil {
			return false
		}
		rb.appended.Wait()
	}
	return true
}
