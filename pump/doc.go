// Package pump drains a ring buffer into a sink in batches.
//
// A Pump waits for data with WaitForAppendContext, collects up to BatchSize
// elements or whatever arrived within FlushInterval, moves them out with
// MoveItemsTo and hands them to a Sink under the retry policy. A batch that
// still fails is dropped, counted and logged; the pump keeps running.
//
// On shutdown the pump drains the buffer for up to DrainTimeout, including a
// batch whose delivery was interrupted by the shutdown itself.
//
//	rb, _ := buffer.New[Sample](4096)
//	p, err := pump.New[Sample](rb, natsSink, pump.DefaultConfig(),
//	    pump.WithLogger[Sample](logger),
//	    pump.WithMetrics[Sample](registry),
//	)
//	if err != nil {
//	    return err
//	}
//	g.Go(func() error { return p.Run(ctx) })
//
// Start and Stop offer the same loop for callers managing the goroutine
// lifecycle themselves.
package pump
