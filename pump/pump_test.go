package pump

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	cerrors "github.com/c360/ringstream/errors"
	"github.com/c360/ringstream/metric"
	"github.com/c360/ringstream/pkg/buffer"
	"github.com/c360/ringstream/pkg/retry"
)

// collectingSink records every delivered batch.
type collectingSink struct {
	mu      sync.Mutex
	batches [][]int
}

func (s *collectingSink) Write(_ context.Context, batch []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]int(nil), batch...))
	return nil
}

func (s *collectingSink) snapshot() [][]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]int(nil), s.batches...)
}

func (s *collectingSink) items() []int {
	var out []int
	for _, b := range s.snapshot() {
		out = append(out, b...)
	}
	return out
}

func testConfig(batchSize int, flush time.Duration) Config {
	return Config{
		Name:          "test",
		BatchSize:     batchSize,
		FlushInterval: flush,
		DrainTimeout:  time.Second,
		Retry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
		},
	}
}

func newTestBuffer(t *testing.T, capacity int) *buffer.RingBuffer[int] {
	t.Helper()
	rb, err := buffer.New[int](capacity)
	require.NoError(t, err)
	return rb
}

func TestNew_Validation(t *testing.T) {
	rb := newTestBuffer(t, 8)
	sink := &collectingSink{}

	tests := []struct {
		name   string
		source Source[int]
		sink   Sink[int]
		cfg    Config
	}{
		{"nil source", nil, sink, DefaultConfig()},
		{"nil sink", rb, nil, DefaultConfig()},
		{"zero batch", rb, sink, testConfig(0, time.Second)},
		{"zero flush interval", rb, sink, testConfig(4, 0)},
		{"negative drain", rb, sink, Config{Name: "x", BatchSize: 1, FlushInterval: time.Second, DrainTimeout: -1}},
		{"empty name", rb, sink, Config{BatchSize: 1, FlushInterval: time.Second}},
		{"bad retry", rb, sink, Config{Name: "x", BatchSize: 1, FlushInterval: time.Second,
			Retry: retry.Config{InitialDelay: -1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.source, tt.sink, tt.cfg)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.True(t, cerrors.IsInvalid(err))
		})
	}
}

func TestPump_DeliversFullBatchesInOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	rb := newTestBuffer(t, 64)
	sink := &collectingSink{}
	p, err := New[int](rb, sink, testConfig(4, time.Hour))
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, rb.AppendSlice([]int{1, 2, 3, 4, 5, 6, 7, 8}))

	assert.Eventually(t, func() bool { return len(sink.snapshot()) == 2 },
		2*time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop(time.Second))

	assert.Equal(t, [][]int{{1, 2, 3, 4}, {5, 6, 7, 8}}, sink.snapshot())
	stats := p.Stats()
	assert.Equal(t, int64(2), stats.Batches)
	assert.Equal(t, int64(8), stats.Items)
	assert.False(t, stats.Running)
}

func TestPump_FlushesPartialBatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	rb := newTestBuffer(t, 64)
	sink := &collectingSink{}
	p, err := New[int](rb, sink, testConfig(100, 20*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, rb.AppendSlice([]int{1, 2, 3}))

	assert.Eventually(t, func() bool { return len(sink.items()) == 3 },
		2*time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop(time.Second))
	assert.Equal(t, []int{1, 2, 3}, sink.items())
}

func TestPump_RetriesTransientFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	rb := newTestBuffer(t, 16)
	var calls atomic.Int32
	sink := SinkFunc[int](func(context.Context, []int) error {
		if calls.Add(1) <= 2 {
			return cerrors.WrapTransient(cerrors.ErrConnectionLost, "sink", "Write", "publish")
		}
		return nil
	})

	p, err := New[int](rb, sink, testConfig(2, time.Hour))
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, rb.AppendSlice([]int{1, 2}))

	assert.Eventually(t, func() bool { return p.Stats().Batches == 1 },
		2*time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop(time.Second))

	assert.Equal(t, int32(3), calls.Load())
	assert.Zero(t, p.Stats().Failures)
}

func TestPump_DropsBatchOnInvalidError(t *testing.T) {
	defer goleak.VerifyNone(t)

	rb := newTestBuffer(t, 16)
	var calls atomic.Int32
	sink := SinkFunc[int](func(_ context.Context, batch []int) error {
		calls.Add(1)
		if batch[0] == 1 {
			return cerrors.WrapInvalid(cerrors.ErrInvalidData, "sink", "Write", "encode")
		}
		return nil
	})

	registry := metric.NewMetricsRegistry()
	p, err := New[int](rb, sink, testConfig(2, time.Hour), WithMetrics[int](registry))
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	require.NoError(t, rb.AppendSlice([]int{1, 2, 3, 4}))
	assert.Eventually(t, func() bool { return p.Stats().Batches == 1 },
		2*time.Second, 5*time.Millisecond)
	require.NoError(t, p.Stop(time.Second))

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Failures)
	assert.Equal(t, int64(2), stats.Dropped)
	assert.Equal(t, int32(2), calls.Load(), "invalid errors are not retried")

	core := registry.CoreMetrics()
	assert.Equal(t, 2.0, testutil.ToFloat64(core.ItemsDelivered.WithLabelValues("test")))
	assert.Equal(t, 1.0, testutil.ToFloat64(core.BatchesDelivered.WithLabelValues("test", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(core.ErrorsTotal.WithLabelValues("pump", "invalid")))
	assert.Equal(t, 0.0, testutil.ToFloat64(core.PumpStatus.WithLabelValues("test")))
}

func TestPump_StopDrainsBuffer(t *testing.T) {
	defer goleak.VerifyNone(t)

	rb := newTestBuffer(t, 256)
	sink := &collectingSink{}
	p, err := New[int](rb, sink, testConfig(100, time.Hour))
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, rb.AppendSlice([]int{1, 2, 3, 4, 5}))
	assert.Empty(t, sink.snapshot(), "partial batch waits for the flush interval")

	require.NoError(t, p.Stop(time.Second))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, sink.items())
	assert.Equal(t, 0, rb.Count())
}

func TestPump_InterruptedBatchIsRetriedDuringDrain(t *testing.T) {
	defer goleak.VerifyNone(t)

	rb := newTestBuffer(t, 16)
	var (
		calls     atomic.Int32
		delivered atomic.Int32
		blocked   = make(chan struct{})
	)
	sink := SinkFunc[int](func(ctx context.Context, batch []int) error {
		if calls.Add(1) == 1 {
			close(blocked)
			<-ctx.Done()
			return ctx.Err()
		}
		delivered.Add(int32(len(batch)))
		return nil
	})

	cfg := testConfig(4, time.Hour)
	cfg.Retry.MaxAttempts = 1
	p, err := New[int](rb, sink, cfg)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	require.NoError(t, rb.AppendSlice([]int{1, 2, 3, 4}))
	<-blocked
	require.NoError(t, p.Stop(time.Second))

	assert.Equal(t, int32(4), delivered.Load())
	assert.Zero(t, p.Stats().Dropped)
}

func TestPump_ZeroDrainTimeoutDropsRemainder(t *testing.T) {
	rb := newTestBuffer(t, 16)
	sink := &collectingSink{}
	cfg := testConfig(100, time.Hour)
	cfg.DrainTimeout = 0

	p, err := New[int](rb, sink, cfg)
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, rb.AppendSlice([]int{1, 2}))
	require.NoError(t, p.Stop(time.Second))

	assert.Empty(t, sink.snapshot())
	assert.Equal(t, 2, rb.Count(), "undrained elements stay in the buffer")
}

func TestPump_Lifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	rb := newTestBuffer(t, 8)
	p, err := New[int](rb, &collectingSink{}, testConfig(4, time.Hour))
	require.NoError(t, err)

	err = p.Stop(time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cerrors.ErrNotStarted))

	require.NoError(t, p.Start(context.Background()))
	assert.True(t, p.Running())

	err = p.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, cerrors.ErrAlreadyStarted))

	err = p.Run(context.Background())
	assert.True(t, errors.Is(err, cerrors.ErrAlreadyStarted))

	require.NoError(t, p.Stop(time.Second))
	assert.False(t, p.Running())

	// restart after stop
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Stop(time.Second))
}

func TestPump_StopTimeout(t *testing.T) {
	rb := newTestBuffer(t, 8)
	release := make(chan struct{})
	sink := SinkFunc[int](func(context.Context, []int) error {
		<-release
		return nil
	})

	p, err := New[int](rb, sink, testConfig(1, time.Hour))
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, rb.Append(1))
	time.Sleep(20 * time.Millisecond)

	err = p.Stop(20 * time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cerrors.ErrShuttingDown))
	assert.True(t, p.Running())

	close(release)
	require.NoError(t, p.Stop(time.Second))
}

func TestPump_Run(t *testing.T) {
	defer goleak.VerifyNone(t)

	rb := newTestBuffer(t, 64)
	sink := &collectingSink{}
	p, err := New[int](rb, sink, testConfig(8, time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, p.Running, time.Second, time.Millisecond)
	require.NoError(t, rb.AppendSlice([]int{1, 2, 3}))

	err = p.Stop(time.Second)
	assert.True(t, errors.Is(err, cerrors.ErrNotStarted), "Run-managed pumps stop via ctx")

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []int{1, 2, 3}, sink.items())
	assert.False(t, p.Running())
}

func TestPump_StatsDoNotBlockDuringStop(t *testing.T) {
	rb := newTestBuffer(t, 8)
	release := make(chan struct{})
	sink := SinkFunc[int](func(context.Context, []int) error {
		<-release
		return nil
	})

	p, err := New[int](rb, sink, testConfig(1, time.Hour))
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, rb.Append(1))
	time.Sleep(20 * time.Millisecond)

	stopped := make(chan error, 1)
	go func() { stopped <- p.Stop(5 * time.Second) }()
	time.Sleep(20 * time.Millisecond)

	statsDone := make(chan Stats, 1)
	go func() { statsDone <- p.Stats() }()
	select {
	case stats := <-statsDone:
		assert.True(t, stats.Running, "still draining")
	case <-time.After(time.Second):
		t.Fatal("Stats blocked while Stop was waiting")
	}

	close(release)
	require.NoError(t, <-stopped)
	assert.False(t, p.Running())
}

func TestPump_ContextEndStopsRunning(t *testing.T) {
	defer goleak.VerifyNone(t)

	rb := newTestBuffer(t, 8)
	sink := &collectingSink{}
	p, err := New[int](rb, sink, testConfig(4, time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Start(ctx))
	require.NoError(t, rb.AppendSlice([]int{1, 2}))
	cancel()

	require.Eventually(t, func() bool { return !p.Running() }, time.Second, time.Millisecond)
	assert.Equal(t, []int{1, 2}, sink.items(), "drained on context end")

	// a pump whose context ended can be started again, and Stop still works
	require.NoError(t, p.Start(context.Background()))
	assert.True(t, p.Running())
	require.NoError(t, p.Stop(time.Second))
	assert.False(t, p.Running())
	assert.True(t, errors.Is(p.Stop(time.Second), cerrors.ErrNotStarted))
}
