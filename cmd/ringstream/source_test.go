package main

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/c360/ringstream/config"
	"github.com/c360/ringstream/errors"
	"github.com/c360/ringstream/pkg/buffer"
)

type appendFunc func(Sample) error

func (f appendFunc) Append(s Sample) error { return f(s) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSensorSource_RoundRobin(t *testing.T) {
	src := newSensorSource(appendFunc(func(Sample) error { return nil }),
		config.SourceConfig{Sensors: 3, Rate: 1, Burst: 1}, discardLogger())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return fixed }

	var sensors []string
	for range 6 {
		s := src.next()
		sensors = append(sensors, s.Sensor)
		assert.Equal(t, fixed, s.At)
		assert.InDelta(t, 22, s.Value, 10)
	}
	assert.Equal(t, []string{
		"sensor-01", "sensor-02", "sensor-03",
		"sensor-01", "sensor-02", "sensor-03",
	}, sensors)
	assert.Equal(t, uint64(6), src.seq.Load())
}

func TestSensorSource_FillsBufferUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	rb, err := buffer.New[Sample](64)
	require.NoError(t, err)

	src := newSensorSource(rb, config.SourceConfig{Sensors: 2, Rate: 5000, Burst: 20}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx) }()

	assert.Eventually(t, func() bool { return rb.Count() >= 10 }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	for s := range rb.All() {
		assert.Contains(t, []string{"sensor-01", "sensor-02"}, s.Sensor)
	}
	assert.True(t, rb.ContainsFunc(func(s Sample) bool { return s.Sensor == "sensor-02" }))
}

func TestSensorSource_CountsBufferFaults(t *testing.T) {
	rb, err := buffer.New[Sample](2, buffer.WithExceptOnOverrun[Sample](true))
	require.NoError(t, err)

	src := newSensorSource(rb, config.SourceConfig{Sensors: 1, Rate: 5000, Burst: 10}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx) }()

	assert.Eventually(t, func() bool { return src.rejected.Load() > 0 }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done, "overruns do not stop the source")
	assert.True(t, rb.HasOverrun())
}

func TestSensorSource_StopsOnOtherErrors(t *testing.T) {
	boom := stderrors.New("disk on fire")
	calls := 0
	src := newSensorSource(appendFunc(func(Sample) error {
		calls++
		return boom
	}), config.SourceConfig{Sensors: 1, Rate: 1000, Burst: 1}, discardLogger())

	err := src.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.IsBufferFault(err))
	assert.Equal(t, 1, calls)
}
