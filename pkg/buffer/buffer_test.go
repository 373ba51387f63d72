package buffer

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/c360/ringstream/errors"
)

func newTestBuffer[T any](t testing.TB, capacity int, opts ...Option[T]) *RingBuffer[T] {
	t.Helper()
	rb, err := New[T](capacity, opts...)
	require.NoError(t, err, "Failed to create buffer")
	return rb
}

// countEvents subscribes a counter for kind.
func countEvents[T any](rb *RingBuffer[T], kind EventKind) *int {
	n := new(int)
	rb.Subscribe(kind, func(Event[T]) { *n++ })
	return n
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		opts     []Option[int]
		sentinel error
	}{
		{"zero capacity", 0, nil, cerrors.ErrInvalidCapacity},
		{"negative capacity", -3, nil, cerrors.ErrInvalidCapacity},
		{"negative high water", 4, []Option[int]{WithHighWaterLevel[int](-1)}, cerrors.ErrInvalidConfig},
		{"negative low water", 4, []Option[int]{WithLowWaterLevel[int](-1)}, cerrors.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb, err := New[int](tt.capacity, tt.opts...)
			require.Error(t, err)
			assert.Nil(t, rb)
			assert.True(t, errors.Is(err, tt.sentinel))
			assert.True(t, cerrors.IsInvalid(err))
		})
	}
}

func TestNew_InitialState(t *testing.T) {
	rb := newTestBuffer[string](t, 5)

	assert.Equal(t, 0, rb.Count())
	assert.Equal(t, 5, rb.MaxElements())
	assert.True(t, rb.IsEmpty())
	assert.False(t, rb.IsFull())
	assert.False(t, rb.HasOverrun())
	assert.False(t, rb.HasUnderrun())
	assert.Equal(t, 0, rb.HighWaterLevel())
	assert.Equal(t, 0, rb.LowWaterLevel())
	assert.False(t, rb.ExceptOnOverrun())
	assert.False(t, rb.ExceptOnUnderrun())
	assert.Equal(t, DefaultName, rb.Name())
	assert.Empty(t, rb.Values())
}

func TestRingBuffer_FillWithoutRemoves(t *testing.T) {
	const capacity = 6
	rb := newTestBuffer[int](t, capacity)

	for n := 1; n <= capacity; n++ {
		require.NoError(t, rb.Append(n))
		assert.Equal(t, n, rb.Count())
		assert.Equal(t, n == capacity, rb.IsFull())
	}
}

// capacity=3, append 1..4, then remove.
func TestRingBuffer_OverrunScenario(t *testing.T) {
	rb := newTestBuffer[int](t, 3)

	var evicted []int
	rb.Subscribe(EventOverrun, func(e Event[int]) { evicted = append(evicted, e.Item) })

	require.NoError(t, rb.AppendSlice([]int{1, 2, 3}))
	assert.True(t, rb.IsFull())
	assert.Equal(t, 3, rb.Count())

	require.NoError(t, rb.Append(4))
	assert.Equal(t, []int{1}, evicted)
	assert.Equal(t, 3, rb.Count())
	assert.True(t, rb.HasOverrun())
	assert.Equal(t, []int{2, 3, 4}, slices.Collect(rb.All()))

	item, ok, err := rb.Remove()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, item)
	assert.Equal(t, 2, rb.Count())
	assert.False(t, rb.IsFull())
}

func TestRingBuffer_EvictionIsFIFO(t *testing.T) {
	const capacity = 4
	for k := 1; k <= 9; k++ {
		rb := newTestBuffer[int](t, capacity)
		for i := 0; i < capacity+k; i++ {
			require.NoError(t, rb.Append(i))
		}

		assert.Equal(t, capacity, rb.Count())
		oldest, ok, err := rb.Peek()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, k, oldest, "oldest survivor after %d extra appends", k)
	}
}

func TestRingBuffer_RemoveThenPeek(t *testing.T) {
	rb := newTestBuffer[string](t, 3)
	require.NoError(t, rb.AppendSlice([]string{"first", "second", "third"}))

	item, ok, err := rb.Remove()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", item)
	assert.Equal(t, 2, rb.Count())

	item, ok, err = rb.Peek()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", item)
	assert.Equal(t, 2, rb.Count(), "peek must not consume")
}

func TestRingBuffer_RoundTrip(t *testing.T) {
	in := []int{5, 3, 8, 1, 9, 2, 7}
	rb := newTestBuffer[int](t, len(in))
	require.NoError(t, rb.AppendSlice(in))

	out := make([]int, 0, len(in))
	for range in {
		item, ok, err := rb.Remove()
		require.NoError(t, err)
		require.True(t, ok)
		out = append(out, item)
	}
	assert.Equal(t, in, out)
	assert.True(t, rb.IsEmpty())
}

func TestAppend_OverrunFailFast(t *testing.T) {
	rb := newTestBuffer[int](t, 2, WithExceptOnOverrun[int](true))
	overruns := countEvents(rb, EventOverrun)
	appended := countEvents(rb, EventItemAppended)

	require.NoError(t, rb.AppendSlice([]int{1, 2}))

	err := rb.Append(3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cerrors.ErrOverrun))
	assert.True(t, cerrors.IsTransient(err))
	assert.True(t, cerrors.IsBufferFault(err))

	// oldest evicted, new element not stored
	assert.Equal(t, []int{2}, rb.Values())
	assert.False(t, rb.IsFull())
	assert.True(t, rb.HasOverrun())
	assert.Equal(t, 0, *overruns, "fail-fast faults are not notified")
	assert.Equal(t, 2, *appended)

	require.NoError(t, rb.Append(4))
	assert.Equal(t, []int{2, 4}, rb.Values())
}

func TestAppendSlice_StopsAtFirstError(t *testing.T) {
	rb := newTestBuffer[int](t, 2, WithExceptOnOverrun[int](true))

	err := rb.AppendSlice([]int{1, 2, 3, 4})
	require.Error(t, err)
	assert.Equal(t, []int{2}, rb.Values(), "4 is never attempted")
}

func TestRemove_Underrun(t *testing.T) {
	t.Run("notify", func(t *testing.T) {
		rb := newTestBuffer[int](t, 2)
		underruns := countEvents(rb, EventUnderrun)

		item, ok, err := rb.Remove()
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, item)
		assert.True(t, rb.HasUnderrun())
		assert.Equal(t, 1, *underruns)

		_, ok, err = rb.Peek()
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 2, *underruns)
		assert.Equal(t, int64(2), rb.Stats().Underruns())
	})

	t.Run("fail fast", func(t *testing.T) {
		rb := newTestBuffer[int](t, 2, WithExceptOnUnderrun[int](true))
		underruns := countEvents(rb, EventUnderrun)

		_, ok, err := rb.Remove()
		require.Error(t, err)
		assert.False(t, ok)
		assert.True(t, errors.Is(err, cerrors.ErrUnderrun))
		assert.True(t, cerrors.IsTransient(err))

		_, _, err = rb.Peek()
		assert.True(t, errors.Is(err, cerrors.ErrUnderrun))

		assert.True(t, rb.HasUnderrun())
		assert.Equal(t, 0, *underruns)
	})
}

func TestRingBuffer_PolicySwitchAtRuntime(t *testing.T) {
	rb := newTestBuffer[int](t, 1)
	require.NoError(t, rb.Append(1))

	rb.SetExceptOnOverrun(true)
	assert.True(t, rb.ExceptOnOverrun())
	assert.Error(t, rb.Append(2))

	rb.SetExceptOnOverrun(false)
	assert.NoError(t, rb.Append(3))
	assert.Equal(t, []int{3}, rb.Values())
}

func TestRingBuffer_StickyFlags(t *testing.T) {
	rb := newTestBuffer[int](t, 1)

	require.NoError(t, rb.AppendSlice([]int{1, 2}))
	_, _, _ = rb.Remove()
	_, _, _ = rb.Remove()
	require.True(t, rb.HasOverrun())
	require.True(t, rb.HasUnderrun())

	// successful operations do not clear the flags
	require.NoError(t, rb.Append(3))
	_, ok, _ := rb.Remove()
	require.True(t, ok)
	assert.True(t, rb.HasOverrun())
	assert.True(t, rb.HasUnderrun())

	rb.Clear()
	assert.True(t, rb.HasOverrun(), "Clear keeps sticky flags")
	assert.True(t, rb.HasUnderrun(), "Clear keeps sticky flags")

	rb.SetHasOverrun(false)
	assert.False(t, rb.HasOverrun())
	assert.True(t, rb.HasUnderrun())

	rb.Reset()
	assert.False(t, rb.HasOverrun())
	assert.False(t, rb.HasUnderrun())
}

func TestRingBuffer_Clear(t *testing.T) {
	rb := newTestBuffer[int](t, 4)
	appended := countEvents(rb, EventItemAppended)
	require.NoError(t, rb.AppendSlice([]int{1, 2, 3, 4}))

	rb.Clear()

	assert.Equal(t, 0, rb.Count())
	assert.True(t, rb.IsEmpty())
	assert.False(t, rb.IsFull())
	assert.Equal(t, 4, *appended, "Clear raises no events")
	assert.Empty(t, rb.Values())

	require.NoError(t, rb.AppendSlice([]int{7, 8}))
	assert.Equal(t, []int{7, 8}, rb.Values())
}

func TestAppendRange(t *testing.T) {
	items := []int{10, 11, 12, 13, 14}

	t.Run("valid window", func(t *testing.T) {
		rb := newTestBuffer[int](t, 5)
		require.NoError(t, rb.AppendRange(items, 1, 3))
		assert.Equal(t, []int{11, 12, 13}, rb.Values())

		require.NoError(t, rb.AppendRange(items, 5, 0), "empty window at end is valid")
		assert.Equal(t, 3, rb.Count())
	})

	invalid := []struct {
		name          string
		offset, count int
	}{
		{"negative offset", -1, 2},
		{"negative count", 0, -1},
		{"offset past end", 6, 0},
		{"window past end", 3, 3},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			rb := newTestBuffer[int](t, 5)
			err := rb.AppendRange(items, tt.offset, tt.count)
			require.Error(t, err)
			assert.True(t, errors.Is(err, cerrors.ErrInvalidRange))
			assert.True(t, cerrors.IsInvalid(err))
			assert.Equal(t, 0, rb.Count(), "nothing appended")
		})
	}
}

func TestAppendSeq(t *testing.T) {
	rb := newTestBuffer[string](t, 3)
	require.NoError(t, rb.AppendSeq(slices.Values([]string{"a", "b", "c", "d"})))

	assert.Equal(t, []string{"b", "c", "d"}, rb.Values())
	assert.True(t, rb.HasOverrun())
}

func TestRingBuffer_GenericTypes(t *testing.T) {
	type sample struct {
		Sensor string
		Value  float64
	}

	rb := newTestBuffer[*sample](t, 2)
	s := &sample{Sensor: "imu", Value: 0.5}
	require.NoError(t, rb.Append(s))

	got, ok, err := rb.Remove()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, s, got)

	got, ok, err = rb.Remove()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestRingBuffer_RemoveZeroesSlot(t *testing.T) {
	rb := newTestBuffer[*int](t, 2)
	v := 42
	require.NoError(t, rb.Append(&v))
	_, _, _ = rb.Remove()

	assert.Nil(t, rb.items[0], "removed slot must not pin the element")
}

func TestRingBuffer_ThreadSafety(t *testing.T) {
	rb := newTestBuffer[int](t, 64)

	const (
		producers   = 4
		consumers   = 4
		perProducer = 2000
	)

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, rb.Append(base+i))
			}
		}(p * perProducer)
	}

	var removed sync.Map
	for c := 0; c < consumers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]int, 8)
			for i := 0; i < perProducer/2; i++ {
				if i%2 == 0 {
					if item, ok, _ := rb.Remove(); ok {
						_, dup := removed.LoadOrStore(item, true)
						assert.False(t, dup, "item %d removed twice", item)
					}
					continue
				}
				n := rb.MoveItemsTo(batch, 0, len(batch))
				for _, item := range batch[:n] {
					_, dup := removed.LoadOrStore(item, true)
					assert.False(t, dup, "item %d removed twice", item)
				}
			}
		}()
	}
	wg.Wait()

	stats := rb.Stats()
	assert.LessOrEqual(t, rb.Count(), rb.MaxElements())
	assert.Equal(t, int64(producers*perProducer), stats.Appends())
	assert.Equal(t, stats.Appends()-stats.Removes()-stats.Overruns(), int64(rb.Count()),
		"every appended element is either held, removed or evicted")
}
