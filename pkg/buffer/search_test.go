package buffer

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wrappedBuffer returns a capacity-5 buffer with tail=3, head=1 holding [3 4 5].
func wrappedBuffer(t *testing.T) *RingBuffer[int] {
	t.Helper()
	rb := newTestBuffer[int](t, 5)
	require.NoError(t, rb.AppendSlice([]int{0, 1, 2, 3, 4}))
	require.Len(t, rb.RemoveN(3), 3)
	require.NoError(t, rb.Append(5))
	require.Equal(t, 3, rb.tail)
	require.Equal(t, 1, rb.head)
	return rb
}

func TestFirstLast(t *testing.T) {
	rb := newTestBuffer[int](t, 4)
	require.NoError(t, rb.AppendSlice([]int{1, 2, 3, 4, 5, 6}))
	even := func(v int) bool { return v%2 == 0 }

	assert.Equal(t, 4, rb.First(even, -1))
	assert.Equal(t, 6, rb.Last(even, -1))
	assert.Equal(t, -1, rb.First(func(v int) bool { return v > 10 }, -1))
	assert.Equal(t, -1, rb.Last(func(v int) bool { return v < 0 }, -1))

	empty := newTestBuffer[int](t, 2)
	assert.Equal(t, 7, empty.First(even, 7))
	assert.Equal(t, 7, empty.Last(even, 7))
}

func TestContains(t *testing.T) {
	rb := newTestBuffer[string](t, 2)
	require.NoError(t, rb.AppendSlice([]string{"a", "b", "c"}))

	assert.False(t, Contains(rb, "a"), "evicted")
	assert.True(t, Contains(rb, "b"))
	assert.True(t, Contains(rb, "c"))
	assert.True(t, rb.ContainsFunc(func(s string) bool { return s > "b" }))
	assert.False(t, rb.ContainsFunc(func(s string) bool { return s == "" }), "zeroed slots are not searched")
}

func TestAt(t *testing.T) {
	rb := newTestBuffer[int](t, 3)
	require.NoError(t, rb.AppendSlice([]int{1, 2, 3, 4, 5}))

	assert.Equal(t, 3, rb.At(0))
	assert.Equal(t, 4, rb.At(1))
	assert.Equal(t, 5, rb.At(2))
	assert.Equal(t, 3, rb.At(3), "positions wrap modulo capacity")
	assert.Equal(t, 5, rb.At(-1))
}

func TestAll_Snapshot(t *testing.T) {
	rb := wrappedBuffer(t)

	var seen []int
	for v := range rb.All() {
		seen = append(seen, v)
		// mutations during iteration do not affect it
		_ = rb.Append(v * 10)
	}
	assert.Equal(t, []int{3, 4, 5}, seen)

	var first []int
	for v := range rb.All() {
		first = append(first, v)
		break
	}
	assert.Len(t, first, 1)
}

func TestValues_NoAliasing(t *testing.T) {
	rb := newTestBuffer[int](t, 3)
	require.NoError(t, rb.AppendSlice([]int{1, 2}))

	vals := rb.Values()
	vals[0] = 99
	assert.Equal(t, []int{1, 2}, rb.Values())
}

func TestRemoveN(t *testing.T) {
	rb := wrappedBuffer(t)

	assert.Empty(t, rb.RemoveN(4), "more than held removes nothing")
	assert.Equal(t, 3, rb.Count())
	assert.Empty(t, rb.RemoveN(0))
	assert.Empty(t, rb.RemoveN(-1))
	assert.NotNil(t, rb.RemoveN(0), "empty result is a non-nil slice")

	assert.Equal(t, []int{3, 4}, rb.RemoveN(2))
	assert.Equal(t, []int{5}, rb.RemoveN(1))
	assert.True(t, rb.IsEmpty())
	assert.False(t, rb.HasUnderrun(), "RemoveN never underruns")
}

func TestMoveItemsTo_AcrossWrap(t *testing.T) {
	rb := wrappedBuffer(t)
	reference := wrappedBuffer(t)

	dst := make([]int, 5)
	n := rb.MoveItemsTo(dst, 0, 4)
	require.Equal(t, 3, n, "min(requested, available)")

	var singles []int
	for range n {
		item, ok, err := reference.Remove()
		require.NoError(t, err)
		require.True(t, ok)
		singles = append(singles, item)
	}

	if diff := cmp.Diff(singles, dst[:n]); diff != "" {
		t.Errorf("bulk move order differs from single removes (-single +bulk):\n%s", diff)
	}
	assert.True(t, rb.IsEmpty())
	assert.Equal(t, []int{0, 0, 0, 0, 0}, rb.items, "moved slots are zeroed")
}

func TestMoveItemsTo_Limits(t *testing.T) {
	tests := []struct {
		name   string
		dstLen int
		index  int
		count  int
		want   int
		moved  []int
	}{
		{"limited by count", 10, 0, 2, 2, []int{1, 2}},
		{"limited by held", 10, 0, 9, 4, []int{1, 2, 3, 4}},
		{"limited by destination", 3, 1, 9, 2, []int{1, 2}},
		{"index at end", 3, 3, 2, 0, nil},
		{"index past end", 3, 4, 2, 0, nil},
		{"negative index", 3, -1, 2, 0, nil},
		{"zero count", 3, 0, 0, 0, nil},
		{"negative count", 3, 0, -2, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := newTestBuffer[int](t, 4)
			require.NoError(t, rb.AppendSlice([]int{1, 2, 3, 4}))

			dst := make([]int, tt.dstLen)
			got := rb.MoveItemsTo(dst, tt.index, tt.count)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, 4-tt.want, rb.Count())
			if tt.want > 0 {
				assert.Equal(t, tt.moved, dst[tt.index:tt.index+got])
				assert.False(t, rb.IsFull())
			}
		})
	}
}

func TestMoveItemsTo_Empty(t *testing.T) {
	rb := newTestBuffer[int](t, 4)
	dst := make([]int, 4)

	assert.Equal(t, 0, rb.MoveItemsTo(dst, 0, 4))
	assert.False(t, rb.HasUnderrun())
}

func TestMoveItemsTo_ReArmsHighWater(t *testing.T) {
	rb := newTestBuffer[int](t, 4, WithHighWaterLevel[int](4))
	high := countEvents(rb, EventHighWater)

	require.NoError(t, rb.AppendSlice([]int{1, 2, 3, 4}))
	dst := make([]int, 2)
	rb.MoveItemsTo(dst, 0, 2)
	require.NoError(t, rb.AppendSlice([]int{5, 6}))

	assert.Equal(t, 2, *high)
	assert.Equal(t, []int{3, 4, 5, 6}, slices.Collect(rb.All()))
}
