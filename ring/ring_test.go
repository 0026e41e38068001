package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopFIFO(t *testing.T) {
	r := New[int](2)
	r.Push(1)
	r.Push(2)
	r.Push(3) // forces growth, must not drop 1

	assert.Equal(t, 3, r.Len())

	for _, want := range []int{1, 2, 3} {
		got, ok := r.Pop()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := r.Pop()
	assert.False(t, ok)
}

func TestFrontDoesNotRemove(t *testing.T) {
	r := New[string](4)
	r.Push("a")
	r.Push("b")

	v, ok := r.Front()
	require.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, 2, r.Len())
}

func TestWrapAround(t *testing.T) {
	r := New[int](2)
	r.Push(1)
	r.Push(2)
	v, _ := r.Pop()
	assert.Equal(t, 1, v)
	r.Push(3)
	r.Push(4) // wraps and grows within a capacity-2 buffer

	var got []int
	for {
		v, ok := r.Pop()
		if !ok {
			break
		}
		got = append(got, v)
	}
	assert.Equal(t, []int{2, 3, 4}, got)
}

func TestDrain(t *testing.T) {
	r := New[int](8)
	r.Push(1)
	r.Push(2)
	r.Push(3)

	got := r.Drain()
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, 0, r.Len())
}
