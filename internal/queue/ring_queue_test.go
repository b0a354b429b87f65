package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingQueue(t *testing.T) {
	require := require.New(t)

	t.Run("Empty Queue", func(t *testing.T) {
		q := NewRingQueue[int](3)
		require.True(q.IsEmpty())
		require.False(q.IsFull())
		require.Equal(3, q.Capacity())

		_, ok := q.Dequeue()
		require.False(ok)
		_, ok = q.Peek()
		require.False(ok)
	})

	t.Run("FIFO order with wrap", func(t *testing.T) {
		q := NewRingQueue[int](3)
		q.Enqueue(1)
		q.Enqueue(2)
		v, _ := q.Dequeue()
		require.Equal(1, v)

		q.Enqueue(3)
		q.Enqueue(4)
		require.True(q.IsFull())

		for _, want := range []int{2, 3, 4} {
			v, ok := q.Dequeue()
			require.True(ok)
			require.Equal(want, v)
		}
		require.True(q.IsEmpty())
	})

	t.Run("Push evicts oldest", func(t *testing.T) {
		q := NewRingQueue[string](2)

		_, evicted := q.Push("a")
		require.False(evicted)
		_, evicted = q.Push("b")
		require.False(evicted)

		old, evicted := q.Push("c")
		require.True(evicted)
		require.Equal("a", old)
		require.Equal(2, q.Length())

		head, _ := q.Peek()
		require.Equal("b", head)
	})

	t.Run("Reset", func(t *testing.T) {
		q := NewRingQueue[int](2)
		q.Enqueue(1)
		q.Reset()
		require.True(q.IsEmpty())
		require.Equal(2, q.Capacity())
	})

	t.Run("Minimum capacity", func(t *testing.T) {
		q := NewRingQueue[int](0)
		require.Equal(1, q.Capacity())
	})
}
