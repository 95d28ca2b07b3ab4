package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type burst struct {
	baud int
	data []byte
}

func testQueueBasics(t *testing.T, newQueue func() Queue[*burst]) {
	t.Run("Empty Queue", func(t *testing.T) {
		q := newQueue()

		assert.True(t, q.IsEmpty())
		assert.Equal(t, 0, q.Length())
		item, ok := q.Dequeue()
		assert.False(t, ok)
		assert.Nil(t, item)
		item, ok = q.Peek()
		assert.False(t, ok)
		assert.Nil(t, item)
	})

	t.Run("FIFO order", func(t *testing.T) {
		q := newQueue()

		comok := &burst{baud: 9600, data: []byte("comok")}
		ack := &burst{baud: 921600, data: []byte{0x05}}
		q.Enqueue(comok)
		q.Enqueue(ack)
		assert.Equal(t, 2, q.Length())

		head, ok := q.Peek()
		assert.True(t, ok)
		assert.Same(t, comok, head)
		assert.Equal(t, 2, q.Length())

		item, ok := q.Dequeue()
		assert.True(t, ok)
		assert.Same(t, comok, item)

		item, ok = q.Dequeue()
		assert.True(t, ok)
		assert.Same(t, ack, item)
		assert.True(t, q.IsEmpty())
	})

	t.Run("Reset", func(t *testing.T) {
		q := newQueue()
		for i := 0; i < 5; i++ {
			q.Enqueue(&burst{baud: i})
		}

		q.Reset()
		assert.True(t, q.IsEmpty())
		assert.Equal(t, 0, q.Length())

		q.Enqueue(&burst{baud: 115200})
		item, ok := q.Dequeue()
		assert.True(t, ok)
		assert.Equal(t, 115200, item.baud)
	})
}

func TestSliceQueue(t *testing.T) {
	testQueueBasics(t, func() Queue[*burst] { return NewSliceQueue[*burst](1) })
}

func TestSliceQueue_ValueTypes(t *testing.T) {
	q := NewSliceQueue[int](0)
	q.Enqueue(1)
	q.Enqueue(2)

	v, ok := q.Dequeue()
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = q.Dequeue()
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	v, ok = q.Dequeue()
	assert.False(t, ok)
	assert.Zero(t, v)
}
