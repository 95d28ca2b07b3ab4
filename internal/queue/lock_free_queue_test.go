package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockFreeQueue(t *testing.T) {
	testQueueBasics(t, func() Queue[*burst] { return NewLockFreeQueue[*burst]() })
}

func TestLockFreeQueue_Concurrency(t *testing.T) {
	q := NewLockFreeQueue[int]()

	var wg sync.WaitGroup
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q.Enqueue(i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1000, q.Length())

	var mu sync.Mutex
	seen := make(map[int]bool, 1000)

	wg.Add(1000)
	for i := 0; i < 1000; i++ {
		go func() {
			defer wg.Done()
			v, ok := q.Dequeue()
			if !ok {
				return
			}
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.True(t, q.IsEmpty())
	assert.Len(t, seen, 1000)
}

func TestLockFreeQueue_SingleProducerOrder(t *testing.T) {
	q := NewLockFreeQueue[int]()
	done := make(chan []int)

	go func() {
		got := make([]int, 0, 100)
		for len(got) < 100 {
			if v, ok := q.Dequeue(); ok {
				got = append(got, v)
			}
		}
		done <- got
	}()

	for i := 0; i < 100; i++ {
		q.Enqueue(i)
	}

	got := <-done
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func BenchmarkLockFreeQueue_100(b *testing.B) {
	benchLockFreeQueue(b, 100)
}

func BenchmarkChannelBuffered_100(b *testing.B) {
	benchChannel(b, 100)
}

func benchLockFreeQueue(b *testing.B, iterCount int) {
	ctx := context.Background()
	q := NewLockFreeQueue[int]()

	b.ResetTimer()
	for i := 0; i <= b.N; i++ {
		stopCh := make(chan struct{})
		go func(ctx context.Context, q Queue[int]) {
			for {
				select {
				case <-ctx.Done():
					return
				default:
					item, ok := q.Dequeue()
					if ok && item == iterCount {
						close(stopCh)
						return
					}
				}
			}
		}(ctx, q)

		for i := 0; i < iterCount; i++ {
			q.Enqueue(i + 1)
		}
		<-stopCh
	}
	b.StopTimer()
}

func benchChannel(b *testing.B, iterCount int) {
	input := make(chan int, iterCount)

	b.ResetTimer()
	for i := 0; i <= b.N; i++ {
		stopCh := make(chan struct{})
		go func(input chan int) {
			for data := range input {
				if data == iterCount {
					close(stopCh)
					return
				}
			}
		}(input)

		for i := 0; i < iterCount; i++ {
			input <- (i + 1)
		}
		<-stopCh
	}
	b.StopTimer()
}
