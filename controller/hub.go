package controller

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-nextion/internal/queue"
)

// eventHub fans events out to subscribers. Publish never blocks: events are
// queued and a dispatcher goroutine delivers them in order.
type eventHub struct {
	queue  queue.Queue[Event]
	notify chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup

	subs   *xsync.MapOf[uint64, *subscriber]
	nextID atomic.Uint64
	closed atomic.Bool
}

type subscriber struct {
	mu     sync.Mutex
	ch     chan Event
	done   chan struct{}
	once   sync.Once
	closed bool
}

func newEventHub() *eventHub {
	h := &eventHub{
		queue:  queue.NewLockFreeQueue[Event](),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		subs:   xsync.NewMapOf[uint64, *subscriber](),
	}

	h.wg.Add(1)
	go h.dispatch()

	return h
}

func (h *eventHub) publish(ev Event) {
	if h.closed.Load() {
		return
	}

	h.queue.Enqueue(ev)
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// subscribe registers a subscriber with a channel buffer of size.
func (h *eventHub) subscribe(size int) (<-chan Event, func()) {
	if size < 0 {
		size = 0
	}

	s := &subscriber{ch: make(chan Event, size), done: make(chan struct{})}
	if h.closed.Load() {
		s.close()
		return s.ch, func() {}
	}

	id := h.nextID.Add(1)
	h.subs.Store(id, s)

	return s.ch, func() {
		h.subs.Delete(id)
		s.close()
	}
}

func (h *eventHub) dispatch() {
	defer h.wg.Done()

	for {
		select {
		case <-h.notify:
			h.drain()
		case <-h.done:
			h.drain()
			h.subs.Range(func(id uint64, s *subscriber) bool {
				h.subs.Delete(id)
				s.close()

				return true
			})

			return
		}
	}
}

func (h *eventHub) drain() {
	for {
		ev, ok := h.queue.Dequeue()
		if !ok {
			return
		}

		h.subs.Range(func(_ uint64, s *subscriber) bool {
			s.send(ev, h.done)
			return true
		})
	}
}

func (h *eventHub) close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}

	close(h.done)
	h.wg.Wait()
}

// send blocks until ev is taken, the subscriber is cancelled or the hub is
// closed.
func (s *subscriber) send(ev Event, hubDone <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.ch <- ev:
	case <-s.done:
	case <-hubDone:
		// deliver what fits without waiting
		select {
		case s.ch <- ev:
		default:
		}
	}
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.done)

		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}
