package controller

import (
	"testing"
	"time"

	"github.com/arloliu/go-nextion/internal/linktest"
	"github.com/arloliu/go-nextion/link"
	"github.com/arloliu/go-nextion/logger"
	"github.com/arloliu/go-nextion/uploader"
)

const eventWait = 5 * time.Second

// newTestController creates a Controller with short delays suitable for tests.
func newTestController(t *testing.T, opener link.Opener, opts ...Option) *Controller {
	t.Helper()

	defaults := []Option{
		WithSettleDelay(5 * time.Millisecond),
		WithProbeInterval(10 * time.Millisecond),
		WithProbeTimeout(30 * time.Millisecond),
		WithAnnounceTimeout(30 * time.Millisecond),
		WithRestartDelay(10 * time.Millisecond),
		WithLogger(logger.NewNop()),
		WithUploaderOptions(
			uploader.WithCommandDelay(0),
			uploader.WithHandshakeTimeout(40*time.Millisecond),
			uploader.WithAckTimeout(100*time.Millisecond),
			uploader.WithFinalTimeout(200*time.Millisecond),
		),
	}

	c, err := New(opener, append(defaults, opts...)...)
	if err != nil {
		t.Fatalf("newTestController: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	return c
}

// subscribe returns an event channel with a generous buffer.
func subscribe(t *testing.T, c *Controller) <-chan Event {
	t.Helper()

	ch, cancel := c.Subscribe(1024)
	t.Cleanup(cancel)

	return ch
}

// waitEvent reads events until match returns true and returns every event read.
func waitEvent(t *testing.T, ch <-chan Event, match func(Event) bool) []Event {
	t.Helper()

	var seen []Event
	timer := time.NewTimer(eventWait)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed after %d events", len(seen))
			}
			seen = append(seen, ev)
			if match(ev) {
				return seen
			}
		case <-timer.C:
			t.Fatalf("timed out waiting for event, seen %v", seen)
		}
	}
}

// waitKind waits for the first event of kind.
func waitKind(t *testing.T, ch <-chan Event, kind EventKind) []Event {
	t.Helper()

	return waitEvent(t, ch, func(ev Event) bool { return ev.Kind == kind })
}

// waitState waits for a transition into state.
func waitState(t *testing.T, ch <-chan Event, state State) []Event {
	t.Helper()

	return waitEvent(t, ch, func(ev Event) bool { return ev.Kind == EventStateChanged && ev.State == state })
}

// drain returns the events that arrive within d.
func drain(ch <-chan Event, d time.Duration) []Event {
	var seen []Event
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return seen
			}
			seen = append(seen, ev)
		case <-timer.C:
			return seen
		}
	}
}

func countKind(events []Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}

	return n
}

func makeFirmware(size int) []byte {
	fw := make([]byte, size)
	for i := range fw {
		fw[i] = byte(i)
	}

	return fw
}

func newDisplay(opts ...linktest.Option) *linktest.Display {
	return linktest.NewDisplay(opts...)
}
