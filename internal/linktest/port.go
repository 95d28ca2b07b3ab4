package linktest

import (
	"time"
)

// port is one open connection to a Display at a fixed baud.
type port struct {
	display *Display
	baud    int
	timeout time.Duration
	closed  bool
	rest    []byte
}

func (p *port) SetReadTimeout(t time.Duration) error {
	p.display.mu.Lock()
	defer p.display.mu.Unlock()

	if p.closed {
		return ErrPortClosed
	}
	p.timeout = t

	return nil
}

// Read returns at most one reply burst. It returns (0, nil) when the read
// timeout elapses, like a real serial port.
func (p *port) Read(b []byte) (int, error) {
	d := p.display
	d.mu.Lock()
	timeout := p.timeout
	d.mu.Unlock()

	var deadline time.Time
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		d.mu.Lock()
		if p.closed {
			d.mu.Unlock()
			return 0, ErrPortClosed
		}
		if d.unplugged {
			d.mu.Unlock()
			return 0, ErrUnplugged
		}

		if len(p.rest) > 0 {
			n := copy(b, p.rest)
			p.rest = p.rest[n:]
			d.mu.Unlock()

			return n, nil
		}

		now := time.Now()
		head, ok, readyAt := d.next(p.baud, now)
		if ok {
			d.pending.Dequeue()
			n := copy(b, head.data)
			// the caller's buffer is short; keep the rest for the next read
			p.rest = head.data[n:]
			d.mu.Unlock()

			return n, nil
		}
		d.mu.Unlock()

		wait := 5 * time.Millisecond
		if !readyAt.IsZero() {
			wait = readyAt.Sub(now)
		}
		if !deadline.IsZero() {
			left := deadline.Sub(now)
			if left <= 0 {
				return 0, nil
			}
			wait = min(wait, left)
		}
		time.Sleep(wait)
	}
}

func (p *port) Write(b []byte) (int, error) {
	d := p.display
	d.mu.Lock()
	defer d.mu.Unlock()

	if p.closed {
		return 0, ErrPortClosed
	}
	if d.unplugged {
		return 0, ErrUnplugged
	}
	d.receive(b, p.baud)

	return len(b), nil
}

func (p *port) Close() error {
	d := p.display
	d.mu.Lock()
	defer d.mu.Unlock()

	p.closed = true

	return nil
}
