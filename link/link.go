package link

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/arloliu/go-nextion/logger"
)

const (
	// DefaultBurstGap is the silence that terminates a coalesced read.
	DefaultBurstGap = 5 * time.Millisecond
	// MaxBurstGap bounds WithBurstGap.
	MaxBurstGap = 500 * time.Millisecond

	// DefaultReadBufferSize is the maximum number of bytes returned by one read.
	DefaultReadBufferSize = 4096
)

var (
	// ErrPort is the root of every failure reported by the port backend.
	ErrPort = errors.New("link: port error")
	// ErrClosed is returned by Write and ReadAvailable when the link is closed.
	ErrClosed = errors.New("link: link is closed")
	// ErrAlreadyOpen is returned by Open when the link is already open.
	ErrAlreadyOpen = errors.New("link: link is already open")
	// ErrInvalidBaud is returned for a non-positive baud rate.
	ErrInvalidBaud = errors.New("link: invalid baud rate")
)

// PortError describes a failed port operation.
type PortError struct {
	Port string
	Op   string
	Baud int
	Err  error
}

func (e *PortError) Error() string {
	if e.Baud > 0 {
		return fmt.Sprintf("link: %s %s at %d baud: %v", e.Op, e.Port, e.Baud, e.Err)
	}

	return fmt.Sprintf("link: %s %s: %v", e.Op, e.Port, e.Err)
}

// Unwrap allows errors.Is to match both ErrPort and the backend error.
func (e *PortError) Unwrap() []error {
	return []error{ErrPort, e.Err}
}

// Port is the byte stream of an opened serial device.
//
// Read must return (0, nil) when the read timeout elapses with no data, which is
// the behaviour of go.bug.st/serial.
type Port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// Opener opens a named port at the given baud rate.
type Opener interface {
	Open(name string, baud int) (Port, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(name string, baud int) (Port, error)

// Open calls f(name, baud).
func (f OpenerFunc) Open(name string, baud int) (Port, error) { return f(name, baud) }

// Link is a serial connection whose baud rate can be switched by reopening.
//
// Link is NOT goroutine-safe; it is owned by the single upload worker.
type Link struct {
	opener   Opener
	name     string
	baud     int
	port     Port
	timeout  time.Duration
	burstGap time.Duration
	buf      []byte
	logger   logger.Logger
}

// New creates a closed Link for the named port.
func New(opener Opener, name string, opts ...Option) (*Link, error) {
	if opener == nil {
		return nil, errors.New("link: opener is nil")
	}
	if name == "" {
		return nil, errors.New("link: port name is empty")
	}

	l := &Link{
		opener:   opener,
		name:     name,
		timeout:  -1,
		burstGap: DefaultBurstGap,
		buf:      make([]byte, DefaultReadBufferSize),
		logger:   logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(l); err != nil {
			return nil, err
		}
	}
	l.logger = l.logger.With("port", name)

	return l, nil
}

// Name returns the port name.
func (l *Link) Name() string { return l.name }

// Baud returns the baud rate of the open port, or of the last opened port.
func (l *Link) Baud() int { return l.baud }

// IsOpen reports whether the link is open.
func (l *Link) IsOpen() bool { return l.port != nil }

// Open opens the port at baud.
func (l *Link) Open(baud int) error {
	if l.port != nil {
		return ErrAlreadyOpen
	}
	if baud <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBaud, baud)
	}

	port, err := l.opener.Open(l.name, baud)
	if err != nil {
		return &PortError{Port: l.name, Op: "open", Baud: baud, Err: err}
	}

	l.port = port
	l.baud = baud
	l.timeout = -1
	l.logger.Debug("link opened", "baud", baud)

	return nil
}

// Close closes the port. Closing a closed link is a no-op.
func (l *Link) Close() error {
	if l.port == nil {
		return nil
	}

	port := l.port
	l.port = nil
	if err := port.Close(); err != nil {
		return &PortError{Port: l.name, Op: "close", Err: err}
	}
	l.logger.Debug("link closed", "baud", l.baud)

	return nil
}

// SetBaud makes sure the link is open at baud. An open link at a different
// baud is closed and reopened; an open link at the same baud is left alone.
func (l *Link) SetBaud(baud int) error {
	if l.port != nil && l.baud == baud {
		return nil
	}

	return l.Reopen(baud)
}

// Reopen closes the link if needed and opens it at baud.
func (l *Link) Reopen(baud int) error {
	if err := l.Close(); err != nil {
		return err
	}

	return l.Open(baud)
}

// Write writes all of p to the port.
func (l *Link) Write(p []byte) error {
	if l.port == nil {
		return ErrClosed
	}

	for written := 0; written < len(p); {
		n, err := l.port.Write(p[written:])
		written += n
		if err != nil {
			return &PortError{Port: l.name, Op: "write", Err: err}
		}
		if n == 0 {
			return &PortError{Port: l.name, Op: "write", Err: io.ErrShortWrite}
		}
	}

	return nil
}

// ReadAvailable returns the bytes that arrive within maxWait. It returns an
// empty slice when nothing arrived. Once a first byte is received the read
// continues until the line is silent for the burst gap or the read buffer is
// full.
//
// The returned slice is owned by the caller.
func (l *Link) ReadAvailable(maxWait time.Duration) ([]byte, error) {
	if l.port == nil {
		return nil, ErrClosed
	}
	if maxWait < 0 {
		maxWait = 0
	}

	n, err := l.read(l.buf, maxWait)
	if err != nil || n == 0 {
		return nil, err
	}

	total := n
	for l.burstGap > 0 && total < len(l.buf) {
		n, err = l.read(l.buf[total:], l.burstGap)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		total += n
	}

	out := make([]byte, total)
	copy(out, l.buf[:total])

	return out, nil
}

func (l *Link) read(p []byte, timeout time.Duration) (int, error) {
	if l.timeout != timeout {
		if err := l.port.SetReadTimeout(timeout); err != nil {
			return 0, &PortError{Port: l.name, Op: "set read timeout", Err: err}
		}
		l.timeout = timeout
	}

	n, err := l.port.Read(p)
	if err != nil {
		return n, &PortError{Port: l.name, Op: "read", Err: err}
	}

	return n, nil
}
