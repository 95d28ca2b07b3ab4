package link

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-nextion/logger"
)

// Option is a functional option for configuring a Link.
type Option interface {
	apply(*Link) error
}

type optFunc func(*Link) error

func (f optFunc) apply(l *Link) error { return f(l) }

// WithBurstGap sets the silence that ends a coalesced read. Zero disables
// coalescing, so every port read is reported as its own read event.
func WithBurstGap(d time.Duration) Option {
	return optFunc(func(l *Link) error {
		if d < 0 || d > MaxBurstGap {
			return fmt.Errorf("link: burst gap %v out of range [0, %v]", d, MaxBurstGap)
		}
		l.burstGap = d

		return nil
	})
}

// WithReadBufferSize sets the maximum number of bytes returned by one read.
func WithReadBufferSize(size int) Option {
	return optFunc(func(l *Link) error {
		if size <= 0 {
			return errors.New("link: read buffer size must be positive")
		}
		l.buf = make([]byte, size)

		return nil
	})
}

// WithLogger sets the logger of the link.
func WithLogger(lg logger.Logger) Option {
	return optFunc(func(l *Link) error {
		if lg == nil {
			return errors.New("link: logger must not be nil")
		}
		l.logger = lg

		return nil
	})
}
