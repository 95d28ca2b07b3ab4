package uploader

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-nextion/logger"
	"github.com/arloliu/go-nextion/whmi"
)

// Default values of an upload attempt.
const (
	DefaultUploadBaud       = whmi.BaudUpload921600
	DefaultFinalTimeout     = whmi.DefaultFinalTimeout
	DefaultAckTimeout       = whmi.DefaultAckTimeout
	DefaultHandshakeTimeout = whmi.DefaultHandshakeTimeout
	DefaultCommandDelay     = 100 * time.Millisecond // pause after every text command
	DefaultChunkSize        = whmi.ChunkSize
)

// Range limits of the options.
const (
	MinTimeout = 10 * time.Millisecond
	MaxTimeout = 5 * time.Minute

	MaxCommandDelay = 5 * time.Second

	MinChunkSize = 1
	MaxChunkSize = whmi.ChunkSize
)

// Progress describes an acknowledged chunk.
type Progress struct {
	SessionID string
	Index     int // zero based chunk index
	Chunks    int
	BytesSent int
	Total     int
}

// Percent returns the share of the image sent so far, in [0, 100].
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}

	return float64(p.BytesSent) * 100 / float64(p.Total)
}

// ChunkFunc is called after every acknowledged chunk, on the upload goroutine.
type ChunkFunc func(Progress)

// Config holds the settings of an upload attempt.
type Config struct {
	uploadBaud       int
	finalTimeout     time.Duration
	ackTimeout       time.Duration
	handshakeTimeout time.Duration
	commandDelay     time.Duration
	chunkSize        int

	onChunk ChunkFunc
	logger  logger.Logger
}

// NewConfig creates an upload configuration. opts are applied in order.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		uploadBaud:       DefaultUploadBaud,
		finalTimeout:     DefaultFinalTimeout,
		ackTimeout:       DefaultAckTimeout,
		handshakeTimeout: DefaultHandshakeTimeout,
		commandDelay:     DefaultCommandDelay,
		chunkSize:        DefaultChunkSize,
		logger:           logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// UploadBaud returns the baud the image is transferred at.
func (cfg *Config) UploadBaud() int { return cfg.uploadBaud }

// FinalTimeout returns the wait for the completion marker.
func (cfg *Config) FinalTimeout() time.Duration { return cfg.finalTimeout }

// AckTimeout returns the wait for each 0x05 acknowledgement.
func (cfg *Config) AckTimeout() time.Duration { return cfg.ackTimeout }

// HandshakeTimeout returns the wait for "comok" at each probed baud.
func (cfg *Config) HandshakeTimeout() time.Duration { return cfg.handshakeTimeout }

// CommandDelay returns the pause after every text command.
func (cfg *Config) CommandDelay() time.Duration { return cfg.commandDelay }

// ChunkSize returns the number of image bytes per chunk.
func (cfg *Config) ChunkSize() int { return cfg.chunkSize }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring an upload.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

func checkTimeout(name string, d time.Duration) error {
	if d < MinTimeout || d > MaxTimeout {
		return fmt.Errorf("uploader: %s timeout %v out of range [%v, %v]", name, d, MinTimeout, MaxTimeout)
	}

	return nil
}

// WithUploadBaud sets the transfer baud. The display accepts
// [whmi.BaudUpload921600], [whmi.BaudUpload1200000] and [whmi.BaudUpload2921600]
// among others.
func WithUploadBaud(baud int) Option {
	return optFunc(func(cfg *Config) error {
		if baud <= 0 {
			return fmt.Errorf("uploader: invalid upload baud %d", baud)
		}
		cfg.uploadBaud = baud

		return nil
	})
}

// WithFinalTimeout sets the wait for the completion marker.
func WithFinalTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkTimeout("final", d); err != nil {
			return err
		}
		cfg.finalTimeout = d

		return nil
	})
}

// WithAckTimeout sets the wait for each 0x05 acknowledgement.
func WithAckTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkTimeout("ack", d); err != nil {
			return err
		}
		cfg.ackTimeout = d

		return nil
	})
}

// WithHandshakeTimeout sets the wait for "comok" at each probed baud.
func WithHandshakeTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkTimeout("handshake", d); err != nil {
			return err
		}
		cfg.handshakeTimeout = d

		return nil
	})
}

// WithCommandDelay sets the pause after every text command. Zero disables it.
func WithCommandDelay(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 || d > MaxCommandDelay {
			return fmt.Errorf("uploader: command delay %v out of range [0, %v]", d, MaxCommandDelay)
		}
		cfg.commandDelay = d

		return nil
	})
}

// WithChunkSize sets the number of image bytes per chunk, at most 4096.
func WithChunkSize(size int) Option {
	return optFunc(func(cfg *Config) error {
		if size < MinChunkSize || size > MaxChunkSize {
			return fmt.Errorf("uploader: chunk size %d out of range [%d, %d]", size, MinChunkSize, MaxChunkSize)
		}
		cfg.chunkSize = size

		return nil
	})
}

// WithChunkCallback sets the function called after every acknowledged chunk.
func WithChunkCallback(fn ChunkFunc) Option {
	return optFunc(func(cfg *Config) error {
		cfg.onChunk = fn
		return nil
	})
}

// WithLogger sets the logger of the uploader.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("uploader: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
