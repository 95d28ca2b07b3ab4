package controller

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-nextion/link"
	"github.com/arloliu/go-nextion/logger"
	"github.com/arloliu/go-nextion/uploader"
	"github.com/arloliu/go-nextion/whmi"
)

// Default values of the post-update poll and the recovery loop.
const (
	DefaultSettleDelay     = 200 * time.Millisecond // pause after "bauds=115200"
	DefaultProbeInterval   = 1 * time.Second        // pause before every round of sendme probes
	DefaultProbeTimeout    = whmi.DefaultProbeTimeout
	DefaultProbeCount      = 3 // sendme probes per round
	DefaultAnnounceTimeout = whmi.DefaultAnnounceTimeout
	DefaultRetryBudget     = 3
	DefaultRestartDelay    = 500 * time.Millisecond // pause before a new cycle after a failure
)

// Range limits of the options.
const (
	MaxDelay       = time.Minute
	MinTimeout     = 10 * time.Millisecond
	MaxTimeout     = time.Minute
	MaxProbeCount  = 16
	MaxRetryBudget = 100
)

type config struct {
	settleDelay     time.Duration
	probeInterval   time.Duration
	probeTimeout    time.Duration
	probeCount      int
	announceTimeout time.Duration
	retryBudget     int
	restartDelay    time.Duration

	uploaderOpts []uploader.Option
	linkOpts     []link.Option

	logger logger.Logger
}

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{
		settleDelay:     DefaultSettleDelay,
		probeInterval:   DefaultProbeInterval,
		probeTimeout:    DefaultProbeTimeout,
		probeCount:      DefaultProbeCount,
		announceTimeout: DefaultAnnounceTimeout,
		retryBudget:     DefaultRetryBudget,
		restartDelay:    DefaultRestartDelay,
		logger:          logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Option is a functional option for configuring a Controller.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(cfg *config) error { return f(cfg) }

func checkDelay(name string, d time.Duration) error {
	if d < 0 || d > MaxDelay {
		return fmt.Errorf("controller: %s %v out of range [0, %v]", name, d, MaxDelay)
	}

	return nil
}

func checkTimeout(name string, d time.Duration) error {
	if d < MinTimeout || d > MaxTimeout {
		return fmt.Errorf("controller: %s %v out of range [%v, %v]", name, d, MinTimeout, MaxTimeout)
	}

	return nil
}

// WithSettleDelay sets the pause between "bauds=115200" and the page reset.
func WithSettleDelay(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if err := checkDelay("settle delay", d); err != nil {
			return err
		}
		cfg.settleDelay = d

		return nil
	})
}

// WithProbeInterval sets the pause before every round of sendme probes.
func WithProbeInterval(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if err := checkDelay("probe interval", d); err != nil {
			return err
		}
		cfg.probeInterval = d

		return nil
	})
}

// WithProbeTimeout sets the wait for the 0x07 page reply of each sendme probe.
func WithProbeTimeout(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if err := checkTimeout("probe timeout", d); err != nil {
			return err
		}
		cfg.probeTimeout = d

		return nil
	})
}

// WithProbeCount sets the number of failed sendme probes that trigger a page request.
func WithProbeCount(n int) Option {
	return optFunc(func(cfg *config) error {
		if n < 1 || n > MaxProbeCount {
			return fmt.Errorf("controller: probe count %d out of range [1, %d]", n, MaxProbeCount)
		}
		cfg.probeCount = n

		return nil
	})
}

// WithAnnounceTimeout sets the wait for the 0xFF reply to the UPDATED text.
func WithAnnounceTimeout(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if err := checkTimeout("announce timeout", d); err != nil {
			return err
		}
		cfg.announceTimeout = d

		return nil
	})
}

// WithRetryBudget sets the number of page requests of a polling run.
func WithRetryBudget(n int) Option {
	return optFunc(func(cfg *config) error {
		if n < 1 || n > MaxRetryBudget {
			return fmt.Errorf("controller: retry budget %d out of range [1, %d]", n, MaxRetryBudget)
		}
		cfg.retryBudget = n

		return nil
	})
}

// WithRestartDelay sets the pause before a new cycle after a failure in auto mode.
func WithRestartDelay(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if err := checkDelay("restart delay", d); err != nil {
			return err
		}
		cfg.restartDelay = d

		return nil
	})
}

// WithUploaderOptions appends options of the underlying uploader.
// A chunk callback set here is replaced by the controller's event publisher.
func WithUploaderOptions(opts ...uploader.Option) Option {
	return optFunc(func(cfg *config) error {
		cfg.uploaderOpts = append(cfg.uploaderOpts, opts...)
		return nil
	})
}

// WithLinkOptions appends options of the links opened by the controller.
func WithLinkOptions(opts ...link.Option) Option {
	return optFunc(func(cfg *config) error {
		cfg.linkOpts = append(cfg.linkOpts, opts...)
		return nil
	})
}

// WithLogger sets the logger of the controller. It is also the default logger
// of the uploader and the links.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *config) error {
		if l == nil {
			return errors.New("controller: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
