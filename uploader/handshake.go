package uploader

import (
	"context"
	"slices"
	"time"

	"github.com/arloliu/go-nextion/internal/pool"
	"github.com/arloliu/go-nextion/link"
	"github.com/arloliu/go-nextion/logger"
	"github.com/arloliu/go-nextion/whmi"
)

// handshakeBauds are probed in this order. A display fresh from the factory
// listens at 9600; one that finished an update listens at 115200.
var handshakeBauds = [...]int{whmi.BaudPowerOn, whmi.BaudDefault}

// HandshakeBauds returns a copy of the bauds probed by Connect, in probe order.
func HandshakeBauds() []int {
	return slices.Clone(handshakeBauds[:])
}

// Negotiator finds the baud a display listens at.
type Negotiator struct {
	cfg     *Config
	metrics *Metrics
	logger  logger.Logger
}

// NewNegotiator creates a Negotiator that records into metrics, which may be nil.
func NewNegotiator(cfg *Config, metrics *Metrics) *Negotiator {
	if metrics == nil {
		metrics = &Metrics{}
	}

	return &Negotiator{cfg: cfg, metrics: metrics, logger: cfg.logger}
}

// Connect probes every handshake baud and returns the first one that answers
// "comok". The link is left open at that baud.
//
// It returns whmi.ErrHandshakeTimeout when no baud answers. Port errors are
// returned as is.
func (n *Negotiator) Connect(ctx context.Context, l *link.Link) (int, error) {
	for _, baud := range handshakeBauds {
		n.metrics.incHandshakeAttemptCount()

		if err := l.Reopen(baud); err != nil {
			return 0, err
		}

		for _, frame := range whmi.HandshakeFrames() {
			if err := sendText(ctx, l, frame, n.cfg.commandDelay); err != nil {
				return 0, err
			}
		}

		ok, err := whmi.WaitFor(ctx, l, whmi.Substring(whmi.ConnectResponse, n.cfg.handshakeTimeout))
		if err != nil {
			return 0, err
		}
		if ok {
			n.logger.Info("display connected", "port", l.Name(), "baud", baud)
			return baud, nil
		}
		n.logger.Debug("no handshake reply", "port", l.Name(), "baud", baud)
	}

	n.metrics.incHandshakeFailCount()

	return 0, whmi.ErrHandshakeTimeout
}

// sendText encodes and writes cmd, then pauses for delay.
func sendText(ctx context.Context, l *link.Link, cmd whmi.Command, delay time.Duration) error {
	data, err := whmi.Encode(cmd)
	if err != nil {
		return err
	}
	if err := l.Write(data); err != nil {
		return err
	}

	return pool.Sleep(ctx, delay)
}
