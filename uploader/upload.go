package uploader

import (
	"context"
	"errors"

	"github.com/arloliu/go-nextion/link"
	"github.com/arloliu/go-nextion/logger"
	"github.com/arloliu/go-nextion/whmi"
)

// ErrNotConnected is returned by Upload when no control baud is known.
var ErrNotConnected = errors.New("uploader: display not connected")

// Uploader runs upload attempts. One Uploader may serve many attempts but
// only one at a time per link.
type Uploader struct {
	cfg        *Config
	metrics    *Metrics
	negotiator *Negotiator
	logger     logger.Logger
}

// New creates an Uploader.
func New(opts ...Option) (*Uploader, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	return NewWithConfig(cfg), nil
}

// NewWithConfig creates an Uploader from an existing configuration.
func NewWithConfig(cfg *Config) *Uploader {
	metrics := &Metrics{}

	return &Uploader{
		cfg:        cfg,
		metrics:    metrics,
		negotiator: NewNegotiator(cfg, metrics),
		logger:     cfg.logger,
	}
}

// Config returns the configuration of u.
func (u *Uploader) Config() *Config { return u.cfg }

// Metrics returns the counters of u.
func (u *Uploader) Metrics() *Metrics { return u.metrics }

// NewSession creates a session for fw.
func (u *Uploader) NewSession(fw []byte) (*Session, error) {
	return NewSession(fw, u.cfg)
}

// Connect runs the baud handshake on l. See Negotiator.Connect.
func (u *Uploader) Connect(ctx context.Context, l *link.Link) (int, error) {
	return u.negotiator.Connect(ctx, l)
}

// Send writes a text command and waits for the command delay.
func (u *Uploader) Send(ctx context.Context, l *link.Link, cmd whmi.Command) error {
	return sendText(ctx, l, cmd, u.cfg.commandDelay)
}

// Run connects to the display on l and uploads fw in a single attempt.
func (u *Uploader) Run(ctx context.Context, l *link.Link, fw []byte) error {
	sess, err := u.NewSession(fw)
	if err != nil {
		return err
	}

	baud, err := u.Connect(ctx, l)
	if err != nil {
		return err
	}

	return u.Upload(ctx, l, sess, baud)
}

// Upload transfers the session image over l, which must be open at the
// control baud found by Connect.
//
// A missing acknowledgement returns a *whmi.AckTimeoutError, a missing or
// different completion marker returns whmi.ErrFinalResponseTimeout, and a true
// session Stop hook returns whmi.ErrStopped. On return the link is open at the
// upload baud unless a port error occurred.
func (u *Uploader) Upload(ctx context.Context, l *link.Link, sess *Session, controlBaud int) error {
	err := u.upload(ctx, l, sess, controlBaud)
	switch {
	case err == nil:
		u.metrics.incUploadOKCount()
	case errors.Is(err, whmi.ErrStopped):
	default:
		u.metrics.incUploadErrCount()
	}

	return err
}

func (u *Uploader) upload(ctx context.Context, l *link.Link, sess *Session, controlBaud int) error {
	if controlBaud <= 0 {
		return ErrNotConnected
	}
	if sess == nil || len(sess.Firmware) == 0 {
		return whmi.ErrNoFirmware
	}

	lg := u.logger.With("port", l.Name(), "session", sess.ID)

	if err := l.SetBaud(controlBaud); err != nil {
		return err
	}
	if err := u.Send(ctx, l, whmi.UploadCommand(sess.Total(), sess.UploadBaud)); err != nil {
		return err
	}

	if err := l.SetBaud(sess.UploadBaud); err != nil {
		return err
	}
	if ok, _, err := u.waitAck(ctx, l); err != nil {
		return err
	} else if !ok {
		lg.Warn("whmi-wri not acknowledged", "baud", sess.UploadBaud)
		return &whmi.AckTimeoutError{Context: whmi.WhmiWriContext}
	}
	lg.Info("upload started", "size", sess.Total(), "chunks", sess.Chunks(), "baud", sess.UploadBaud)

	// bytes that followed the last ack in the same read
	var rest []byte

	chunks := sess.Chunks()
	for !sess.Done() {
		if sess.stopped() {
			lg.Info("upload stopped", "offset", sess.Offset)
			return whmi.ErrStopped
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		index := sess.ChunkIndex()
		chunk := sess.NextChunk()
		if err := l.Write(chunk); err != nil {
			return err
		}
		ok, tail, err := u.waitAck(ctx, l)
		if err != nil {
			return err
		}
		if !ok {
			lg.Warn("chunk not acknowledged", "chunk", index, "offset", sess.Offset)
			return whmi.ChunkAckTimeout(index)
		}

		rest = tail
		sess.Offset += len(chunk)
		u.metrics.addChunk(len(chunk))
		lg.Debug("chunk acknowledged", "chunk", index, "offset", sess.Offset)

		if u.cfg.onChunk != nil {
			u.cfg.onChunk(Progress{
				SessionID: sess.ID,
				Index:     index,
				Chunks:    chunks,
				BytesSent: sess.Offset,
				Total:     sess.Total(),
			})
		}
	}

	// the marker may arrive in the same read as the last ack
	ok, err := whmi.WaitFor(ctx, whmi.Prepend(l, rest), whmi.BytePrefix(whmi.CompletionMarker, u.cfg.finalTimeout))
	if err != nil {
		return err
	}
	if !ok {
		lg.Warn("completion marker not received", "timeout", u.cfg.finalTimeout)
		return whmi.ErrFinalResponseTimeout
	}
	lg.Info("upload completed", "size", sess.Total())

	return nil
}

// waitAck waits for 0x05 and returns the bytes received after it.
func (u *Uploader) waitAck(ctx context.Context, l *link.Link) (bool, []byte, error) {
	ok, rest, err := whmi.WaitForRest(ctx, l, whmi.SingleByte(whmi.Ack, u.cfg.ackTimeout))
	if err == nil && !ok {
		u.metrics.incAckTimeoutCount()
	}

	return ok, rest, err
}
