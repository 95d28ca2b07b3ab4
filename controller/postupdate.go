package controller

import (
	"context"
	"fmt"

	"github.com/arloliu/go-nextion/internal/pool"
	"github.com/arloliu/go-nextion/link"
	"github.com/arloliu/go-nextion/whmi"
)

// resetBaud switches a display listening at fromBaud to 115200 and shows the
// home page after a reset. The link is left open at 115200.
func (c *Controller) resetBaud(ctx context.Context, l *link.Link, fromBaud int) error {
	if err := l.SetBaud(fromBaud); err != nil {
		return err
	}
	if err := c.uploader.Send(ctx, l, whmi.BaudCommand(whmi.BaudDefault)); err != nil {
		return err
	}
	if err := pool.Sleep(ctx, c.cfg.settleDelay); err != nil {
		return err
	}

	if err := l.SetBaud(whmi.BaudDefault); err != nil {
		return err
	}
	if err := c.uploader.Send(ctx, l, whmi.Terminated(whmi.CmdPageHome)); err != nil {
		return err
	}

	return c.uploader.Send(ctx, l, whmi.Terminated(whmi.CmdReset))
}

// poll waits for the freshly flashed display to show the ready page.
//
// Every round sends up to probeCount sendme probes. A round with a 0x07 reply
// sends the UPDATED text; a round without one requests page 7 and spends one
// unit of the retry budget. poll returns nil once the budget is spent.
func (c *Controller) poll(ctx context.Context, l *link.Link, uploadBaud int) error {
	budget := c.cfg.retryBudget
	c.budget.Store(int32(budget))
	announced := false

	if err := c.resetBaud(ctx, l, uploadBaud); err != nil {
		return err
	}

	for budget > 0 {
		if c.stopping(ctx) {
			return whmi.ErrStopped
		}
		if err := pool.Sleep(ctx, c.cfg.probeInterval); err != nil {
			return err
		}

		ready, err := c.probe(ctx, l)
		if err != nil {
			return err
		}

		if ready {
			if err := c.announce(ctx, l); err != nil {
				return err
			}
			if !announced {
				announced = true
				c.metrics.incUpdateCount()
				c.publish(Event{Kind: EventUpdateComplete, Message: "update complete"})
			}

			continue
		}

		if err := c.uploader.Send(ctx, l, whmi.Terminated(whmi.CmdPageReady)); err != nil {
			return err
		}
		budget--
		c.budget.Store(int32(budget))
		c.metrics.incPageRequestCount()
		c.publish(Event{Kind: EventPageRequested, Budget: budget,
			Message: fmt.Sprintf("page 7 requested, %d retries left", budget)})
	}

	c.logger.Info("page poll finished", "port", l.Name(), "updated", announced)

	return nil
}

// probe sends sendme until the reply carries the ready page.
func (c *Controller) probe(ctx context.Context, l *link.Link) (bool, error) {
	for i := 0; i < c.cfg.probeCount; i++ {
		if err := c.uploader.Send(ctx, l, whmi.Terminated(whmi.CmdSendMe)); err != nil {
			return false, err
		}

		ok, err := whmi.WaitFor(ctx, l, whmi.SingleByte(whmi.PageAck, c.cfg.probeTimeout))
		if err != nil || ok {
			return ok, err
		}
	}

	return false, nil
}

// announce writes UPDATED on the ready page. A missing 0xFF reply is not an error.
func (c *Controller) announce(ctx context.Context, l *link.Link) error {
	if err := c.uploader.Send(ctx, l, whmi.Terminated(whmi.CmdAnnounceReady)); err != nil {
		return err
	}
	c.metrics.incAnnounceCount()

	ok, err := whmi.WaitFor(ctx, l, whmi.SingleByte(whmi.ReturnByte, c.cfg.announceTimeout))
	if err != nil {
		return err
	}
	if !ok {
		c.logger.Debug("no reply to UPDATED", "port", l.Name())
	}

	return nil
}
