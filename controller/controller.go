package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-nextion/internal/pool"
	"github.com/arloliu/go-nextion/link"
	"github.com/arloliu/go-nextion/logger"
	"github.com/arloliu/go-nextion/uploader"
	"github.com/arloliu/go-nextion/whmi"
)

var (
	// ErrBusy is returned when a run is already in progress.
	ErrBusy = errors.New("controller: a run is already in progress")
	// ErrClosed is returned by a closed Controller.
	ErrClosed = errors.New("controller: controller is closed")
)

// Controller owns the upload worker of one display at a time.
//
// Start, Stop, State, Subscribe and Close are safe for concurrent use.
type Controller struct {
	opener   link.Opener
	cfg      *config
	uploader *uploader.Uploader
	logger   logger.Logger

	state   AtomicState
	stop    atomic.Bool
	running atomic.Bool
	closed  atomic.Bool
	budget  atomic.Int32

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	hub     *eventHub
	metrics Metrics

	// worker-owned run fields
	port      string
	sessionID string
}

// New creates an idle Controller that opens ports with opener.
func New(opener link.Opener, opts ...Option) (*Controller, error) {
	if opener == nil {
		return nil, errors.New("controller: opener is nil")
	}

	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		opener: opener,
		cfg:    cfg,
		logger: cfg.logger,
	}

	upOpts := append([]uploader.Option{uploader.WithLogger(cfg.logger)}, cfg.uploaderOpts...)
	upOpts = append(upOpts, uploader.WithChunkCallback(c.onChunk))
	c.uploader, err = uploader.New(upOpts...)
	if err != nil {
		return nil, err
	}

	c.budget.Store(int32(cfg.retryBudget))
	c.hub = newEventHub()

	return c, nil
}

// State returns the current state of the worker.
func (c *Controller) State() State { return c.state.Get() }

// IsRunning reports whether a run is in progress.
func (c *Controller) IsRunning() bool { return c.running.Load() }

// RetryBudget returns the page requests left in the current polling run.
func (c *Controller) RetryBudget() int { return int(c.budget.Load()) }

// Metrics returns the counters of the controller.
func (c *Controller) Metrics() *Metrics { return &c.metrics }

// UploaderMetrics returns the counters of the underlying uploader.
func (c *Controller) UploaderMetrics() *uploader.Metrics { return c.uploader.Metrics() }

// Subscribe returns a channel receiving every event published after the call,
// buffered to size, and a function that cancels the subscription and closes
// the channel. The channel is also closed by Close.
func (c *Controller) Subscribe(size int) (<-chan Event, func()) {
	return c.hub.subscribe(size)
}

// StartManual starts a single upload attempt of fw on port and returns without
// waiting for it. Configuration errors are returned before any port activity.
func (c *Controller) StartManual(ctx context.Context, port string, fw []byte) error {
	return c.start(ctx, port, fw, c.runManual)
}

// StartAuto starts the recovery loop uploading fw to every display that
// appears on port. The run ends only with Stop, Close or ctx.
func (c *Controller) StartAuto(ctx context.Context, port string, fw []byte) error {
	return c.start(ctx, port, fw, c.runAuto)
}

// Stop requests the running worker to stop at its next checkpoint.
// It does not wait; use Wait for that.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running.Load() {
		c.stop.Store(true)
	}
}

// Wait blocks until the current run has ended.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close stops the worker, waits for it and releases the event subscribers.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return nil
	}
	c.closed.Store(true)
	c.stop.Store(true)
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.hub.close()

	return nil
}

// SetDefaultBaud switches a display listening at 9600 baud to 115200 and
// resets it. It blocks until the commands are sent.
func (c *Controller) SetDefaultBaud(ctx context.Context, port string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if port == "" {
		c.publishConfigError(port, whmi.ErrNoPort)
		return whmi.ErrNoPort
	}
	if err := c.acquire(); err != nil {
		return err
	}
	defer c.release()

	l, err := link.New(c.opener, port, c.linkOptions()...)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	c.port = port
	c.sessionID = ""
	if err := c.resetBaud(ctx, l, whmi.BaudPowerOn); err != nil {
		c.publishError(err)
		return err
	}
	c.publish(Event{Kind: EventDefaultBaudSet, Baud: whmi.BaudDefault,
		Message: fmt.Sprintf("display baud set to %d", whmi.BaudDefault)})

	return nil
}

func (c *Controller) linkOptions() []link.Option {
	return append([]link.Option{link.WithLogger(c.logger)}, c.cfg.linkOpts...)
}

func (c *Controller) start(ctx context.Context, port string, fw []byte,
	run func(context.Context, *link.Link, []byte),
) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := validate(port, fw); err != nil {
		c.publishConfigError(port, err)
		return err
	}
	if err := c.acquire(); err != nil {
		return err
	}

	l, err := link.New(c.opener, port, c.linkOptions()...)
	if err != nil {
		c.release()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	if c.closed.Load() {
		cancel()
	}
	c.mu.Unlock()

	c.port = port
	c.sessionID = ""
	c.metrics.incRunCount()

	go func() {
		defer c.release()
		defer cancel()
		defer func() {
			if err := l.Close(); err != nil {
				c.logger.Warn("failed to close link", "port", port, "error", err)
			}
		}()

		run(runCtx, l, fw)
	}()

	return nil
}

// acquire marks the controller as running and clears a stale stop request.
// Close takes c.mu too: a run is either counted in c.wg before Close waits
// or refused with ErrClosed.
func (c *Controller) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return ErrClosed
	}
	if !c.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	c.stop.Store(false)
	c.wg.Add(1)

	return nil
}

// release ends a run started by acquire.
func (c *Controller) release() {
	c.running.Store(false)
	c.wg.Done()
}

func validate(port string, fw []byte) error {
	if len(fw) == 0 {
		return whmi.ErrNoFirmware
	}
	if port == "" {
		return whmi.ErrNoPort
	}

	return nil
}

// stopping reports whether the run must end at this checkpoint.
func (c *Controller) stopping(ctx context.Context) bool {
	return c.stop.Load() || ctx.Err() != nil
}

func (c *Controller) runManual(ctx context.Context, l *link.Link, fw []byte) {
	c.toState(IdleState)
	if c.stopping(ctx) {
		c.toStopped()
		return
	}

	c.toState(HandshakingState)
	baud, err := c.uploader.Connect(ctx, l)
	if err == nil {
		c.connected(baud)
		_, err = c.upload(ctx, l, fw, baud)
	}

	switch {
	case err == nil:
	case errors.Is(err, whmi.ErrStopped) || c.stopping(ctx):
		c.toStopped()
		return
	default:
		c.publishError(err)
	}

	c.toState(IdleState)
}

func (c *Controller) runAuto(ctx context.Context, l *link.Link, fw []byte) {
	idle := true
	for {
		if idle {
			c.toState(IdleState)
			c.metrics.incCycleCount()
		}
		if c.stopping(ctx) {
			c.toStopped()
			return
		}

		err := c.cycle(ctx, l, fw)
		switch {
		case err == nil:
			idle = true
			continue
		case errors.Is(err, whmi.ErrStopped) || c.stopping(ctx):
			c.toStopped()
			return
		case !whmi.IsRecoverable(err):
			c.publishError(err)
			c.toState(IdleState)

			return
		}

		c.publishError(err)
		c.metrics.incRecoveryCount()
		c.logger.Warn("cycle failed, restarting", "port", l.Name(), "error", err)
		idle = false

		if err := l.Close(); err != nil {
			c.logger.Debug("failed to close link", "port", l.Name(), "error", err)
		}
		if err := pool.Sleep(ctx, c.cfg.restartDelay); err != nil {
			c.toStopped()
			return
		}
	}
}

// cycle runs one auto mode cycle from the handshake to the end of the poll.
func (c *Controller) cycle(ctx context.Context, l *link.Link, fw []byte) error {
	baud, err := c.handshake(ctx, l)
	if err != nil {
		return err
	}
	c.connected(baud)

	uploadBaud, err := c.upload(ctx, l, fw, baud)
	if err != nil {
		return err
	}

	c.toState(PostUpdatePollingState)

	return c.poll(ctx, l, uploadBaud)
}

// handshake repeats the baud handshake until a display answers.
func (c *Controller) handshake(ctx context.Context, l *link.Link) (int, error) {
	c.toState(HandshakingState)

	for attempt := 1; ; attempt++ {
		if c.stopping(ctx) {
			return 0, whmi.ErrStopped
		}

		baud, err := c.uploader.Connect(ctx, l)
		if err == nil {
			return baud, nil
		}
		if !errors.Is(err, whmi.ErrHandshakeTimeout) {
			return 0, err
		}
		c.logger.Debug("waiting for display", "port", l.Name(), "attempt", attempt)
	}
}

func (c *Controller) connected(baud int) {
	c.publish(Event{Kind: EventConnected, Baud: baud, Message: fmt.Sprintf("display connected at %d baud", baud)})
}

// upload runs one upload at the control baud and returns the upload baud.
func (c *Controller) upload(ctx context.Context, l *link.Link, fw []byte, controlBaud int) (int, error) {
	sess, err := c.uploader.NewSession(fw)
	if err != nil {
		return 0, err
	}
	sess.Stop = c.stop.Load
	c.sessionID = sess.ID

	if c.stopping(ctx) {
		return 0, whmi.ErrStopped
	}

	c.toState(UploadingState)
	c.publish(Event{
		Kind:   EventUploadStarted,
		Baud:   sess.UploadBaud,
		Chunks: sess.Chunks(),
		Total:  sess.Total(),
		Message: fmt.Sprintf("uploading %d bytes in %d chunks at %d baud",
			sess.Total(), sess.Chunks(), sess.UploadBaud),
	})

	if err := c.uploader.Upload(ctx, l, sess, controlBaud); err != nil {
		return 0, err
	}
	c.publish(Event{Kind: EventUploadCompleted, Total: sess.Total(), BytesSent: sess.Offset,
		Message: "firmware upload completed"})

	return sess.UploadBaud, nil
}

// onChunk runs on the worker goroutine through the uploader callback.
func (c *Controller) onChunk(p uploader.Progress) {
	ev := Event{
		Kind:      EventChunkSent,
		Chunk:     p.Index,
		Chunks:    p.Chunks,
		BytesSent: p.BytesSent,
		Total:     p.Total,
	}
	ev.Message = fmt.Sprintf("chunk %d/%d sent (%.1f%%)", p.Index+1, p.Chunks, p.Percent())
	c.publish(ev)
}

func (c *Controller) toState(s State) {
	prev := c.state.Set(s)
	if prev == s {
		return
	}

	c.logger.Info("controller state changed", "port", c.port, "from", prev, "to", s)
	c.publish(Event{Kind: EventStateChanged, Message: s.String()})
}

func (c *Controller) toStopped() {
	c.toState(StoppedState)
	c.publish(Event{Kind: EventStopped, Message: "stopped"})
}

func (c *Controller) publishError(err error) {
	c.logger.Warn("upload failed", "port", c.port, "session", c.sessionID, "error", err)
	c.publish(Event{Kind: EventError, Err: err, Message: err.Error()})
}

// publishConfigError reports a start error. It runs on the caller goroutine
// and must not touch the worker-owned fields.
func (c *Controller) publishConfigError(port string, err error) {
	c.hub.publish(Event{
		Kind:    EventError,
		Time:    time.Now(),
		State:   c.state.Get(),
		Port:    port,
		Err:     err,
		Message: err.Error(),
	})
}

// publish stamps ev with the worker context and queues it.
func (c *Controller) publish(ev Event) {
	ev.Time = time.Now()
	ev.State = c.state.Get()
	if ev.Port == "" {
		ev.Port = c.port
	}
	if ev.SessionID == "" {
		ev.SessionID = c.sessionID
	}

	c.hub.publish(ev)
}
