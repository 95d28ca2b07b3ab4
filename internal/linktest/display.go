// Package linktest provides a simulated Nextion display for tests and demos.
//
// A Display implements link.Opener. Every port it opens shares the display
// state, so a test can drive the whole upload protocol through a link.Link and
// later inspect the recorded traffic.
package linktest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-nextion/internal/queue"
	"github.com/arloliu/go-nextion/link"
	"github.com/arloliu/go-nextion/whmi"
)

// ErrUnplugged is returned by ports of an unplugged display.
var ErrUnplugged = errors.New("linktest: device unplugged")

// ErrPortClosed is returned by a closed port.
var ErrPortClosed = errors.New("linktest: port closed")

const (
	// DefaultReplyDelay is the time between a command and its reply.
	DefaultReplyDelay = time.Millisecond
	// DefaultMarkerDelay separates the completion marker from the last chunk ack.
	DefaultMarkerDelay = 30 * time.Millisecond
)

var terminator = []byte{0xFF, 0xFF, 0xFF}

// Faults selects misbehaviour of the simulated display.
type Faults struct {
	// Silent makes the display ignore every command.
	Silent bool
	// SkipWhmiAck suppresses the ack of the whmi-wri command.
	SkipWhmiAck bool
	// DropChunkAck suppresses the ack of the chunk at DropChunkIndex.
	DropChunkAck   bool
	DropChunkIndex int
	// CorruptMarker alters the seventh byte of the completion marker.
	CorruptMarker bool
	// NoMarker suppresses the completion marker.
	NoMarker bool
	// MarkerWithLastAck sends the completion marker in the same burst as the
	// ack of the last chunk.
	MarkerWithLastAck bool
	// PageStuck makes the display ignore page commands.
	PageStuck bool
	// UnplugAfterProbes unplugs the display after this many sendme probes; 0 never.
	UnplugAfterProbes int
}

type burst struct {
	data    []byte
	baud    int
	readyAt time.Time
}

// Display is a simulated Nextion display. It is safe for concurrent use.
type Display struct {
	mu sync.Mutex

	baud     int
	page     int
	bootPage int
	faults   Faults

	replyDelay  time.Duration
	markerDelay time.Duration

	uploading   bool
	controlBaud int
	remaining   int
	sinceAck    int
	chunkIndex  int
	cmdBuf      []byte
	pending     queue.Queue[burst]
	unplugged   bool
	firmware    bytes.Buffer

	opens         []int
	commands      []string
	chunkWrites   int
	probes        int
	announcements int
	garbled       int
}

// Option configures a Display.
type Option func(*Display)

// WithBaud sets the baud the display listens at. The default is 9600.
func WithBaud(baud int) Option {
	return func(d *Display) { d.baud = baud }
}

// WithBootPage sets the page shown after a reset. The default is the ready page 7.
func WithBootPage(page int) Option {
	return func(d *Display) { d.bootPage = page }
}

// WithFaults sets the faults of the display.
func WithFaults(f Faults) Option {
	return func(d *Display) { d.faults = f }
}

// WithReplyDelay sets the delay of every reply.
func WithReplyDelay(delay time.Duration) Option {
	return func(d *Display) { d.replyDelay = delay }
}

// WithMarkerDelay sets the delay between the last chunk ack and the completion marker.
func WithMarkerDelay(delay time.Duration) Option {
	return func(d *Display) { d.markerDelay = delay }
}

// NewDisplay creates a display listening at 9600 baud.
func NewDisplay(opts ...Option) *Display {
	d := &Display{
		baud:        whmi.BaudPowerOn,
		bootPage:    7,
		replyDelay:  DefaultReplyDelay,
		markerDelay: DefaultMarkerDelay,
		pending:     queue.NewSliceQueue[burst](16),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.page = d.bootPage

	return d
}

var _ link.Opener = (*Display)(nil)

// Open implements link.Opener.
func (d *Display) Open(_ string, baud int) (link.Port, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.unplugged {
		return nil, ErrUnplugged
	}
	d.opens = append(d.opens, baud)
	if d.uploading && baud != d.baud {
		// the host gave up on the transfer; the display falls back to command mode
		d.uploading = false
		d.baud = d.controlBaud
	}

	return &port{display: d, baud: baud, timeout: -1}, nil
}

// SetFaults replaces the faults of the display.
func (d *Display) SetFaults(f Faults) {
	d.mu.Lock()
	d.faults = f
	d.mu.Unlock()
}

// Unplug disconnects the display: open ports fail and new opens are refused.
func (d *Display) Unplug() {
	d.mu.Lock()
	d.unplugged = true
	d.mu.Unlock()
}

// Plug reconnects an unplugged display.
func (d *Display) Plug() {
	d.mu.Lock()
	d.unplugged = false
	d.mu.Unlock()
}

// Baud returns the baud the display currently listens at.
func (d *Display) Baud() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.baud
}

// Page returns the current page.
func (d *Display) Page() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.page
}

// Opens returns the baud of every successful open, in order.
func (d *Display) Opens() []int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]int(nil), d.opens...)
}

// Commands returns the text commands the display understood, without terminator.
func (d *Display) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.commands...)
}

// CommandCount returns how many times cmd was received.
func (d *Display) CommandCount(cmd string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for _, c := range d.commands {
		if c == cmd {
			n++
		}
	}

	return n
}

// ChunkWrites returns the number of writes received in upload mode.
func (d *Display) ChunkWrites() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.chunkWrites
}

// Firmware returns the image bytes received so far.
func (d *Display) Firmware() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]byte(nil), d.firmware.Bytes()...)
}

// Probes returns the number of sendme probes received.
func (d *Display) Probes() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.probes
}

// Announcements returns the number of UPDATED texts received.
func (d *Display) Announcements() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.announcements
}

// Garbled returns the number of writes sent at a baud the display was not listening at.
func (d *Display) Garbled() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.garbled
}

// reply must be called with d.mu held.
func (d *Display) reply(data []byte, baud int, delay time.Duration) {
	d.pending.Enqueue(burst{data: data, baud: baud, readyAt: time.Now().Add(delay)})
}

// receive must be called with d.mu held.
func (d *Display) receive(p []byte, baud int) {
	if baud != d.baud {
		d.garbled++
		return
	}

	if d.uploading {
		d.receiveFirmware(p)
		return
	}

	d.cmdBuf = append(d.cmdBuf, p...)
	for {
		idx := bytes.Index(d.cmdBuf, terminator)
		if idx < 0 {
			return
		}
		cmd := d.cmdBuf[:idx]
		for len(cmd) > 0 && cmd[0] == 0xFF {
			cmd = cmd[1:]
		}
		rest := d.cmdBuf[idx+len(terminator):]
		d.cmdBuf = nil
		d.execute(string(cmd))

		// whmi-wri switches to raw mode; the rest of the write is image data
		if d.uploading {
			if len(rest) > 0 {
				d.receiveFirmware(rest)
			}

			return
		}
		d.cmdBuf = append(d.cmdBuf, rest...)
	}
}

func (d *Display) receiveFirmware(p []byte) {
	d.chunkWrites++
	for len(p) > 0 && d.remaining > 0 {
		n := min(len(p), whmi.ChunkSize-d.sinceAck, d.remaining)
		d.firmware.Write(p[:n])
		p = p[n:]
		d.sinceAck += n
		d.remaining -= n

		if d.sinceAck == whmi.ChunkSize || d.remaining == 0 {
			if !d.faults.DropChunkAck || d.chunkIndex != d.faults.DropChunkIndex {
				ack := []byte{whmi.Ack}
				if d.remaining == 0 && d.faults.MarkerWithLastAck {
					ack = append(ack, d.marker()...)
				}
				d.reply(ack, d.baud, d.replyDelay)
			}
			d.chunkIndex++
			d.sinceAck = 0
		}
	}
	if d.remaining > 0 {
		return
	}

	d.uploading = false
	if d.faults.NoMarker || d.faults.MarkerWithLastAck {
		return
	}
	d.reply(d.marker(), d.baud, d.replyDelay+d.markerDelay)
}

func (d *Display) marker() []byte {
	marker := append([]byte(nil), whmi.CompletionMarker...)
	if d.faults.CorruptMarker {
		marker[6] = 0x89
	}

	return marker
}

func (d *Display) execute(cmd string) {
	if d.faults.Silent {
		return
	}
	d.commands = append(d.commands, cmd)

	switch {
	case cmd == whmi.CmdConnect:
		d.reply(append([]byte("comok 1,30601-0,NX4832T035_011R,52,61488,D264B8204F0E1828,16777216"), terminator...),
			d.baud, d.replyDelay)

	case strings.HasPrefix(cmd, "whmi-wri "):
		var size, baud int
		if _, err := fmt.Sscanf(cmd, "whmi-wri %d,%d,", &size, &baud); err != nil || size <= 0 {
			d.reply(invalidReply(), d.baud, d.replyDelay)
			return
		}
		d.controlBaud = d.baud
		d.baud = baud
		d.uploading = true
		d.remaining = size
		d.sinceAck = 0
		d.chunkIndex = 0
		d.firmware.Reset()
		if !d.faults.SkipWhmiAck {
			d.reply([]byte{whmi.Ack}, baud, d.replyDelay)
		}

	case strings.HasPrefix(cmd, "bauds="):
		var baud int
		if _, err := fmt.Sscanf(cmd, "bauds=%d", &baud); err == nil && baud > 0 {
			d.baud = baud
		}

	case cmd == whmi.CmdReset:
		d.page = d.bootPage

	case strings.HasPrefix(cmd, "page "):
		var page int
		if _, err := fmt.Sscanf(cmd, "page %d", &page); err == nil && !d.faults.PageStuck {
			d.page = page
		}

	case cmd == whmi.CmdSendMe:
		d.probes++
		if d.faults.UnplugAfterProbes > 0 && d.probes >= d.faults.UnplugAfterProbes {
			d.unplugged = true
			return
		}
		d.reply([]byte{0x66, byte(d.page), 0xFF, 0xFF, 0xFF}, d.baud, d.replyDelay)

	case cmd == whmi.CmdAnnounceReady:
		d.announcements++
		d.reply([]byte{0x01, 0xFF, 0xFF, 0xFF}, d.baud, d.replyDelay)

	default:
		d.reply(invalidReply(), d.baud, d.replyDelay)
	}
}

func invalidReply() []byte {
	return []byte{0x1A, 0xFF, 0xFF, 0xFF}
}

// next returns the head burst for a port at baud. Ready bursts sent at
// another baud are dropped. It must be called with d.mu held.
func (d *Display) next(baud int, now time.Time) (burst, bool, time.Time) {
	for {
		b, ok := d.pending.Peek()
		if !ok {
			return burst{}, false, time.Time{}
		}
		if b.readyAt.After(now) {
			return burst{}, false, b.readyAt
		}
		if b.baud != baud {
			d.pending.Dequeue()
			continue
		}

		return b, true, time.Time{}
	}
}
