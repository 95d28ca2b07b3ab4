package whmi

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrConfig is the root of errors raised before any protocol activity.
	ErrConfig = errors.New("whmi: invalid configuration")
	// ErrNoFirmware indicates that no firmware image was given.
	ErrNoFirmware = fmt.Errorf("%w: no firmware selected", ErrConfig)
	// ErrNoPort indicates that no port was given.
	ErrNoPort = fmt.Errorf("%w: no port selected", ErrConfig)

	// ErrHandshakeTimeout indicates that no baud rate produced a comok reply.
	ErrHandshakeTimeout = errors.New("whmi: handshake timeout, display not connected")
	// ErrAckTimeout is the root of every *AckTimeoutError.
	ErrAckTimeout = errors.New("whmi: ack timeout")
	// ErrFinalResponseTimeout indicates that the completion marker was not received.
	ErrFinalResponseTimeout = errors.New("whmi: final response timeout")
	// ErrMalformedEscape is the root of every *MalformedEscapeError.
	ErrMalformedEscape = errors.New("whmi: malformed hex escape")
	// ErrNonASCII indicates a command text containing a non-ASCII character.
	ErrNonASCII = errors.New("whmi: command text is not ASCII")
	// ErrStopped indicates that a stop request was observed at a checkpoint.
	ErrStopped = errors.New("whmi: stopped")
)

// WhmiWriContext is the AckTimeoutError context of the whmi-wri command ack.
const WhmiWriContext = "whmi-wri"

// AckTimeoutError reports a missing 0x05 acknowledgement.
type AckTimeoutError struct {
	// Context is "whmi-wri" or the decimal chunk index.
	Context string
}

// ChunkAckTimeout returns the AckTimeoutError of chunk index.
func ChunkAckTimeout(index int) *AckTimeoutError {
	return &AckTimeoutError{Context: strconv.Itoa(index)}
}

func (e *AckTimeoutError) Error() string {
	if e.Context == WhmiWriContext {
		return "whmi: ack timeout after whmi-wri"
	}

	return "whmi: ack timeout for chunk " + e.Context
}

func (e *AckTimeoutError) Unwrap() error { return ErrAckTimeout }

// MalformedEscapeError reports an "0x" token without two hex digits.
type MalformedEscapeError struct {
	Text   string
	Offset int
}

func (e *MalformedEscapeError) Error() string {
	return fmt.Sprintf("whmi: malformed hex escape at offset %d in %q", e.Offset, e.Text)
}

func (e *MalformedEscapeError) Unwrap() error { return ErrMalformedEscape }

// IsRecoverable reports whether err may be cured by restarting the upload cycle.
// Configuration and encoding errors are caller mistakes and never recover.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}

	return !errors.Is(err, ErrConfig) && !errors.Is(err, ErrMalformedEscape) && !errors.Is(err, ErrNonASCII)
}
