package whmi

import (
	"bytes"
	"context"
	"fmt"
	"time"
)

// pollSlice bounds a single read inside WaitFor so that context cancellation
// is noticed without waiting for the whole deadline.
const pollSlice = 50 * time.Millisecond

// MatchKind selects how an Expectation is matched against read events.
type MatchKind int

const (
	// MatchSingleByte matches when the byte appears anywhere in a read.
	MatchSingleByte MatchKind = iota
	// MatchBytePrefix matches when a read starts with the sequence.
	MatchBytePrefix
	// MatchSubstring matches when the text appears in the received data.
	MatchSubstring
)

func (k MatchKind) String() string {
	switch k {
	case MatchSingleByte:
		return "single-byte"
	case MatchBytePrefix:
		return "byte-prefix"
	case MatchSubstring:
		return "substring"
	default:
		return "unknown"
	}
}

// Expectation describes a response awaited from the display.
type Expectation struct {
	Kind    MatchKind
	Byte    byte
	Seq     []byte
	Text    string
	Timeout time.Duration
}

// SingleByte expects b anywhere in a read within timeout.
func SingleByte(b byte, timeout time.Duration) Expectation {
	return Expectation{Kind: MatchSingleByte, Byte: b, Timeout: timeout}
}

// BytePrefix expects a read whose leading bytes equal seq within timeout.
//
// Every read event is checked on its own: a read that is shorter than seq or
// differs from it is discarded, not merged with the next read.
func BytePrefix(seq []byte, timeout time.Duration) Expectation {
	return Expectation{Kind: MatchBytePrefix, Seq: seq, Timeout: timeout}
}

// Substring expects text in the received data within timeout.
func Substring(text string, timeout time.Duration) Expectation {
	return Expectation{Kind: MatchSubstring, Text: text, Timeout: timeout}
}

func (e Expectation) String() string {
	switch e.Kind {
	case MatchSingleByte:
		return fmt.Sprintf("byte 0x%02X within %v", e.Byte, e.Timeout)
	case MatchBytePrefix:
		return fmt.Sprintf("prefix % X within %v", e.Seq, e.Timeout)
	case MatchSubstring:
		return fmt.Sprintf("text %q within %v", e.Text, e.Timeout)
	default:
		return "unknown expectation"
	}
}

// Reader is the read side of a link.
type Reader interface {
	ReadAvailable(maxWait time.Duration) ([]byte, error)
}

// WaitFor polls r until exp is matched or its timeout elapses.
//
// It returns false with a nil error on timeout. Read errors are returned as
// is, and a done context aborts the wait with ctx.Err().
func WaitFor(ctx context.Context, r Reader, exp Expectation) (bool, error) {
	ok, _, err := WaitForRest(ctx, r, exp)
	return ok, err
}

// WaitForRest is like WaitFor and also returns the bytes of the matching read
// that follow the match. Use [Prepend] to hand them to the next wait.
func WaitForRest(ctx context.Context, r Reader, exp Expectation) (bool, []byte, error) {
	m := newMatcher(exp)
	deadline := time.Now().Add(exp.Timeout)

	for {
		if err := ctx.Err(); err != nil {
			return false, nil, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil, nil
		}

		data, err := r.ReadAvailable(min(remaining, pollSlice))
		if err != nil {
			return false, nil, err
		}
		if len(data) == 0 {
			continue
		}
		if end, ok := m.feed(data); ok {
			var rest []byte
			if end < len(data) {
				rest = data[end:]
			}

			return true, rest, nil
		}
	}
}

// Prepend returns a Reader whose first read event is rest, followed by the
// reads of r. An empty rest returns r itself.
func Prepend(r Reader, rest []byte) Reader {
	if len(rest) == 0 {
		return r
	}

	return &prependReader{r: r, rest: rest}
}

type prependReader struct {
	r    Reader
	rest []byte
}

func (p *prependReader) ReadAvailable(maxWait time.Duration) ([]byte, error) {
	if p.rest != nil {
		rest := p.rest
		p.rest = nil

		return rest, nil
	}

	return p.r.ReadAvailable(maxWait)
}

// matcher keeps the state needed to evaluate one expectation across reads.
type matcher struct {
	exp  Expectation
	text []byte
	tail []byte
}

func newMatcher(exp Expectation) *matcher {
	return &matcher{exp: exp, text: []byte(exp.Text)}
}

// feed reports whether data completes the match and, if so, the offset in
// data just past the matched bytes.
func (m *matcher) feed(data []byte) (int, bool) {
	switch m.exp.Kind {
	case MatchSingleByte:
		i := bytes.IndexByte(data, m.exp.Byte)
		return i + 1, i >= 0

	case MatchBytePrefix:
		if len(data) >= len(m.exp.Seq) && bytes.HasPrefix(data, m.exp.Seq) {
			return len(m.exp.Seq), true
		}

		return 0, false

	case MatchSubstring:
		if len(m.text) == 0 {
			return 0, true
		}
		carried := len(m.tail)
		window := append(m.tail, data...)
		if i := bytes.Index(window, m.text); i >= 0 {
			return max(i+len(m.text)-carried, 0), true
		}
		// keep only what could start a match split across reads
		keep := min(len(m.text)-1, len(window))
		m.tail = append(m.tail[:0], window[len(window)-keep:]...)

		return 0, false

	default:
		return 0, false
	}
}
