package uploader

import (
	"bytes"
	"testing"
	"time"

	"github.com/arloliu/go-nextion/internal/linktest"
	"github.com/arloliu/go-nextion/link"
	"github.com/arloliu/go-nextion/logger"
)

// newTestUploader creates an Uploader with short timeouts suitable for tests.
func newTestUploader(t *testing.T, opts ...Option) *Uploader {
	t.Helper()

	defaults := []Option{
		WithCommandDelay(0),
		WithHandshakeTimeout(60 * time.Millisecond),
		WithAckTimeout(100 * time.Millisecond),
		WithFinalTimeout(300 * time.Millisecond),
		WithLogger(logger.NewNop()),
	}

	u, err := New(append(defaults, opts...)...)
	if err != nil {
		t.Fatalf("newTestUploader: %v", err)
	}

	return u
}

// newTestLink creates a closed link to the simulated display d.
func newTestLink(t *testing.T, d *linktest.Display) *link.Link {
	t.Helper()

	l, err := link.New(d, "sim0", link.WithLogger(logger.NewNop()))
	if err != nil {
		t.Fatalf("newTestLink: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	return l
}

// makeFirmware returns an image of size bytes with a repeating pattern.
func makeFirmware(size int) []byte {
	pattern := []byte{0x00, 0x05, 0xFF, 0x30, 0x78}
	fw := bytes.Repeat(pattern, size/len(pattern)+1)

	return fw[:size]
}
