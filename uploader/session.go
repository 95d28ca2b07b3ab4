package uploader

import (
	"github.com/google/uuid"

	"github.com/arloliu/go-nextion/whmi"
)

// Session is the state of one upload attempt. It is created per attempt and
// discarded when the attempt ends.
type Session struct {
	ID         string
	Firmware   []byte
	ChunkSize  int
	UploadBaud int

	// Offset is the number of acknowledged bytes.
	Offset int

	// Stop is polled before every chunk write. Returning true aborts the
	// attempt with whmi.ErrStopped.
	Stop func() bool
}

// NewSession creates a session for fw using the chunk size and upload baud of cfg.
func NewSession(fw []byte, cfg *Config) (*Session, error) {
	if len(fw) == 0 {
		return nil, whmi.ErrNoFirmware
	}

	return &Session{
		ID:         uuid.NewString(),
		Firmware:   fw,
		ChunkSize:  cfg.chunkSize,
		UploadBaud: cfg.uploadBaud,
	}, nil
}

// Total returns the image length.
func (s *Session) Total() int { return len(s.Firmware) }

// Chunks returns the number of chunks of the image.
func (s *Session) Chunks() int { return ChunkCount(len(s.Firmware), s.ChunkSize) }

// Done reports whether every byte has been acknowledged.
func (s *Session) Done() bool { return s.Offset >= len(s.Firmware) }

// NextChunk returns the bytes of the chunk starting at Offset.
func (s *Session) NextChunk() []byte {
	end := min(s.Offset+s.ChunkSize, len(s.Firmware))
	return s.Firmware[s.Offset:end]
}

// ChunkIndex returns the zero based index of the chunk starting at Offset.
func (s *Session) ChunkIndex() int { return s.Offset / s.ChunkSize }

func (s *Session) stopped() bool {
	return s.Stop != nil && s.Stop()
}

// ChunkCount returns the number of chunks of size bytes needed for total bytes.
func ChunkCount(total, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}

	return (total + size - 1) / size
}
