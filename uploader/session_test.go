package uploader

import (
	"testing"

	"github.com/arloliu/go-nextion/whmi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkCount(t *testing.T) {
	tests := []struct {
		total int
		want  int
		last  int
	}{
		{1, 1, 1},
		{4095, 1, 4095},
		{4096, 1, 4096},
		{4097, 2, 1},
		{8192, 2, 4096},
		{10000, 3, 1808},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ChunkCount(tt.total, whmi.ChunkSize), "total %d", tt.total)

		cfg, err := NewConfig()
		require.NoError(t, err)
		sess, err := NewSession(makeFirmware(tt.total), cfg)
		require.NoError(t, err)

		var sizes []int
		for !sess.Done() {
			chunk := sess.NextChunk()
			sizes = append(sizes, len(chunk))
			sess.Offset += len(chunk)
		}
		require.Len(t, sizes, tt.want)
		assert.Equal(t, tt.last, sizes[len(sizes)-1], "total %d", tt.total)
	}

	assert.Equal(t, 0, ChunkCount(0, whmi.ChunkSize))
	assert.Equal(t, 0, ChunkCount(10, 0))
}

func TestNewSession(t *testing.T) {
	cfg, err := NewConfig(WithUploadBaud(whmi.BaudUpload1200000))
	require.NoError(t, err)

	sess, err := NewSession(makeFirmware(5000), cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, 5000, sess.Total())
	assert.Equal(t, 2, sess.Chunks())
	assert.Equal(t, whmi.BaudUpload1200000, sess.UploadBaud)
	assert.Equal(t, 0, sess.ChunkIndex())
	assert.False(t, sess.stopped())

	other, err := NewSession(makeFirmware(5000), cfg)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, other.ID)

	_, err = NewSession(nil, cfg)
	assert.ErrorIs(t, err, whmi.ErrNoFirmware)
	assert.ErrorIs(t, err, whmi.ErrConfig)
}
