package uploader

import (
	"context"
	"errors"
	"testing"

	"github.com/arloliu/go-nextion/internal/linktest"
	"github.com/arloliu/go-nextion/whmi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Success(t *testing.T) {
	fw := makeFirmware(10000)

	var progress []Progress
	d := linktest.NewDisplay()
	l := newTestLink(t, d)
	u := newTestUploader(t, WithChunkCallback(func(p Progress) { progress = append(progress, p) }))

	require.NoError(t, u.Run(context.Background(), l, fw))

	assert.Equal(t, 3, d.ChunkWrites())
	assert.Equal(t, fw, d.Firmware())
	assert.Contains(t, d.Commands(), "whmi-wri 10000,921600,res0yyy")
	assert.Equal(t, []int{whmi.BaudPowerOn, whmi.BaudUpload921600}, d.Opens())
	assert.Equal(t, whmi.BaudUpload921600, l.Baud())

	require.Len(t, progress, 3)
	assert.Equal(t, []int{4096, 8192, 10000}, []int{progress[0].BytesSent, progress[1].BytesSent, progress[2].BytesSent})
	assert.Equal(t, 2, progress[2].Index)
	assert.Equal(t, 3, progress[2].Chunks)
	assert.InDelta(t, 100.0, progress[2].Percent(), 0.001)

	m := u.Metrics()
	assert.Equal(t, uint64(3), m.ChunkSendCount.Load())
	assert.Equal(t, uint64(10000), m.ByteSendCount.Load())
	assert.Equal(t, uint64(1), m.UploadOKCount.Load())
	assert.Equal(t, uint64(0), m.UploadErrCount.Load())
}

func TestRun_ChunkMath(t *testing.T) {
	for _, size := range []int{1, 4096, 4097, 8192} {
		d := linktest.NewDisplay()
		l := newTestLink(t, d)
		u := newTestUploader(t)

		require.NoError(t, u.Run(context.Background(), l, makeFirmware(size)))
		assert.Equal(t, ChunkCount(size, whmi.ChunkSize), d.ChunkWrites(), "size %d", size)
	}
}

func TestRun_UploadBaud(t *testing.T) {
	d := linktest.NewDisplay(linktest.WithBaud(whmi.BaudDefault))
	l := newTestLink(t, d)
	u := newTestUploader(t, WithUploadBaud(whmi.BaudUpload1200000))

	require.NoError(t, u.Run(context.Background(), l, makeFirmware(100)))
	assert.Contains(t, d.Commands(), "whmi-wri 100,1200000,res0yyy")
	assert.Equal(t, []int{whmi.BaudPowerOn, whmi.BaudDefault, whmi.BaudUpload1200000}, d.Opens())
}

func TestRun_NoFirmware(t *testing.T) {
	d := linktest.NewDisplay()
	l := newTestLink(t, d)
	u := newTestUploader(t)

	err := u.Run(context.Background(), l, nil)
	require.ErrorIs(t, err, whmi.ErrNoFirmware)
	assert.Empty(t, d.Opens())
}

func TestUpload_NotConnected(t *testing.T) {
	d := linktest.NewDisplay()
	l := newTestLink(t, d)
	u := newTestUploader(t)

	sess, err := u.NewSession(makeFirmware(10))
	require.NoError(t, err)

	err = u.Upload(context.Background(), l, sess, 0)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestUpload_WhmiAckTimeout(t *testing.T) {
	d := linktest.NewDisplay(linktest.WithFaults(linktest.Faults{SkipWhmiAck: true}))
	l := newTestLink(t, d)
	u := newTestUploader(t)

	err := u.Run(context.Background(), l, makeFirmware(5000))
	require.ErrorIs(t, err, whmi.ErrAckTimeout)

	var ackErr *whmi.AckTimeoutError
	require.ErrorAs(t, err, &ackErr)
	assert.Equal(t, whmi.WhmiWriContext, ackErr.Context)
	assert.Equal(t, 0, d.ChunkWrites())
	assert.Equal(t, uint64(1), u.Metrics().AckTimeoutCount.Load())
	assert.Equal(t, uint64(1), u.Metrics().UploadErrCount.Load())
}

func TestUpload_ChunkAckTimeout(t *testing.T) {
	d := linktest.NewDisplay(linktest.WithFaults(linktest.Faults{DropChunkAck: true, DropChunkIndex: 1}))
	l := newTestLink(t, d)
	u := newTestUploader(t)

	fw := makeFirmware(3 * whmi.ChunkSize)
	sess, err := u.NewSession(fw)
	require.NoError(t, err)

	baud, err := u.Connect(context.Background(), l)
	require.NoError(t, err)

	err = u.Upload(context.Background(), l, sess, baud)
	var ackErr *whmi.AckTimeoutError
	require.ErrorAs(t, err, &ackErr)
	assert.Equal(t, "1", ackErr.Context)

	// the unacknowledged chunk is not retransmitted and later chunks are not sent
	assert.Equal(t, 2, d.ChunkWrites())
	assert.Equal(t, whmi.ChunkSize, sess.Offset)
}

func TestUpload_FinalResponse(t *testing.T) {
	tests := []struct {
		name   string
		faults linktest.Faults
	}{
		{"differs at seventh byte", linktest.Faults{CorruptMarker: true}},
		{"missing", linktest.Faults{NoMarker: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := linktest.NewDisplay(linktest.WithFaults(tt.faults))
			l := newTestLink(t, d)
			u := newTestUploader(t)

			err := u.Run(context.Background(), l, makeFirmware(100))
			require.ErrorIs(t, err, whmi.ErrFinalResponseTimeout)
			assert.Equal(t, 1, d.ChunkWrites())
		})
	}
}

func TestUpload_MarkerWithLastAck(t *testing.T) {
	d := linktest.NewDisplay(linktest.WithFaults(linktest.Faults{MarkerWithLastAck: true}))
	l := newTestLink(t, d)
	u := newTestUploader(t)

	require.NoError(t, u.Run(context.Background(), l, makeFirmware(5000)))
	assert.Equal(t, 2, d.ChunkWrites())
	assert.Equal(t, uint64(1), u.Metrics().UploadOKCount.Load())
}

func TestUpload_CorruptMarkerWithLastAck(t *testing.T) {
	d := linktest.NewDisplay(linktest.WithFaults(linktest.Faults{MarkerWithLastAck: true, CorruptMarker: true}))
	l := newTestLink(t, d)
	u := newTestUploader(t)

	err := u.Run(context.Background(), l, makeFirmware(5000))
	assert.ErrorIs(t, err, whmi.ErrFinalResponseTimeout)
}

func TestUpload_StopBeforeFirstChunk(t *testing.T) {
	d := linktest.NewDisplay()
	l := newTestLink(t, d)
	u := newTestUploader(t)

	sess, err := u.NewSession(makeFirmware(9000))
	require.NoError(t, err)
	sess.Stop = func() bool { return true }

	baud, err := u.Connect(context.Background(), l)
	require.NoError(t, err)

	err = u.Upload(context.Background(), l, sess, baud)
	require.ErrorIs(t, err, whmi.ErrStopped)
	assert.Equal(t, 0, d.ChunkWrites())
	assert.Equal(t, uint64(0), u.Metrics().UploadErrCount.Load())
}

func TestUpload_StopAfterChunk(t *testing.T) {
	d := linktest.NewDisplay()
	l := newTestLink(t, d)

	u := newTestUploader(t)

	sess, err := u.NewSession(makeFirmware(3 * whmi.ChunkSize))
	require.NoError(t, err)
	sess.Stop = func() bool { return sess.Offset >= whmi.ChunkSize }

	baud, err := u.Connect(context.Background(), l)
	require.NoError(t, err)

	err = u.Upload(context.Background(), l, sess, baud)
	require.ErrorIs(t, err, whmi.ErrStopped)
	assert.Equal(t, 1, d.ChunkWrites())
}

func TestUpload_PortError(t *testing.T) {
	d := linktest.NewDisplay()
	l := newTestLink(t, d)
	u := newTestUploader(t, WithChunkCallback(func(p Progress) {
		if p.Index == 0 {
			d.Unplug()
		}
	}))

	err := u.Run(context.Background(), l, makeFirmware(2*whmi.ChunkSize))
	require.Error(t, err)
	assert.True(t, errors.Is(err, linktest.ErrUnplugged))
	assert.True(t, whmi.IsRecoverable(err))
}
