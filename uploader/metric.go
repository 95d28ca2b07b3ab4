package uploader

import (
	"sync/atomic"
)

// Metrics contains atomic counters of an uploader.
// They can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// HandshakeAttemptCount indicates the number of bauds probed.
	HandshakeAttemptCount atomic.Uint64
	// HandshakeFailCount indicates the number of Connect calls that found no display.
	HandshakeFailCount atomic.Uint64

	// ChunkSendCount indicates the number of acknowledged chunks.
	ChunkSendCount atomic.Uint64
	// ByteSendCount indicates the number of acknowledged image bytes.
	ByteSendCount atomic.Uint64
	// AckTimeoutCount indicates the number of missing acknowledgements.
	AckTimeoutCount atomic.Uint64

	// UploadOKCount indicates the number of attempts that received the completion marker.
	UploadOKCount atomic.Uint64
	// UploadErrCount indicates the number of attempts that failed.
	UploadErrCount atomic.Uint64
}

func (m *Metrics) incHandshakeAttemptCount() {
	m.HandshakeAttemptCount.Add(1)
}

func (m *Metrics) incHandshakeFailCount() {
	m.HandshakeFailCount.Add(1)
}

func (m *Metrics) addChunk(n int) {
	m.ChunkSendCount.Add(1)
	m.ByteSendCount.Add(uint64(n))
}

func (m *Metrics) incAckTimeoutCount() {
	m.AckTimeoutCount.Add(1)
}

func (m *Metrics) incUploadOKCount() {
	m.UploadOKCount.Add(1)
}

func (m *Metrics) incUploadErrCount() {
	m.UploadErrCount.Add(1)
}
