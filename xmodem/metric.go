package xmodem

import "sync/atomic"

// Metrics holds atomic counters for an Engine. The fields can back the
// value functions of an external metrics exporter.
type Metrics struct {
	// BlockSendCount is the number of blocks acknowledged by the peer.
	BlockSendCount atomic.Uint64
	// BlockRecvCount is the number of blocks accepted from the peer.
	BlockRecvCount atomic.Uint64
	// BlockRetryCount counts resends on the sending side and NAKs on the
	// receiving side.
	BlockRetryCount atomic.Uint64
	// DuplicateBlockCount is the number of repeated blocks acknowledged again.
	DuplicateBlockCount atomic.Uint64

	TransferCount atomic.Uint64
	AbortCount    atomic.Uint64

	BytesSent     atomic.Uint64
	BytesReceived atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	BlockSendCount      uint64
	BlockRecvCount      uint64
	BlockRetryCount     uint64
	DuplicateBlockCount uint64
	TransferCount       uint64
	AbortCount          uint64
	BytesSent           uint64
	BytesReceived       uint64
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		BlockSendCount:      m.BlockSendCount.Load(),
		BlockRecvCount:      m.BlockRecvCount.Load(),
		BlockRetryCount:     m.BlockRetryCount.Load(),
		DuplicateBlockCount: m.DuplicateBlockCount.Load(),
		TransferCount:       m.TransferCount.Load(),
		AbortCount:          m.AbortCount.Load(),
		BytesSent:           m.BytesSent.Load(),
		BytesReceived:       m.BytesReceived.Load(),
	}
}

func (m *Metrics) incBlockSend(n int) {
	m.BlockSendCount.Add(1)
	m.BytesSent.Add(uint64(n)) //nolint:gosec // n is a payload length
}

func (m *Metrics) incBlockRecv(n int) {
	m.BlockRecvCount.Add(1)
	m.BytesReceived.Add(uint64(n)) //nolint:gosec // n is a payload length
}

func (m *Metrics) incBlockRetry() {
	m.BlockRetryCount.Add(1)
}

func (m *Metrics) incDuplicate() {
	m.DuplicateBlockCount.Add(1)
}

func (m *Metrics) incTransfer() {
	m.TransferCount.Add(1)
}

func (m *Metrics) incAbort() {
	m.AbortCount.Add(1)
}
