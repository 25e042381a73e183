package transport

import "sync/atomic"

// Metrics contains atomic counters for a transport.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// BytesSent indicates the number of bytes written to the socket.
	BytesSent atomic.Uint64
	// BytesRecv indicates the number of bytes read from the socket.
	BytesRecv atomic.Uint64
	// ChunkRecvCount indicates the number of successful reads.
	ChunkRecvCount atomic.Uint64
	// ReadTimeoutCount indicates the number of reads ended by deadline or interrupt.
	ReadTimeoutCount atomic.Uint64
	// WriteErrCount indicates the number of failed writes.
	WriteErrCount atomic.Uint64
	// ReadErrCount indicates the number of reads that failed for reasons other than a timeout.
	ReadErrCount atomic.Uint64
}

func (m *Metrics) addBytesSent(n int) {
	m.BytesSent.Add(uint64(n)) //nolint:gosec
}

func (m *Metrics) addBytesRecv(n int) {
	m.BytesRecv.Add(uint64(n)) //nolint:gosec
	m.ChunkRecvCount.Add(1)
}

func (m *Metrics) incReadTimeoutCount() {
	m.ReadTimeoutCount.Add(1)
}

func (m *Metrics) incWriteErrCount() {
	m.WriteErrCount.Add(1)
}

func (m *Metrics) incReadErrCount() {
	m.ReadErrCount.Add(1)
}
