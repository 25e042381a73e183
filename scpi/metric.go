package scpi

import (
	"sync/atomic"
)

// SessionMetrics contains atomic metrics for a session.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type SessionMetrics struct {
	// CommandCount indicates the number of commands written.
	CommandCount atomic.Uint64
	// QueryCount indicates the number of queries written.
	QueryCount atomic.Uint64
	// ReplyCount indicates the number of reply frames received.
	ReplyCount atomic.Uint64
	// TimeoutCount indicates the number of queries that timed out.
	TimeoutCount atomic.Uint64
	// ConcurrentRejectCount indicates the number of transactions rejected with ErrConcurrentAccess.
	ConcurrentRejectCount atomic.Uint64
	// StaleDiscardCount indicates the number of times late reply data was discarded.
	StaleDiscardCount atomic.Uint64
	// InstrumentErrCount indicates the number of error queue entries reported by the instrument.
	InstrumentErrCount atomic.Uint64
	// FaultCount indicates the number of times the session became faulted.
	FaultCount atomic.Uint64
}

func (m *SessionMetrics) incCommandCount() {
	m.CommandCount.Add(1)
}

func (m *SessionMetrics) incQueryCount() {
	m.QueryCount.Add(1)
}

func (m *SessionMetrics) incReplyCount() {
	m.ReplyCount.Add(1)
}

func (m *SessionMetrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *SessionMetrics) incConcurrentRejectCount() {
	m.ConcurrentRejectCount.Add(1)
}

func (m *SessionMetrics) incStaleDiscardCount() {
	m.StaleDiscardCount.Add(1)
}

func (m *SessionMetrics) addInstrumentErrCount(n int) {
	m.InstrumentErrCount.Add(uint64(n)) //nolint:gosec
}

func (m *SessionMetrics) incFaultCount() {
	m.FaultCount.Add(1)
}
