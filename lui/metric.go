package lui

import "sync/atomic"

// SessionMetrics contains atomic metrics of a control session.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type SessionMetrics struct {
	// CommandSubmitCount indicates the number of commands sent.
	CommandSubmitCount atomic.Uint64
	// CommandAbandonCount indicates the number of commands whose send failed.
	CommandAbandonCount atomic.Uint64
	// CommandAckCount indicates the number of command acks received.
	CommandAckCount atomic.Uint64
	// CommandConfirmCount indicates the number of commands confirmed by a fresh status snapshot.
	CommandConfirmCount atomic.Uint64
	// CommandOutstandingGauge indicates the number of commands sent but not yet confirmed.
	CommandOutstandingGauge atomic.Int64

	// StatusUpdateCount indicates the number of status snapshots accepted.
	StatusUpdateCount atomic.Uint64
	// StatusUnchangedCount indicates the number of status snapshots discarded because the heartbeat did not advance.
	StatusUnchangedCount atomic.Uint64
	// StatusUnavailableCount indicates the number of refreshes without a ready status record.
	StatusUnavailableCount atomic.Uint64

	// ErrorRecvCount indicates the number of error records received.
	ErrorRecvCount atomic.Uint64
	// ErrorDropCount indicates the number of error records evicted from the full buffer.
	ErrorDropCount atomic.Uint64

	// MalformedRecordCount indicates the number of records skipped because they could not be decoded.
	MalformedRecordCount atomic.Uint64
	// TransportErrCount indicates the number of transport errors reported by channels.
	TransportErrCount atomic.Uint64
}

func (m *SessionMetrics) incCommandSubmitCount() {
	m.CommandSubmitCount.Add(1)
}

func (m *SessionMetrics) incCommandAbandonCount() {
	m.CommandAbandonCount.Add(1)
}

func (m *SessionMetrics) incCommandAckCount() {
	m.CommandAckCount.Add(1)
}

func (m *SessionMetrics) addCommandConfirmCount(n int) {
	m.CommandConfirmCount.Add(uint64(n)) //nolint:gosec
}

func (m *SessionMetrics) setCommandOutstandingGauge(n int) {
	m.CommandOutstandingGauge.Store(int64(n))
}

func (m *SessionMetrics) incStatusUpdateCount() {
	m.StatusUpdateCount.Add(1)
}

func (m *SessionMetrics) incStatusUnchangedCount() {
	m.StatusUnchangedCount.Add(1)
}

func (m *SessionMetrics) incStatusUnavailableCount() {
	m.StatusUnavailableCount.Add(1)
}

func (m *SessionMetrics) incErrorRecvCount() {
	m.ErrorRecvCount.Add(1)
}

func (m *SessionMetrics) incErrorDropCount() {
	m.ErrorDropCount.Add(1)
}

func (m *SessionMetrics) incMalformedRecordCount() {
	m.MalformedRecordCount.Add(1)
}

func (m *SessionMetrics) incTransportErrCount() {
	m.TransportErrCount.Add(1)
}
