package channel

import "sync/atomic"

// Metrics contains atomic counters of a stream channel.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// RecordSendCount indicates the number of records written to the connection.
	RecordSendCount atomic.Uint64
	// RecordRecvCount indicates the number of records received from the connection.
	RecordRecvCount atomic.Uint64
	// SendErrCount indicates the number of failed frame writes.
	SendErrCount atomic.Uint64
	// WouldBlockCount indicates the number of sends rejected because the sender queue was full.
	WouldBlockCount atomic.Uint64
	// DecodeErrCount indicates the number of frames skipped because the record could not be decoded.
	DecodeErrCount atomic.Uint64
}

func (m *Metrics) incRecordSendCount() {
	m.RecordSendCount.Add(1)
}

func (m *Metrics) incRecordRecvCount() {
	m.RecordRecvCount.Add(1)
}

func (m *Metrics) incSendErrCount() {
	m.SendErrCount.Add(1)
}

func (m *Metrics) incWouldBlockCount() {
	m.WouldBlockCount.Add(1)
}

func (m *Metrics) incDecodeErrCount() {
	m.DecodeErrCount.Add(1)
}
