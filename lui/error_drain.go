package lui

import (
	"iter"
	"time"

	"github.com/arloliu/go-lui/channel"
	"github.com/arloliu/go-lui/internal/queue"
	"github.com/arloliu/go-lui/internal/util"
	"github.com/arloliu/go-lui/logger"
	"github.com/arloliu/go-lui/record"
)

// ErrorDrain moves error records from the error channel into a bounded FIFO buffer
// that the caller consumes at its own pace.
//
// When the buffer is full the oldest record is evicted and counted. The next Pull reports
// the loss with an overflow marker after the buffered records.
//
// ErrorDrain is not safe for concurrent use.
type ErrorDrain struct {
	ch      channel.Channel
	logger  logger.Logger
	metrics *SessionMetrics
	now     func() time.Time

	buf          *queue.RingQueue[ErrorRecord]
	dropped      uint64 // dropped since the last overflow marker
	totalDropped uint64
}

// NewErrorDrain creates an error drain reading from ch.
// A nil cfg uses the default configuration, a nil metrics allocates private metrics.
func NewErrorDrain(ch channel.Channel, cfg *SessionConfig, metrics *SessionMetrics) *ErrorDrain {
	if cfg == nil {
		cfg = defaultSessionConfig()
	}

	if metrics == nil {
		metrics = &SessionMetrics{}
	}

	capacity := util.ClampInt(cfg.errorBufferCapacity, MinErrorBufferCapacity, MaxErrorBufferCapacity)

	return &ErrorDrain{
		ch:      ch,
		logger:  cfg.logger,
		metrics: metrics,
		now:     cfg.now,
		buf:     queue.NewRingQueue[ErrorRecord](capacity),
	}
}

// Fill drains all pending records of the error channel into the buffer without blocking.
// It returns the number of records buffered by this call.
//
// Records that can't be decoded are skipped. On a channel failure the records buffered so
// far are kept and the mapped transport error is returned.
func (d *ErrorDrain) Fill() (int, error) {
	n := 0
	for {
		rec, ok, err := d.ch.TryReceiveNext()
		if err != nil {
			d.metrics.incTransportErrCount()
			return n, channelError(err)
		}

		if !ok {
			return n, nil
		}

		p, err := record.DecodeError(rec)
		if err != nil {
			d.metrics.incMalformedRecordCount()
			d.logger.Warn("skip malformed error record", record.Info(rec, "method", "Fill", "error", err)...)

			continue
		}

		d.metrics.incErrorRecvCount()
		d.push(ErrorRecord{
			Kind:          ErrorDiagnostic,
			Severity:      p.Severity,
			Timestamp:     rec.Timestamp,
			Message:       p.Message,
			CommandSeq:    p.CommandSeq,
			HasCommandSeq: p.HasCommandSeq,
		})
		n++
	}
}

func (d *ErrorDrain) push(rec ErrorRecord) {
	if old, evicted := d.buf.Push(rec); evicted {
		d.dropped++
		d.totalDropped++
		d.metrics.incErrorDropCount()
		d.logger.Warn("error buffer full, drop oldest record", "method", "push",
			"severity", old.Severity.String(), "dropped", d.dropped)
	}
}

// Pull returns a finite sequence yielding the buffered records in arrival order, followed by
// one overflow marker if records were dropped since the last marker was yielded.
//
// Records are removed from the buffer as they are yielded. If the caller stops early, the
// remaining records and the pending marker are yielded by a later Pull. A record is never
// yielded twice.
func (d *ErrorDrain) Pull() iter.Seq[ErrorRecord] {
	return func(yield func(ErrorRecord) bool) {
		for {
			rec, ok := d.buf.Dequeue()
			if !ok {
				break
			}

			if !yield(rec) {
				return
			}
		}

		if d.dropped == 0 {
			return
		}

		marker := ErrorRecord{
			Kind:      ErrorOverflow,
			Severity:  record.SeverityError,
			Timestamp: d.now(),
			Message:   "error buffer overflow",
			Dropped:   d.dropped,
		}
		d.dropped = 0
		yield(marker)
	}
}

// Pending returns the number of buffered records, excluding a pending overflow marker.
func (d *ErrorDrain) Pending() int {
	return d.buf.Length()
}

// Dropped returns the total number of records dropped since the drain was created.
func (d *ErrorDrain) Dropped() uint64 {
	return d.totalDropped
}
