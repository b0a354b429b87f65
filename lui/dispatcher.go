package lui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-lui/channel"
	"github.com/arloliu/go-lui/internal/pool"
	"github.com/arloliu/go-lui/logger"
	"github.com/arloliu/go-lui/record"
)

// commandEntry tracks a command that was sent and is not confirmed yet.
type commandEntry struct {
	// sentGen is the status cache generation at the time the command was sent.
	// Only a snapshot accepted after that may confirm the command.
	sentGen uint64
	sentAt  time.Time
	acked   bool
}

// Dispatcher sends commands over the command channel and answers completion queries
// against a StatusCache.
//
// Sequence numbers start at 1 and increase strictly, one per Submit call. A sequence number
// whose send fails is consumed and reported as CommandAbandoned, so issued sequence numbers
// never have gaps.
//
// A command is complete once a status snapshot reports a last executed sequence number at
// least as large as the command's, that snapshot is fresh, and it was accepted after the
// command was sent. This relies on the controller executing commands in submission order.
// A confirmed command stays confirmed.
//
// Dispatcher is not safe for concurrent use.
type Dispatcher struct {
	ch      channel.Channel
	cache   *StatusCache
	logger  logger.Logger
	metrics *SessionMetrics
	now     func() time.Time

	capacity        int
	freshnessWindow time.Duration
	pollInterval    time.Duration

	lastSeq      uint64 // last issued sequence number
	confirmedSeq uint64 // every non-abandoned sequence number up to it is complete
	ledger       *xsync.MapOf[uint64, *commandEntry]
	abandoned    *xsync.MapOf[uint64, error]
}

// NewDispatcher creates a dispatcher sending on ch and confirming commands against cache.
// A nil cfg uses the default configuration, a nil metrics allocates private metrics.
func NewDispatcher(ch channel.Channel, cache *StatusCache, cfg *SessionConfig, metrics *SessionMetrics) *Dispatcher {
	if cfg == nil {
		cfg = defaultSessionConfig()
	}

	if metrics == nil {
		metrics = &SessionMetrics{}
	}

	return &Dispatcher{
		ch:              ch,
		cache:           cache,
		logger:          cfg.logger,
		metrics:         metrics,
		now:             cfg.now,
		capacity:        cfg.commandQueueCapacity,
		freshnessWindow: cfg.freshnessWindow,
		pollInterval:    cfg.pollInterval,
		ledger:          xsync.NewMapOf[uint64, *commandEntry](),
		abandoned:       xsync.NewMapOf[uint64, error](),
	}
}

// Submit encodes cmd into a command record with a newly allocated sequence number and
// sends it without blocking.
//
// A nil or unmarshalable command fails with ErrInvalidCommand and ErrCommandQueueFull is
// returned when the outstanding commands reached the command queue capacity. No sequence
// number is allocated in these cases.
//
// If the channel rejects the record, the allocated sequence number is returned together with
// an ErrTransport error and the command is abandoned.
func (d *Dispatcher) Submit(cmd Command) (uint64, error) {
	if cmd == nil {
		return 0, fmt.Errorf("%w: nil command", ErrInvalidCommand)
	}

	body, err := cmd.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	if len(body) > record.MaxPayloadSize {
		return 0, fmt.Errorf("%w: %w", ErrInvalidCommand, record.ErrPayloadTooLarge)
	}

	if d.ledger.Size() >= d.capacity {
		return 0, ErrCommandQueueFull
	}

	d.lastSeq++
	seq := d.lastSeq

	rec := record.EncodeCommand(seq, record.CommandPayload{Code: cmd.Code(), Body: body})
	sentGen := d.cache.Generation()

	if err := d.ch.Send(rec); err != nil {
		err = channelError(err)
		d.abandoned.Store(seq, err)
		d.metrics.incCommandAbandonCount()
		d.logger.Warn("command abandoned", "method", "Submit", "seq", seq, "error", err)

		return seq, fmt.Errorf("submit command %d: %w", seq, err)
	}

	d.ledger.Store(seq, &commandEntry{sentGen: sentGen, sentAt: d.now()})
	d.metrics.incCommandSubmitCount()
	d.metrics.setCommandOutstandingGauge(d.ledger.Size())
	d.logger.Debug("command sent", record.Info(rec, "method", "Submit", "code", cmd.Code())...)

	return seq, nil
}

// Poll reports the completion state of seq without blocking.
//
// CommandUnknown is returned together with ErrUnissuedSequence if seq was never returned by Submit.
func (d *Dispatcher) Poll(seq uint64) (CommandStatus, error) {
	if seq == 0 || seq > d.lastSeq {
		return CommandUnknown, fmt.Errorf("poll %d: %w", seq, ErrUnissuedSequence)
	}

	if _, ok := d.abandoned.Load(seq); ok {
		return CommandAbandoned, nil
	}

	if seq <= d.confirmedSeq {
		return CommandCompleted, nil
	}

	entry, ok := d.ledger.Load(seq)
	if !ok {
		return CommandPending, nil
	}

	if d.confirms(seq, entry) {
		d.confirmUpTo(seq)
		return CommandCompleted, nil
	}

	return CommandPending, nil
}

// confirms reports whether the cached snapshot confirms the command seq.
func (d *Dispatcher) confirms(seq uint64, entry *commandEntry) bool {
	snapshot, err := d.cache.Current()
	if err != nil {
		return false
	}

	return snapshot.LastExecutedSeq >= seq &&
		d.cache.IsFresh(d.freshnessWindow) &&
		d.cache.Generation() > entry.sentGen
}

// confirmUpTo advances the confirmation watermark to seq and forgets the confirmed entries.
// Commands sent before seq were sent no later than seq, so whatever confirms seq confirms them too.
func (d *Dispatcher) confirmUpTo(seq uint64) {
	if seq <= d.confirmedSeq {
		return
	}

	var latency time.Duration
	if entry, ok := d.ledger.Load(seq); ok {
		latency = d.now().Sub(entry.sentAt)
	}

	confirmed := 0
	d.ledger.Range(func(s uint64, _ *commandEntry) bool {
		if s <= seq {
			d.ledger.Delete(s)
			confirmed++
		}
		return true
	})
	d.confirmedSeq = seq

	d.metrics.addCommandConfirmCount(confirmed)
	d.metrics.setCommandOutstandingGauge(d.ledger.Size())
	d.logger.Debug("commands confirmed", "method", "confirmUpTo", "seq", seq, "count", confirmed, "latency", latency)
}

// Confirm confirms every outstanding command the cached snapshot confirms and returns the
// confirmation watermark.
func (d *Dispatcher) Confirm() uint64 {
	var highest uint64
	d.ledger.Range(func(seq uint64, entry *commandEntry) bool {
		if seq > highest && d.confirms(seq, entry) {
			highest = seq
		}
		return true
	})

	if highest > 0 {
		d.confirmUpTo(highest)
	}

	return d.confirmedSeq
}

// DrainAcks drains the command acks pending on the command channel without blocking and
// returns the number of acks received.
func (d *Dispatcher) DrainAcks() (int, error) {
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

		if rec.Type != record.CommandAckType {
			d.metrics.incMalformedRecordCount()
			d.logger.Warn("unexpected record on command channel", record.Info(rec, "method", "DrainAcks")...)

			continue
		}

		n++
		d.metrics.incCommandAckCount()
		if entry, ok := d.ledger.Load(rec.Seq); ok {
			entry.acked = true
		}
	}
}

// Acknowledged reports whether the controller acknowledged receipt of seq.
// A confirmed command counts as acknowledged.
func (d *Dispatcher) Acknowledged(seq uint64) bool {
	if seq == 0 || seq > d.lastSeq {
		return false
	}

	if _, ok := d.abandoned.Load(seq); ok {
		return false
	}

	if seq <= d.confirmedSeq {
		return true
	}

	entry, ok := d.ledger.Load(seq)

	return ok && entry.acked
}

// WaitUntilComplete polls seq until it completes, the timeout expires or ctx is done.
//
// Each round calls refresh, when not nil, and then Poll. Rounds are pollInterval apart.
// It returns CommandCompleted on success. Otherwise the last observed status is returned with
// ErrTimeout, ErrCommandAbandoned, ErrUnissuedSequence, ctx.Err() or the error of refresh.
func (d *Dispatcher) WaitUntilComplete(ctx context.Context, seq uint64, timeout time.Duration, refresh func() error) (CommandStatus, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		if refresh != nil {
			if err := refresh(); err != nil {
				return CommandPending, err
			}
		}

		status, err := d.Poll(seq)
		if err != nil {
			return status, err
		}

		switch status { //nolint:exhaustive
		case CommandCompleted:
			return status, nil
		case CommandAbandoned:
			cause, _ := d.abandoned.Load(seq)
			return status, fmt.Errorf("wait command %d: %w", seq, errors.Join(ErrCommandAbandoned, cause))
		}

		if err := pool.Sleep(waitCtx, d.pollInterval); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return status, ctxErr
			}

			return status, fmt.Errorf("wait command %d: %w", seq, ErrTimeout)
		}
	}
}

// Outstanding returns the number of commands sent but not yet confirmed.
func (d *Dispatcher) Outstanding() int {
	return d.ledger.Size()
}

// LastSeq returns the last issued sequence number, or 0 if nothing was submitted.
func (d *Dispatcher) LastSeq() uint64 {
	return d.lastSeq
}

// NextSeq returns the sequence number the next Submit will allocate.
func (d *Dispatcher) NextSeq() uint64 {
	return d.lastSeq + 1
}

// ConfirmedSeq returns the confirmation watermark.
func (d *Dispatcher) ConfirmedSeq() uint64 {
	return d.confirmedSeq
}
