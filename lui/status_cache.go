package lui

import (
	"fmt"
	"time"

	"github.com/arloliu/go-lui/channel"
	"github.com/arloliu/go-lui/internal/util"
	"github.com/arloliu/go-lui/logger"
	"github.com/arloliu/go-lui/record"
)

// StatusCache holds the freshest known controller status snapshot read from the status channel.
//
// StatusCache is not safe for concurrent use.
type StatusCache struct {
	ch      channel.Channel
	logger  logger.Logger
	metrics *SessionMetrics
	now     func() time.Time

	snapshot   StatusSnapshot
	hasStatus  bool
	generation uint64
	lastUpdate time.Time
}

// NewStatusCache creates a status cache reading from ch.
// A nil cfg uses the default configuration, a nil metrics allocates private metrics.
func NewStatusCache(ch channel.Channel, cfg *SessionConfig, metrics *SessionMetrics) *StatusCache {
	if cfg == nil {
		cfg = defaultSessionConfig()
	}

	if metrics == nil {
		metrics = &SessionMetrics{}
	}

	return &StatusCache{
		ch:      ch,
		logger:  cfg.logger,
		metrics: metrics,
		now:     cfg.now,
	}
}

// Refresh takes the latest pending status record from the channel without blocking.
//
// The cached snapshot is replaced only when the heartbeat of the received record is strictly
// greater than the cached one, so duplicate or reordered delivery never moves the cache backwards.
//
// RefreshUnavailable is returned when no record is ready, together with an error when the channel
// failed or the record is malformed. The cache is untouched in that case.
func (c *StatusCache) Refresh() (RefreshResult, error) {
	rec, ok, err := c.ch.TryReceiveLatest()
	if err != nil {
		c.metrics.incTransportErrCount()
		return RefreshUnavailable, channelError(err)
	}

	if !ok {
		c.metrics.incStatusUnavailableCount()
		return RefreshUnavailable, nil
	}

	p, err := record.DecodeStatus(rec)
	if err != nil {
		c.metrics.incMalformedRecordCount()
		c.logger.Warn("skip malformed status record", record.Info(rec, "method", "Refresh", "error", err)...)

		return RefreshUnavailable, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}

	if c.hasStatus && rec.Seq <= c.snapshot.Heartbeat {
		c.metrics.incStatusUnchangedCount()
		c.logger.Debug("status heartbeat did not advance", "method", "Refresh",
			"heartbeat", rec.Seq, "cached_heartbeat", c.snapshot.Heartbeat)

		return RefreshUnchanged, nil
	}

	now := c.now()
	c.snapshot = StatusSnapshot{
		LastExecutedSeq: p.LastExecutedSeq,
		Heartbeat:       rec.Seq,
		ExecState:       p.ExecState,
		Timestamp:       rec.Timestamp,
		State:           p.State,
		ReceivedAt:      now,
	}
	c.hasStatus = true
	c.generation++
	c.lastUpdate = now
	c.metrics.incStatusUpdateCount()

	return RefreshUpdated, nil
}

// Current returns the cached snapshot, or ErrNoStatusYet if no snapshot was ever accepted.
func (c *StatusCache) Current() (StatusSnapshot, error) {
	if !c.hasStatus {
		return StatusSnapshot{}, ErrNoStatusYet
	}

	snapshot := c.snapshot
	if snapshot.State != nil {
		snapshot.State = util.CloneSlice(snapshot.State, 0)
	}

	return snapshot, nil
}

// IsFresh reports whether a snapshot was accepted within maxAge of now.
func (c *StatusCache) IsFresh(maxAge time.Duration) bool {
	if !c.hasStatus {
		return false
	}

	return c.now().Sub(c.lastUpdate) <= maxAge
}

// Generation returns the number of snapshots accepted so far.
func (c *StatusCache) Generation() uint64 {
	return c.generation
}

// LastUpdate returns the local time of the last accepted snapshot, or the zero time.
func (c *StatusCache) LastUpdate() time.Time {
	return c.lastUpdate
}
