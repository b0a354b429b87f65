package simulator

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"code.hybscloud.com/iox"

	"github.com/arloliu/go-lui/channel"
	"github.com/arloliu/go-lui/internal/queue"
	"github.com/arloliu/go-lui/logger"
	"github.com/arloliu/go-lui/record"
)

// command is a received command waiting for or under execution.
type command struct {
	seq   uint64
	code  uint32
	ticks int
}

// Controller simulates a machine controller over the controller ends of a channel set.
//
// Step and Run must be called from one goroutine. Pause, Resume, RaiseError and the
// accessors are safe to call from any goroutine.
type Controller struct {
	channels channel.Set
	cfg      *config
	logger   logger.Logger

	pending     *queue.LockFreeQueue[*command]
	current     *command
	raised      *queue.LockFreeQueue[*record.Record]
	execState   record.ExecState
	lastPublish time.Time

	heartbeat    atomic.Uint64
	lastExecuted atomic.Uint64
	received     atomic.Uint64
	paused       atomic.Bool
}

// New creates a controller driving the controller ends in set.
func New(set channel.Set, opts ...Option) (*Controller, error) {
	if !set.Complete() {
		return nil, errors.New("incomplete channel set")
	}

	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Controller{
		channels:  set,
		cfg:       cfg,
		logger:    cfg.logger.With("component", "simulator"),
		pending:   queue.NewLockFreeQueue[*command](),
		raised:    queue.NewLockFreeQueue[*record.Record](),
		execState: record.ExecDone,
	}, nil
}

// Heartbeat returns the heartbeat of the last published status.
func (c *Controller) Heartbeat() uint64 {
	return c.heartbeat.Load()
}

// LastExecuted returns the sequence number of the last executed command.
func (c *Controller) LastExecuted() uint64 {
	return c.lastExecuted.Load()
}

// Received returns the number of commands received.
func (c *Controller) Received() uint64 {
	return c.received.Load()
}

// Pause stops status publishing, so the client observes the controller as stale.
// Commands are still received and executed.
func (c *Controller) Pause() {
	c.paused.Store(true)
}

// Resume restarts status publishing.
func (c *Controller) Resume() {
	c.paused.Store(false)
}

// RaiseError queues an error record that is not correlated with a command.
func (c *Controller) RaiseError(severity record.Severity, message string) {
	c.raised.Enqueue(record.EncodeError(record.ErrorPayload{Severity: severity, Message: message}))
}

// RaiseCommandError queues an error record correlated with the command seq.
func (c *Controller) RaiseCommandError(seq uint64, severity record.Severity, message string) {
	c.raised.Enqueue(record.EncodeError(record.ErrorPayload{
		Severity:      severity,
		Message:       message,
		CommandSeq:    seq,
		HasCommandSeq: true,
	}))
}

// Step runs one controller cycle: receive and acknowledge commands, advance execution,
// send raised errors and publish status. It never blocks.
//
// progress reports whether anything other than a status publish happened.
// The returned error wraps channel.ErrDisconnected when a channel is unusable.
func (c *Controller) Step() (progress bool, err error) {
	n, err := c.receiveCommands()
	if err != nil {
		return false, err
	}
	progress = n > 0

	if c.execute() {
		progress = true
	}

	sent, err := c.sendErrors()
	if err != nil {
		return progress, err
	}
	progress = progress || sent > 0

	if err := c.publishStatus(); err != nil {
		return progress, err
	}

	return progress, nil
}

// Run steps the controller until ctx is done or a channel disconnects, backing off while idle.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Info("simulator running", "method", "Run")

	var bo iox.Backoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		progress, err := c.Step()
		if err != nil {
			c.logger.Info("simulator stopped", "method", "Run", "error", err)
			return err
		}

		if progress {
			bo.Reset()
		} else {
			bo.Wait()
		}
	}
}

// Close closes the controller ends of all channels.
func (c *Controller) Close() error {
	return c.channels.Close()
}

func (c *Controller) receiveCommands() (int, error) {
	n := 0
	for {
		rec, ok, err := c.channels.Command.TryReceiveNext()
		if err != nil {
			return n, fmt.Errorf("receive command: %w", err)
		}

		if !ok {
			return n, nil
		}

		p, err := record.DecodeCommand(rec)
		if err != nil {
			c.logger.Warn("discard malformed command", record.Info(rec, "method", "receiveCommands", "error", err)...)
			c.RaiseError(record.SeverityError, "malformed command")

			continue
		}

		n++
		c.received.Add(1)
		c.pending.Enqueue(&command{seq: rec.Seq, code: p.Code})

		ack := record.New(record.CommandAckType, rec.Seq, nil)
		if err := c.channels.Command.Send(ack); err != nil {
			if !errors.Is(err, channel.ErrWouldBlock) {
				return n, fmt.Errorf("send ack: %w", err)
			}
			c.logger.Debug("drop ack on full channel", "method", "receiveCommands", "seq", rec.Seq)
		}
	}
}

// execute advances the command under execution by one tick and starts the next one when idle.
func (c *Controller) execute() bool {
	if c.current == nil {
		next, ok := c.pending.Dequeue()
		if !ok {
			return false
		}
		c.current = next
		c.execState = record.ExecRunning
	}

	c.current.ticks++
	if c.current.ticks < c.cfg.execTicks {
		return true
	}

	cmd := c.current
	c.current = nil
	c.lastExecuted.Store(cmd.seq)
	c.execState = record.ExecDone

	if p, failed := c.cfg.failure(cmd.code); failed {
		c.execState = record.ExecError
		c.RaiseCommandError(cmd.seq, p.Severity, p.Message)
	}

	c.logger.Debug("command executed", "method", "execute", "seq", cmd.seq, "code", cmd.code, "state", c.execState.String())

	return true
}

// sendErrors sends raised error records in order. A record the channel can't take yet stays queued.
func (c *Controller) sendErrors() (int, error) {
	n := 0
	for {
		rec, ok := c.raised.Peek()
		if !ok {
			return n, nil
		}

		if err := c.channels.Error.Send(rec); err != nil {
			if errors.Is(err, channel.ErrWouldBlock) {
				return n, nil
			}

			return n, fmt.Errorf("send error record: %w", err)
		}

		c.raised.Dequeue()
		n++
	}
}

func (c *Controller) publishStatus() error {
	if c.paused.Load() {
		return nil
	}

	now := c.cfg.now()
	if c.cfg.publishInterval > 0 && now.Sub(c.lastPublish) < c.cfg.publishInterval {
		return nil
	}

	state := binary.BigEndian.AppendUint64(nil, c.received.Load())
	hb := c.heartbeat.Load() + 1
	rec := record.EncodeStatus(hb, record.StatusPayload{
		LastExecutedSeq: c.lastExecuted.Load(),
		ExecState:       c.execState,
		State:           state,
	})
	rec.Timestamp = now

	if err := c.channels.Status.Send(rec); err != nil {
		if errors.Is(err, channel.ErrWouldBlock) {
			return nil
		}

		return fmt.Errorf("publish status: %w", err)
	}

	c.heartbeat.Store(hb)
	c.lastPublish = now

	return nil
}
