package channel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-lui/internal/queue"
	"github.com/arloliu/go-lui/internal/task"
	"github.com/arloliu/go-lui/logger"
	"github.com/arloliu/go-lui/record"
)

// Stream is a Channel over a single TCP connection.
//
// A receiver task decodes inbound frames into an unbounded FIFO, or into a latest-wins slot
// for KindStatus. Send enqueues onto a bounded sender queue drained by a sender task that
// writes each frame under a write deadline. Any I/O failure disconnects the stream.
type Stream struct {
	kind   Kind
	cfg    *StreamConfig
	logger logger.Logger

	conn    net.Conn
	reader  *bufio.Reader
	fr      frameReader
	taskMgr *task.Manager

	senderCh chan *record.Record
	inbound  *queue.LockFreeQueue[*record.Record]
	latest   atomic.Pointer[record.Record]

	disconnected atomic.Bool
	closeOnce    sync.Once

	metrics Metrics
}

var _ Channel = (*Stream)(nil)

func newStream(conn net.Conn, kind Kind, cfg *StreamConfig) *Stream {
	return &Stream{
		kind:     kind,
		cfg:      cfg,
		logger:   cfg.logger.With("channel", kind.String(), "remote", conn.RemoteAddr().String()),
		conn:     conn,
		reader:   bufio.NewReader(conn),
		fr:       frameReader{maxFrameSize: cfg.maxFrameSize},
		taskMgr:  task.NewManager(context.Background(), cfg.logger),
		senderCh: make(chan *record.Record, cfg.sendQueueSize),
		inbound:  queue.NewLockFreeQueue[*record.Record](),
	}
}

func (s *Stream) Kind() Kind {
	return s.kind
}

// Metrics returns the metrics of the stream.
func (s *Stream) Metrics() *Metrics {
	return &s.metrics
}

// Send implements Channel.Send.
func (s *Stream) Send(rec *record.Record) error {
	if rec == nil {
		return ErrNilRecord
	}

	if s.disconnected.Load() {
		return ErrDisconnected
	}

	if rec.Size()-record.LengthFieldSize > s.cfg.maxFrameSize {
		return fmt.Errorf("%w: frame size %d exceeds maximum %d", record.ErrPayloadTooLarge, rec.Size()-record.LengthFieldSize, s.cfg.maxFrameSize)
	}

	select {
	case s.senderCh <- rec:
		return nil
	default:
		s.metrics.incWouldBlockCount()
		return ErrWouldBlock
	}
}

// TryReceiveLatest implements Channel.TryReceiveLatest.
func (s *Stream) TryReceiveLatest() (*record.Record, bool, error) {
	var last *record.Record
	for {
		rec, ok := s.inbound.Dequeue()
		if !ok {
			break
		}
		last = rec
	}

	if rec := s.latest.Swap(nil); rec != nil {
		last = rec
	}

	if last != nil {
		return last, true, nil
	}

	return nil, false, s.disconnectedErr()
}

// TryReceiveNext implements Channel.TryReceiveNext.
func (s *Stream) TryReceiveNext() (*record.Record, bool, error) {
	if rec, ok := s.inbound.Dequeue(); ok {
		return rec, true, nil
	}

	if rec := s.latest.Swap(nil); rec != nil {
		return rec, true, nil
	}

	return nil, false, s.disconnectedErr()
}

// Close implements Channel.Close. It stops the stream tasks and closes the connection.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.disconnected.Store(true)
		s.taskMgr.Stop()
		err = s.conn.Close()
		s.taskMgr.Wait()
		s.logger.Debug("stream closed", "method", "Close")
	})

	if errors.Is(err, net.ErrClosed) {
		return nil
	}

	return err
}

// IsDisconnected reports whether the stream is closed or its transport failed.
func (s *Stream) IsDisconnected() bool {
	return s.disconnected.Load()
}

func (s *Stream) disconnectedErr() error {
	if s.disconnected.Load() {
		return ErrDisconnected
	}

	return nil
}

// start starts the receiver and sender tasks.
func (s *Stream) start() error {
	if err := s.conn.SetDeadline(time.Time{}); err != nil {
		return fmt.Errorf("clear deadline: %w", err)
	}

	if err := s.taskMgr.Start("receiver", s.receiverTask, nil); err != nil {
		return err
	}

	return task.StartConsumer(s.taskMgr, "sender", s.senderCh, s.senderTask, nil)
}

// disconnect marks the stream disconnected and unblocks both tasks.
// It is called from the tasks themselves and must not wait for them.
func (s *Stream) disconnect(cause error) {
	if !s.disconnected.CompareAndSwap(false, true) {
		return
	}

	if isNetError(cause) {
		s.logger.Debug("stream disconnected", "method", "disconnect", "error", cause)
	} else {
		s.logger.Error("stream disconnected", "method", "disconnect", "error", cause)
	}

	s.taskMgr.Stop()
	_ = s.conn.Close()
}

// receiverTask reads one frame and delivers the record.
func (s *Stream) receiverTask() bool {
	rec, err := s.fr.readFrame(s.reader)
	if err != nil {
		if errors.Is(err, errBadRecord) {
			s.metrics.incDecodeErrCount()
			s.logger.Warn("skip undecodable frame", "method", "receiverTask", "error", err)

			return true
		}

		s.disconnect(err)

		return false
	}

	s.metrics.incRecordRecvCount()

	if rec.Type == record.HelloType {
		s.logger.Debug("ignore hello after handshake", "method", "receiverTask")
		return true
	}

	s.logger.Debug("record received", record.Info(rec, "method", "receiverTask")...)

	if s.kind.LatestWins() {
		s.latest.Store(rec)
	} else {
		s.inbound.Enqueue(rec)
	}

	return true
}

// senderTask writes one frame under the write deadline.
func (s *Stream) senderTask(rec *record.Record) bool {
	if err := s.writeFrame(rec); err != nil {
		s.metrics.incSendErrCount()
		s.disconnect(err)

		return false
	}

	s.metrics.incRecordSendCount()

	return true
}

func (s *Stream) writeFrame(rec *record.Record) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}

	if _, err := s.conn.Write(rec.ToBytes()); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

// readHello reads the hello record of the handshake within the hello timeout.
func (s *Stream) readHello(deadline time.Time) (record.HelloPayload, error) {
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return record.HelloPayload{}, fmt.Errorf("set hello deadline: %w", err)
	}

	rec, err := s.fr.readFrame(s.reader)
	if err != nil {
		return record.HelloPayload{}, fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	hello, err := record.DecodeHello(rec)
	if err != nil {
		return hello, fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	if hello.Version != record.Version {
		return hello, fmt.Errorf("%w: peer version %d, want %d", ErrHandshake, hello.Version, record.Version)
	}

	return hello, nil
}

func (s *Stream) writeHello(deadline time.Time) error {
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set hello deadline: %w", err)
	}

	hello := record.EncodeHello(record.HelloPayload{Kind: uint8(s.kind), Version: record.Version})
	if _, err := s.conn.Write(hello.ToBytes()); err != nil {
		return fmt.Errorf("%w: %w", ErrHandshake, err)
	}

	return nil
}

// clientHandshake sends the hello of the client and waits for the controller's echo.
func (s *Stream) clientHandshake(ctx context.Context) error {
	deadline := time.Now().Add(s.cfg.helloTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := s.writeHello(deadline); err != nil {
		return err
	}

	hello, err := s.readHello(deadline)
	if err != nil {
		return err
	}

	if Kind(hello.Kind) != s.kind {
		return fmt.Errorf("%w: peer echoed kind %s, want %s", ErrHandshake, Kind(hello.Kind), s.kind)
	}

	return nil
}

// serverHandshake reads the client's hello, adopts its kind and echoes it.
func (s *Stream) serverHandshake() error {
	deadline := time.Now().Add(s.cfg.helloTimeout)

	hello, err := s.readHello(deadline)
	if err != nil {
		return err
	}

	kind := Kind(hello.Kind)
	if !kind.IsValid() {
		return fmt.Errorf("%w: %w: %d", ErrHandshake, ErrInvalidKind, hello.Kind)
	}

	s.kind = kind
	s.logger = s.cfg.logger.With("channel", kind.String(), "remote", s.conn.RemoteAddr().String())

	return s.writeHello(deadline)
}

func isNetError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
