package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// TCPOpener opens stream channels to a controller listening on a TCP address.
type TCPOpener struct {
	addr string
	cfg  *StreamConfig
}

var _ Opener = (*TCPOpener)(nil)

// NewTCPOpener creates an opener dialing addr. A nil cfg uses the default stream configuration.
func NewTCPOpener(addr string, cfg *StreamConfig) *TCPOpener {
	if cfg == nil {
		cfg = defaultStreamConfig()
	}

	return &TCPOpener{addr: addr, cfg: cfg}
}

// Open dials the controller, performs the hello handshake for kind and starts the stream tasks.
func (o *TCPOpener) Open(ctx context.Context, kind Kind) (Channel, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKind, kind)
	}

	dialer := net.Dialer{Timeout: o.cfg.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", o.addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s channel: %w", kind, err)
	}

	s := newStream(conn, kind, o.cfg)
	if err := s.clientHandshake(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := s.start(); err != nil {
		_ = s.Close()
		return nil, err
	}

	s.logger.Debug("stream opened", "method", "Open")

	return s, nil
}

// Listener accepts stream channels on the controller side.
type Listener struct {
	ln  *net.TCPListener
	cfg *StreamConfig
}

// Listen listens on the TCP address addr. A nil cfg uses the default stream configuration.
func Listen(addr string, cfg *StreamConfig) (*Listener, error) {
	if cfg == nil {
		cfg = defaultStreamConfig()
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}

	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, err
	}

	return &Listener{ln: ln, cfg: cfg}, nil
}

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops listening. Streams already accepted are not affected.
func (l *Listener) Close() error {
	return l.ln.Close()
}

// Accept waits for a client connection, performs the controller side of the hello handshake
// and returns the started stream. The kind of the stream is the one announced by the client.
func (l *Listener) Accept(ctx context.Context) (*Stream, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := l.ln.SetDeadline(time.Now().Add(l.cfg.acceptTimeout)); err != nil {
			return nil, err
		}

		conn, err := l.ln.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			return nil, err
		}

		s := newStream(conn, 0, l.cfg)
		if err := s.serverHandshake(); err != nil {
			l.cfg.logger.Warn("reject stream", "method", "Accept", "remote", conn.RemoteAddr().String(), "error", err)
			_ = conn.Close()

			continue
		}

		if err := s.start(); err != nil {
			_ = s.Close()
			return nil, err
		}

		s.logger.Debug("stream accepted", "method", "Accept")

		return s, nil
	}
}

// AcceptSet accepts streams until one of each kind is connected.
// A duplicate stream of an already connected kind is closed.
func (l *Listener) AcceptSet(ctx context.Context) (Set, error) {
	var set Set
	for !set.Complete() {
		s, err := l.Accept(ctx)
		if err != nil {
			_ = set.Close()
			return Set{}, err
		}

		if set.Get(s.Kind()) != nil {
			l.cfg.logger.Warn("close duplicate stream", "method", "AcceptSet", "channel", s.Kind().String())
			_ = s.Close()

			continue
		}
		set.Put(s)
	}

	return set, nil
}
