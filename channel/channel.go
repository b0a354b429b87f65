package channel

import (
	"context"
	"errors"

	"code.hybscloud.com/iox"

	"github.com/arloliu/go-lui/record"
)

// Kind identifies the role of a channel within a control session.
type Kind uint8

// Channel kinds.
const (
	KindCommand Kind = 1
	KindStatus  Kind = 2
	KindError   Kind = 3
)

// Kinds lists all channel kinds in opening order.
var Kinds = []Kind{KindCommand, KindStatus, KindError}

// String returns the name of the channel kind.
func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindStatus:
		return "status"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// IsValid returns if k is a defined channel kind.
func (k Kind) IsValid() bool {
	return k >= KindCommand && k <= KindError
}

// LatestWins reports whether records of this kind supersede each other instead of queueing.
func (k Kind) LatestWins() bool {
	return k == KindStatus
}

var (
	// ErrWouldBlock indicates that a send could not make progress without blocking.
	ErrWouldBlock = iox.ErrWouldBlock

	// ErrDisconnected indicates that the channel is closed or the transport failed.
	ErrDisconnected = errors.New("channel disconnected")

	// ErrNilRecord indicates that a nil record was given to Send.
	ErrNilRecord = errors.New("nil record")

	// ErrInvalidKind indicates an undefined channel kind.
	ErrInvalidKind = errors.New("invalid channel kind")

	// ErrHandshake indicates that the hello handshake of a stream failed.
	ErrHandshake = errors.New("channel handshake failed")
)

// Channel is a non-blocking typed record transport.
//
// A Channel has a single owner. Send may be called by one goroutine while another
// goroutine receives, but concurrent senders or concurrent receivers are not supported.
type Channel interface {
	// Kind returns the kind of the channel.
	Kind() Kind
	// Send sends a record without blocking.
	// It returns ErrWouldBlock when the outbound buffer is full and ErrDisconnected
	// when the channel is unusable.
	Send(rec *record.Record) error
	// TryReceiveLatest returns the newest pending record, discarding older pending records.
	// ok is false when no record is ready.
	TryReceiveLatest() (rec *record.Record, ok bool, err error)
	// TryReceiveNext returns the oldest pending record. ok is false when no record is ready.
	TryReceiveNext() (rec *record.Record, ok bool, err error)
	// Close releases the channel. Close is idempotent.
	Close() error
}

// Opener opens the client side of a channel.
type Opener interface {
	Open(ctx context.Context, kind Kind) (Channel, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, kind Kind) (Channel, error)

// Open calls f(ctx, kind).
func (f OpenerFunc) Open(ctx context.Context, kind Kind) (Channel, error) {
	return f(ctx, kind)
}

// Set groups the three channels of one control session.
type Set struct {
	Command Channel
	Status  Channel
	Error   Channel
}

// Get returns the channel of the given kind, or nil.
func (s *Set) Get(kind Kind) Channel {
	switch kind {
	case KindCommand:
		return s.Command
	case KindStatus:
		return s.Status
	case KindError:
		return s.Error
	default:
		return nil
	}
}

// Put stores ch under its kind, replacing any channel of the same kind.
func (s *Set) Put(ch Channel) {
	switch ch.Kind() {
	case KindCommand:
		s.Command = ch
	case KindStatus:
		s.Status = ch
	case KindError:
		s.Error = ch
	}
}

// Complete reports whether all three channels are present.
func (s *Set) Complete() bool {
	return s.Command != nil && s.Status != nil && s.Error != nil
}

// Close closes all present channels and returns the joined close errors.
func (s *Set) Close() error {
	var errs []error
	for _, kind := range Kinds {
		if ch := s.Get(kind); ch != nil {
			if err := ch.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}
