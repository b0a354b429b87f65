package lui

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-lui/channel"
)

// Error categories. Every error returned by this package wraps exactly one of them.
var (
	// ErrTransport indicates that a channel rejected an operation, delivered a record that
	// could not be decoded, or is unusable.
	//
	// Only a transport error that wraps ErrDisconnected is fatal to the session, use IsFatal
	// to tell. ErrSendWouldBlock, ErrCommandQueueFull, ErrMalformedRecord and a would-block
	// ErrCommandAbandoned leave the session attached.
	ErrTransport = errors.New("transport error")

	// ErrTimeout indicates that a local wait expired. The caller may retry.
	ErrTimeout = errors.New("timeout")

	// ErrPrecondition indicates a programming error such as querying an unissued sequence
	// number or using a session that is not attached. It is never retried.
	ErrPrecondition = errors.New("precondition violation")
)

var (
	// ErrDisconnected indicates that a channel is closed or its transport failed.
	ErrDisconnected = fmt.Errorf("%w: %w", ErrTransport, channel.ErrDisconnected)

	// ErrSendWouldBlock indicates that the command channel could not accept a record without blocking.
	ErrSendWouldBlock = fmt.Errorf("%w: %w", ErrTransport, channel.ErrWouldBlock)

	// ErrCommandQueueFull indicates that the number of outstanding commands reached the command queue capacity.
	ErrCommandQueueFull = fmt.Errorf("%w: command queue full", ErrSendWouldBlock)

	// ErrCommandAbandoned indicates that a command was never delivered to the controller.
	ErrCommandAbandoned = fmt.Errorf("%w: command abandoned", ErrTransport)

	// ErrAttach indicates that a session could not establish its channels.
	ErrAttach = fmt.Errorf("%w: attach failed", ErrTransport)

	// ErrMalformedRecord indicates that a received record could not be decoded. The record is
	// skipped and the session stays attached.
	ErrMalformedRecord = fmt.Errorf("%w: malformed record", ErrTransport)
)

var (
	// ErrNotAttached indicates that an operation was called on a session that is not attached.
	ErrNotAttached = fmt.Errorf("%w: session not attached", ErrPrecondition)

	// ErrSessionUsed indicates that Attach was called on a session that has already been attached once.
	ErrSessionUsed = fmt.Errorf("%w: session already used", ErrPrecondition)

	// ErrInvalidTransition indicates a session state transition that is not allowed from the current state.
	ErrInvalidTransition = fmt.Errorf("%w: invalid state transition", ErrPrecondition)

	// ErrUnissuedSequence indicates a sequence number never returned by Submit.
	ErrUnissuedSequence = fmt.Errorf("%w: sequence number never issued", ErrPrecondition)

	// ErrInvalidCommand indicates a nil command or a command whose payload can't be marshaled.
	ErrInvalidCommand = fmt.Errorf("%w: invalid command", ErrPrecondition)

	// ErrNoStatusYet indicates that no status snapshot has been received since the session was attached.
	ErrNoStatusYet = fmt.Errorf("%w: no status yet", ErrPrecondition)

	// ErrSessionConfigNil indicates that a nil SessionConfig was provided.
	ErrSessionConfigNil = fmt.Errorf("%w: session config is nil", ErrPrecondition)
)

// IsFatal reports whether err leaves the session unusable. It is the only fatality test,
// errors.Is(err, ErrTransport) also matches recoverable transport errors.
func IsFatal(err error) bool {
	return errors.Is(err, channel.ErrDisconnected)
}

// channelError maps a channel error to the error taxonomy of this package.
func channelError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, channel.ErrWouldBlock):
		return ErrSendWouldBlock
	case errors.Is(err, channel.ErrDisconnected):
		return ErrDisconnected
	default:
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
}
