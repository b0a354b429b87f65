package lui

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arloliu/go-lui/channel"
	"github.com/arloliu/go-lui/logger"
)

// Session is a control session bound to one controller through three channels.
//
// It owns one Dispatcher, one StatusCache and one ErrorDrain, each with its own channel,
// for as long as it is attached. A Session is attached at most once: after it detaches,
// either by Detach or because a channel disconnected, a new Session must be created.
//
// A Session has a single logical owner. Callers sharing a session between goroutines must
// serialize every call.
type Session struct {
	id      string
	cfg     *SessionConfig
	logger  logger.Logger
	metrics SessionMetrics

	state    atomicSessionState
	used     bool
	hmu      sync.Mutex
	handlers []StateChangeHandler

	channels   channel.Set
	dispatcher *Dispatcher
	status     *StatusCache
	drain      *ErrorDrain
}

// NewSession creates a detached session with the given configuration.
func NewSession(cfg *SessionConfig) (*Session, error) {
	if cfg == nil {
		return nil, ErrSessionConfigNil
	}

	id := uuid.NewString()

	return &Session{
		id:     id,
		cfg:    cfg,
		logger: cfg.logger.With("session", id),
	}, nil
}

// ID returns the unique instance id of the session.
func (s *Session) ID() string {
	return s.id
}

// State returns the current session state.
func (s *Session) State() SessionState {
	return s.state.Get()
}

// Config returns the session configuration.
func (s *Session) Config() *SessionConfig {
	return s.cfg
}

// Metrics returns the session metrics.
func (s *Session) Metrics() *SessionMetrics {
	return &s.metrics
}

// AddStateHandler registers handlers invoked on every state change.
func (s *Session) AddStateHandler(handlers ...StateChangeHandler) {
	s.hmu.Lock()
	defer s.hmu.Unlock()

	s.handlers = append(s.handlers, handlers...)
}

func (s *Session) notify(prev, next SessionState) {
	s.logger.Debug("session state changed", "method", "notify", "prev", prev.String(), "new", next.String())

	s.hmu.Lock()
	handlers := make([]StateChangeHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.hmu.Unlock()

	for _, h := range handlers {
		h(s, prev, next)
	}
}

// Attach opens the command, status and error channels through opener and attaches the session.
//
// If any channel can't be opened, the channels opened so far are closed, the session returns
// to Detached and an error wrapping ErrAttach is returned. Such a session may attach again.
func (s *Session) Attach(ctx context.Context, opener channel.Opener) error {
	if s.used {
		return ErrSessionUsed
	}

	if opener == nil {
		return fmt.Errorf("%w: nil opener", ErrAttach)
	}

	if !s.state.ToAttaching() {
		return fmt.Errorf("%w: attach from %s", ErrInvalidTransition, s.state.Get())
	}
	s.notify(DetachedState, AttachingState)

	var set channel.Set
	for _, kind := range channel.Kinds {
		ch, err := opener.Open(ctx, kind)
		switch {
		case err != nil:
		case ch == nil:
			err = errors.New("opener returned nil channel")
		case ch.Kind() != kind:
			_ = ch.Close()
			err = fmt.Errorf("opener returned %s channel", ch.Kind())
		}

		if err != nil {
			if closeErr := set.Close(); closeErr != nil {
				s.logger.Warn("failed to close channels", "method", "Attach", "error", closeErr)
			}
			s.state.ToDetached()
			s.notify(AttachingState, DetachedState)
			s.logger.Error("failed to attach", "method", "Attach", "channel", kind.String(), "error", err)

			return fmt.Errorf("%w: open %s channel: %w", ErrAttach, kind, err)
		}
		set.Put(ch)
	}

	// components log with the session id
	cfg := *s.cfg
	cfg.logger = s.logger

	s.channels = set
	s.status = NewStatusCache(set.Status, &cfg, &s.metrics)
	s.dispatcher = NewDispatcher(set.Command, s.status, &cfg, &s.metrics)
	s.drain = NewErrorDrain(set.Error, &cfg, &s.metrics)
	s.used = true

	s.state.ToAttached()
	s.notify(AttachingState, AttachedState)
	s.logger.Info("session attached", "method", "Attach")

	return nil
}

// Detach releases the channels. Commands whose completion was never observed are neither
// cancelled nor retried, the session simply stops observing them.
func (s *Session) Detach() error {
	if !s.state.IsAttached() {
		return ErrNotAttached
	}

	err := s.detach(nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	return nil
}

// detach moves Attached → Detaching → Detached and closes the channels.
func (s *Session) detach(cause error) error {
	if !s.state.ToDetaching() {
		return nil
	}
	s.notify(AttachedState, DetachingState)

	outstanding := s.dispatcher.Outstanding()
	err := s.channels.Close()
	s.channels = channel.Set{}

	s.state.ToDetached()
	s.notify(DetachingState, DetachedState)

	if cause != nil {
		s.logger.Error("session detached on transport failure", "method", "detach", "error", cause, "outstanding", outstanding)
	} else {
		s.logger.Info("session detached", "method", "detach", "outstanding", outstanding)
	}

	return err
}

// fail detaches the session if err is fatal and returns err.
func (s *Session) fail(err error) error {
	if IsFatal(err) {
		_ = s.detach(err)
	}

	return err
}

func (s *Session) checkAttached() error {
	if !s.state.IsAttached() {
		return ErrNotAttached
	}

	return nil
}

// Submit sends cmd and returns its sequence number. See Dispatcher.Submit.
func (s *Session) Submit(cmd Command) (uint64, error) {
	if err := s.checkAttached(); err != nil {
		return 0, err
	}

	seq, err := s.dispatcher.Submit(cmd)

	return seq, s.fail(err)
}

// Poll reports the completion state of seq. See Dispatcher.Poll.
func (s *Session) Poll(seq uint64) (CommandStatus, error) {
	if err := s.checkAttached(); err != nil {
		return CommandUnknown, err
	}

	return s.dispatcher.Poll(seq)
}

// Acknowledged reports whether the controller acknowledged receipt of seq.
func (s *Session) Acknowledged(seq uint64) (bool, error) {
	if err := s.checkAttached(); err != nil {
		return false, err
	}

	return s.dispatcher.Acknowledged(seq), nil
}

// Outstanding returns the number of commands sent but not yet confirmed.
func (s *Session) Outstanding() (int, error) {
	if err := s.checkAttached(); err != nil {
		return 0, err
	}

	return s.dispatcher.Outstanding(), nil
}

// Refresh runs one poll cycle: it refreshes the status cache, drains command acks, fills
// the error buffer and confirms completed commands. It never blocks.
//
// A malformed record does not stop the cycle, its error is returned after the cycle completes.
// A disconnected channel detaches the session and is returned immediately.
func (s *Session) Refresh() (RefreshResult, error) {
	if err := s.checkAttached(); err != nil {
		return RefreshUnavailable, err
	}

	var errs []error

	result, err := s.status.Refresh()
	if err != nil {
		if IsFatal(err) {
			return result, s.fail(err)
		}
		errs = append(errs, err)
	}

	if _, err := s.dispatcher.DrainAcks(); err != nil {
		if IsFatal(err) {
			return result, s.fail(err)
		}
		errs = append(errs, err)
	}

	if _, err := s.drain.Fill(); err != nil {
		if IsFatal(err) {
			return result, s.fail(err)
		}
		errs = append(errs, err)
	}

	if result == RefreshUpdated {
		s.dispatcher.Confirm()
	}

	return result, errors.Join(errs...)
}

// WaitUntilComplete runs poll cycles until seq completes, timeout expires or ctx is done.
// A non-positive timeout performs a single cycle. See Dispatcher.WaitUntilComplete.
func (s *Session) WaitUntilComplete(ctx context.Context, seq uint64, timeout time.Duration) (CommandStatus, error) {
	if err := s.checkAttached(); err != nil {
		return CommandUnknown, err
	}

	return s.dispatcher.WaitUntilComplete(ctx, seq, timeout, func() error {
		_, err := s.Refresh()
		if err != nil && !IsFatal(err) && !errors.Is(err, ErrPrecondition) {
			s.logger.Debug("ignore refresh error while waiting", "method", "WaitUntilComplete", "seq", seq, "error", err)
			return nil
		}

		return err
	})
}

// Status returns the cached status snapshot, or ErrNoStatusYet.
func (s *Session) Status() (StatusSnapshot, error) {
	if err := s.checkAttached(); err != nil {
		return StatusSnapshot{}, err
	}

	return s.status.Current()
}

// IsFresh reports whether a status snapshot was accepted within maxAge.
// A non-positive maxAge uses the configured freshness window.
func (s *Session) IsFresh(maxAge time.Duration) (bool, error) {
	if err := s.checkAttached(); err != nil {
		return false, err
	}

	if maxAge <= 0 {
		maxAge = s.cfg.freshnessWindow
	}

	return s.status.IsFresh(maxAge), nil
}

// PullErrors returns the buffered error records followed by an overflow marker if records
// were dropped. See ErrorDrain.Pull.
func (s *Session) PullErrors() (iter.Seq[ErrorRecord], error) {
	if err := s.checkAttached(); err != nil {
		return nil, err
	}

	return s.drain.Pull(), nil
}

// DroppedErrors returns the total number of error records dropped on overflow.
func (s *Session) DroppedErrors() (uint64, error) {
	if err := s.checkAttached(); err != nil {
		return 0, err
	}

	return s.drain.Dropped(), nil
}
