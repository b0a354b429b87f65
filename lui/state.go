package lui

import "sync/atomic"

// SessionState represents the lifecycle stage of a control session.
type SessionState uint32

// Session states. A session moves Detached → Attaching → Attached → Detaching → Detached.
const (
	// DetachedState indicates that the session holds no channels.
	DetachedState SessionState = iota
	// AttachingState indicates that the channels are being opened and validated.
	AttachingState
	// AttachedState indicates normal operation.
	AttachedState
	// DetachingState indicates that the channels are being released.
	DetachingState
)

// String returns string representation of the session state.
func (s SessionState) String() string {
	switch s {
	case DetachedState:
		return "detached"
	case AttachingState:
		return "attaching"
	case AttachedState:
		return "attached"
	case DetachingState:
		return "detaching"
	default:
		return "unknown"
	}
}

// StateChangeHandler is invoked when the state of a session changes.
//
// Note: the handler is invoked synchronously by the goroutine driving the session.
// It must not call back into the session.
type StateChangeHandler func(s *Session, prevState SessionState, newState SessionState)

type atomicSessionState struct {
	state atomic.Uint32
}

func (st *atomicSessionState) Get() SessionState {
	return SessionState(st.state.Load())
}

func (st *atomicSessionState) IsAttached() bool {
	return st.Get() == AttachedState
}

func (st *atomicSessionState) transit(from, to SessionState) bool {
	return st.state.CompareAndSwap(uint32(from), uint32(to))
}

// ToAttaching moves Detached → Attaching.
func (st *atomicSessionState) ToAttaching() bool {
	return st.transit(DetachedState, AttachingState)
}

// ToAttached moves Attaching → Attached.
func (st *atomicSessionState) ToAttached() bool {
	return st.transit(AttachingState, AttachedState)
}

// ToDetaching moves Attached → Detaching.
func (st *atomicSessionState) ToDetaching() bool {
	return st.transit(AttachedState, DetachingState)
}

// ToDetached moves Detaching or Attaching → Detached.
func (st *atomicSessionState) ToDetached() bool {
	if st.transit(DetachingState, DetachedState) {
		return true
	}

	return st.transit(AttachingState, DetachedState)
}
