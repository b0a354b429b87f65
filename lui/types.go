package lui

import (
	"time"

	"github.com/arloliu/go-lui/record"
)

// CommandStatus is the completion state of a submitted command.
type CommandStatus uint8

const (
	// CommandUnknown is reported together with ErrUnissuedSequence.
	CommandUnknown CommandStatus = iota
	// CommandPending indicates that no fresh status snapshot has confirmed the command yet.
	CommandPending
	// CommandCompleted indicates that a fresh status snapshot confirmed the command. It is final.
	CommandCompleted
	// CommandAbandoned indicates that the command could not be sent. It is final.
	CommandAbandoned
)

// String returns string representation of the command status.
func (s CommandStatus) String() string {
	switch s {
	case CommandPending:
		return "pending"
	case CommandCompleted:
		return "completed"
	case CommandAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// IsFinal reports whether the status can no longer change.
func (s CommandStatus) IsFinal() bool {
	return s == CommandCompleted || s == CommandAbandoned
}

// RefreshResult is the outcome of a status refresh.
type RefreshResult uint8

const (
	// RefreshUnavailable indicates that no status record was ready. The cache is untouched.
	RefreshUnavailable RefreshResult = iota
	// RefreshUpdated indicates that a snapshot with a newer heartbeat replaced the cached one.
	RefreshUpdated
	// RefreshUnchanged indicates that a snapshot was received but its heartbeat did not advance.
	RefreshUnchanged
)

// String returns string representation of the refresh result.
func (r RefreshResult) String() string {
	switch r {
	case RefreshUpdated:
		return "updated"
	case RefreshUnchanged:
		return "unchanged"
	default:
		return "unavailable"
	}
}

// StatusSnapshot is the controller state as last observed.
type StatusSnapshot struct {
	// LastExecutedSeq is the sequence number of the most recently executed command.
	LastExecutedSeq uint64
	// Heartbeat increases every time the controller publishes a snapshot.
	Heartbeat uint64
	// ExecState is the execution state reported by the controller.
	ExecState record.ExecState
	// Timestamp is the publish time assigned by the controller.
	Timestamp time.Time
	// State is the opaque controller state.
	State []byte
	// ReceivedAt is the local time the snapshot was accepted by the cache.
	ReceivedAt time.Time
}

// ErrorKind distinguishes controller diagnostics from overflow markers.
type ErrorKind uint8

const (
	// ErrorDiagnostic is an error or diagnostic raised by the controller.
	ErrorDiagnostic ErrorKind = iota
	// ErrorOverflow is a marker reporting that buffered records were dropped.
	ErrorOverflow
)

// String returns string representation of the error kind.
func (k ErrorKind) String() string {
	if k == ErrorOverflow {
		return "overflow"
	}

	return "diagnostic"
}

// ErrorRecord is an error or diagnostic raised by the controller, or an overflow marker.
type ErrorRecord struct {
	Kind      ErrorKind
	Severity  record.Severity
	Timestamp time.Time
	Message   string
	// CommandSeq is the sequence number of the related command, only meaningful when HasCommandSeq is true.
	CommandSeq    uint64
	HasCommandSeq bool
	// Dropped is the number of records evicted before this overflow marker.
	Dropped uint64
}

// IsOverflow reports whether the record is an overflow marker.
func (r ErrorRecord) IsOverflow() bool {
	return r.Kind == ErrorOverflow
}
