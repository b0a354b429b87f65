package record

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ExecState is the controller's execution state reported alongside a status snapshot.
type ExecState uint8

// Controller execution states.
const (
	ExecUnknown ExecState = iota
	ExecDone              // the last echoed command finished and the controller is idle
	ExecRunning           // the controller is executing a command
	ExecError             // the last echoed command ended in error
)

// String returns string representation of the execution state.
func (s ExecState) String() string {
	switch s {
	case ExecDone:
		return "done"
	case ExecRunning:
		return "running"
	case ExecError:
		return "error"
	default:
		return "unknown"
	}
}

// Severity classifies an error record raised by the controller.
type Severity uint8

// Error record severities, from least to most severe.
const (
	SeverityText    Severity = iota // informational operator text
	SeverityDisplay                 // message the operator must be shown
	SeverityError                   // operator error
	SeverityFatal                   // controller-side failure
)

// String returns string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityText:
		return "text"
	case SeverityDisplay:
		return "display"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// CommandPayload is the decoded payload of a command record.
type CommandPayload struct {
	Code uint32
	Body []byte
}

// StatusPayload is the decoded payload of a status record.
type StatusPayload struct {
	LastExecutedSeq uint64
	ExecState       ExecState
	State           []byte
}

// ErrorPayload is the decoded payload of an error record.
type ErrorPayload struct {
	Severity Severity
	Message  string
	// CommandSeq is the sequence number of the command the error relates to.
	// It is only meaningful when HasCommandSeq is true.
	CommandSeq    uint64
	HasCommandSeq bool
}

// HelloPayload is the decoded payload of a hello record.
type HelloPayload struct {
	Kind    uint8
	Version uint32
}

const (
	fieldCommandCode protowire.Number = 1
	fieldCommandBody protowire.Number = 2

	fieldStatusLastSeq protowire.Number = 1
	fieldStatusExec    protowire.Number = 2
	fieldStatusState   protowire.Number = 3

	fieldErrorSeverity protowire.Number = 1
	fieldErrorMessage  protowire.Number = 2
	fieldErrorSeq      protowire.Number = 3

	fieldHelloKind    protowire.Number = 1
	fieldHelloVersion protowire.Number = 2
)

// EncodeCommand creates a command record with sequence number seq.
func EncodeCommand(seq uint64, p CommandPayload) *Record {
	var b []byte
	b = protowire.AppendTag(b, fieldCommandCode, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.Code))
	if len(p.Body) > 0 {
		b = protowire.AppendTag(b, fieldCommandBody, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Body)
	}

	return New(CommandType, seq, b)
}

// DecodeCommand decodes the payload of a command record.
func DecodeCommand(rec *Record) (CommandPayload, error) {
	var p CommandPayload
	if err := expectType(rec, CommandType); err != nil {
		return p, err
	}

	err := walkFields(rec.Payload, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldCommandCode && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			p.Code = uint32(v) //nolint:gosec
			return n, nil
		case num == fieldCommandBody && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n >= 0 {
				p.Body = append([]byte(nil), v...)
			}
			return n, nil
		}

		return protowire.ConsumeFieldValue(num, typ, b), nil
	})

	return p, err
}

// EncodeStatus creates a status record carrying heartbeat in its sequence field.
func EncodeStatus(heartbeat uint64, p StatusPayload) *Record {
	var b []byte
	b = protowire.AppendTag(b, fieldStatusLastSeq, protowire.VarintType)
	b = protowire.AppendVarint(b, p.LastExecutedSeq)
	b = protowire.AppendTag(b, fieldStatusExec, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.ExecState))
	if len(p.State) > 0 {
		b = protowire.AppendTag(b, fieldStatusState, protowire.BytesType)
		b = protowire.AppendBytes(b, p.State)
	}

	return New(StatusType, heartbeat, b)
}

// DecodeStatus decodes the payload of a status record.
func DecodeStatus(rec *Record) (StatusPayload, error) {
	var p StatusPayload
	if err := expectType(rec, StatusType); err != nil {
		return p, err
	}

	err := walkFields(rec.Payload, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldStatusLastSeq && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			p.LastExecutedSeq = v
			return n, nil
		case num == fieldStatusExec && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if v > uint64(ExecError) {
				return n, fmt.Errorf("%w: exec state %d", ErrMalformedPayload, v)
			}
			p.ExecState = ExecState(v)
			return n, nil
		case num == fieldStatusState && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n >= 0 {
				p.State = append([]byte(nil), v...)
			}
			return n, nil
		}

		return protowire.ConsumeFieldValue(num, typ, b), nil
	})

	return p, err
}

// EncodeError creates an error record. The record sequence field mirrors the correlating
// command sequence, or zero when the error is not correlated with a command.
func EncodeError(p ErrorPayload) *Record {
	var b []byte
	b = protowire.AppendTag(b, fieldErrorSeverity, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.Severity))
	b = protowire.AppendTag(b, fieldErrorMessage, protowire.BytesType)
	b = protowire.AppendString(b, p.Message)

	var seq uint64
	if p.HasCommandSeq {
		seq = p.CommandSeq
		b = protowire.AppendTag(b, fieldErrorSeq, protowire.VarintType)
		b = protowire.AppendVarint(b, p.CommandSeq)
	}

	return New(ErrorType, seq, b)
}

// DecodeError decodes the payload of an error record.
func DecodeError(rec *Record) (ErrorPayload, error) {
	var p ErrorPayload
	if err := expectType(rec, ErrorType); err != nil {
		return p, err
	}

	err := walkFields(rec.Payload, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldErrorSeverity && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if v > uint64(SeverityFatal) {
				return n, fmt.Errorf("%w: severity %d", ErrMalformedPayload, v)
			}
			p.Severity = Severity(v)
			return n, nil
		case num == fieldErrorMessage && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			p.Message = v
			return n, nil
		case num == fieldErrorSeq && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			p.CommandSeq = v
			p.HasCommandSeq = true
			return n, nil
		}

		return protowire.ConsumeFieldValue(num, typ, b), nil
	})

	return p, err
}

// EncodeHello creates a hello record for channel validation.
func EncodeHello(p HelloPayload) *Record {
	var b []byte
	b = protowire.AppendTag(b, fieldHelloKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.Kind))
	b = protowire.AppendTag(b, fieldHelloVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.Version))

	return New(HelloType, 0, b)
}

// DecodeHello decodes the payload of a hello record.
func DecodeHello(rec *Record) (HelloPayload, error) {
	var p HelloPayload
	if err := expectType(rec, HelloType); err != nil {
		return p, err
	}

	err := walkFields(rec.Payload, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == fieldHelloKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			p.Kind = uint8(v) //nolint:gosec
			return n, nil
		case num == fieldHelloVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			p.Version = uint32(v) //nolint:gosec
			return n, nil
		}

		return protowire.ConsumeFieldValue(num, typ, b), nil
	})

	return p, err
}

func expectType(rec *Record, typ Type) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrUnexpectedType)
	}

	if rec.Type != typ {
		return fmt.Errorf("%w: want %s, got %s", ErrUnexpectedType, typ, rec.Type)
	}

	return nil
}

// walkFields iterates over the protobuf wire fields of b. The visit function consumes the
// field value and returns the consumed length, negative on a wire error.
func walkFields(b []byte, visit func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMalformedPayload, protowire.ParseError(n))
		}
		b = b[n:]

		n, err := visit(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMalformedPayload, protowire.ParseError(n))
		}
		b = b[n:]
	}

	return nil
}
