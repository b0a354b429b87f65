package record

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/arloliu/go-lui/internal/util"
)

// Type identifies the kind of a wire record.
type Type uint8

// Record types.
const (
	UndefinedType  Type = 0 // Undefined record type
	CommandType    Type = 1 // Command sent by the client
	CommandAckType Type = 2 // Receipt acknowledgement of a command, sent by the controller
	StatusType     Type = 3 // Status snapshot published by the controller
	ErrorType      Type = 4 // Error or diagnostic raised by the controller
	HelloType      Type = 5 // Channel validation handshake
)

var typeNameMap = map[Type]string{
	UndefinedType:  "undefined",
	CommandType:    "command",
	CommandAckType: "command.ack",
	StatusType:     "status",
	ErrorType:      "error",
	HelloType:      "hello",
}

// String returns the name of the record type.
func (t Type) String() string {
	if name, ok := typeNameMap[t]; ok {
		return name
	}

	return "undefined"
}

// IsValid returns if t is a defined record type.
func (t Type) IsValid() bool {
	return t >= CommandType && t <= HelloType
}

const (
	// Version is the wire format version written into every frame header.
	Version = 1
	// LengthFieldSize is the size of the frame length field in bytes.
	LengthFieldSize = 4
	// HeaderSize is the size of the record header in bytes.
	HeaderSize = 20
	// MinFrameSize is the minimum size of an encoded frame (length field + header).
	MinFrameSize = LengthFieldSize + HeaderSize
	// MaxPayloadSize is the hard upper bound of a record payload.
	MaxPayloadSize = 16 * 1024 * 1024
)

// Record is the unit carried by a channel.
//
// Seq holds the command sequence number for command, command ack and error records
// (zero when an error is not correlated with a command), and the heartbeat counter
// for status records.
type Record struct {
	Type      Type
	Seq       uint64
	Timestamp time.Time
	Payload   []byte
}

// New creates a record stamped with the current time.
func New(typ Type, seq uint64, payload []byte) *Record {
	return &Record{Type: typ, Seq: seq, Timestamp: time.Now(), Payload: payload}
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	clone := *r
	if r.Payload != nil {
		clone.Payload = util.CloneSlice(r.Payload, 0)
	}

	return &clone
}

// Size returns the encoded frame size of the record, including the length field.
func (r *Record) Size() int {
	return MinFrameSize + len(r.Payload)
}

// ToBytes serializes the record into a length-prefixed frame.
func (r *Record) ToBytes() []byte {
	buf := make([]byte, r.Size())
	binary.BigEndian.PutUint32(buf[0:4], uint32(HeaderSize+len(r.Payload))) //nolint:gosec
	r.putHeader(buf[LengthFieldSize:MinFrameSize])
	copy(buf[MinFrameSize:], r.Payload)

	return buf
}

// MarshalBinary implements encoding.BinaryMarshaler. The output is the length-prefixed frame.
func (r *Record) MarshalBinary() ([]byte, error) {
	if !r.Type.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, r.Type)
	}

	if len(r.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(r.Payload))
	}

	return r.ToBytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. data must be a complete length-prefixed frame.
func (r *Record) UnmarshalBinary(data []byte) error {
	rec, err := DecodeFrame(data)
	if err != nil {
		return err
	}
	*r = *rec

	return nil
}

func (r *Record) putHeader(header []byte) {
	header[0] = Version
	header[1] = byte(r.Type)
	header[2] = 0
	header[3] = 0
	binary.BigEndian.PutUint64(header[4:12], r.Seq)

	var ts int64
	if !r.Timestamp.IsZero() {
		ts = r.Timestamp.UnixNano()
	}
	binary.BigEndian.PutUint64(header[12:20], uint64(ts)) //nolint:gosec
}

// DecodeFrame decodes a complete length-prefixed frame.
func DecodeFrame(data []byte) (*Record, error) {
	if len(data) < MinFrameSize {
		return nil, fmt.Errorf("%w: frame length %d", ErrShortFrame, len(data))
	}

	msgLen := binary.BigEndian.Uint32(data)
	if int(msgLen) != len(data)-LengthFieldSize {
		return nil, fmt.Errorf("%w: length field %d, have %d", ErrLengthMismatch, msgLen, len(data)-LengthFieldSize)
	}

	return Decode(data[LengthFieldSize:])
}

// Decode decodes a record from its header and payload, without the length field.
//
// The payload of the returned record is a copy, the caller may reuse body.
func Decode(body []byte) (*Record, error) {
	if len(body) < HeaderSize {
		return nil, fmt.Errorf("%w: body length %d", ErrShortFrame, len(body))
	}

	if body[0] != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, body[0])
	}

	typ := Type(body[1])
	if !typ.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, body[1])
	}

	if len(body)-HeaderSize > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(body)-HeaderSize)
	}

	rec := &Record{
		Type: typ,
		Seq:  binary.BigEndian.Uint64(body[4:12]),
	}

	if ts := int64(binary.BigEndian.Uint64(body[12:20])); ts != 0 { //nolint:gosec
		rec.Timestamp = time.Unix(0, ts)
	}

	if len(body) > HeaderSize {
		rec.Payload = util.CloneSlice(body[HeaderSize:], 0)
	}

	return rec, nil
}

// Info returns structured record information for logging.
func Info(rec *Record, keyValues ...any) []any {
	info := []any{
		"type", rec.Type.String(),
		"seq", rec.Seq,
		"size", len(rec.Payload),
	}

	result := make([]any, 0, len(keyValues)+len(info))
	result = append(result, keyValues...)
	result = append(result, info...)

	return result
}
