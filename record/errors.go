package record

import "errors"

var (
	// ErrShortFrame indicates that a frame is shorter than the fixed header.
	ErrShortFrame = errors.New("record frame too short")

	// ErrLengthMismatch indicates that the length field does not match the frame size.
	ErrLengthMismatch = errors.New("record length field mismatch")

	// ErrUnsupportedVersion indicates a frame written with an unknown wire format version.
	ErrUnsupportedVersion = errors.New("unsupported record version")

	// ErrInvalidType indicates an undefined record type.
	ErrInvalidType = errors.New("invalid record type")

	// ErrPayloadTooLarge indicates a payload exceeding MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("record payload too large")
)

var (
	// ErrUnexpectedType indicates that a payload decoder was given a record of another type.
	ErrUnexpectedType = errors.New("unexpected record type")

	// ErrMalformedPayload indicates that a payload could not be decoded.
	ErrMalformedPayload = errors.New("malformed record payload")
)
