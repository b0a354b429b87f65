// Package record defines the wire record exchanged between a client and a machine controller,
// and the framing codec used by stream transports.
//
// Every record carries the same four fields:
//   - Type: the record type (command, command ack, status, error, hello).
//   - Seq: the command sequence number, or the heartbeat counter for status records.
//   - Timestamp: the time assigned by the sender.
//   - Payload: type-specific bytes, opaque to the transport.
//
// Frame layout:
//
//	+----------------+---------+------+----------+---------+-----------+---------+
//	| length (4, BE) | version | type | reserved | seq (8) | ts ns (8) | payload |
//	+----------------+---------+------+----------+---------+-----------+---------+
//
// The length field counts the header and the payload, not itself.
//
// Payloads of command, status, error and hello records are encoded in protobuf wire format
// with the helpers in this package (EncodeCommand/DecodeCommand, EncodeStatus/DecodeStatus,
// EncodeError/DecodeError, EncodeHello/DecodeHello).
package record
