// Package channel provides the typed record transport a control session is layered on.
//
// A control session uses three channels, one per Kind:
//
//   - KindCommand: duplex. The client sends command records, the controller answers with
//     command ack records. Both directions are strict FIFO.
//   - KindStatus: the controller publishes status snapshots. Delivery is latest-wins,
//     older snapshots are superseded and never queued.
//   - KindError: the controller raises error records. Delivery is strict FIFO and nothing
//     is dropped by the transport itself.
//
// No Channel operation blocks. Send returns ErrWouldBlock on backpressure and both receive
// methods report whether a record was ready. A broken transport is reported as ErrDisconnected
// once all records received before the failure have been consumed.
//
// Two implementations are provided:
//
//   - Pipe and Loopback: in-process channels backed by bounded lock-free SPSC queues.
//   - Stream, TCPOpener and Listener: length-prefixed record frames over one TCP connection
//     per kind, with a hello handshake validating kind and wire version on open.
package channel
