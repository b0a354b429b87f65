// Package simulator implements the controller side of the control protocol for tests,
// examples and bench setups.
//
// A Controller drains commands from the command channel in FIFO order, acknowledges each one,
// executes them one at a time, publishes status snapshots with an increasing heartbeat and
// raises error records. It can be stepped deterministically with Step or driven by Run.
package simulator
