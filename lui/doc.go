// Package lui implements the client side of the control protocol of a real-time machine controller.
//
// A Session talks to one controller over three channels (see package channel) and combines
// three independent components:
//
//   - Dispatcher submits sequence-numbered commands and decides their completion.
//   - StatusCache keeps the freshest status snapshot and its heartbeat.
//   - ErrorDrain buffers controller error records for the caller in arrival order.
//
// The session is a poller. Submit, Poll, Refresh and PullErrors never block, only
// WaitUntilComplete suspends its caller, by running Refresh and Poll on the configured
// poll interval until the command completes or the wait times out.
//
// A command is reported complete only when a status snapshot received after the command was
// sent is fresh and reports a last executed sequence number at least as large as the
// command's. A stale snapshot never confirms a command.
//
// Basic usage:
//
//	cfg, _ := lui.NewSessionConfig(lui.WithFreshnessWindow(500 * time.Millisecond))
//	sess, _ := lui.NewSession(cfg)
//	if err := sess.Attach(ctx, channel.NewTCPOpener("127.0.0.1:5555", nil)); err != nil {
//	    // handle attach error
//	}
//	defer sess.Detach()
//
//	seq, err := sess.Submit(lui.NewRawCommand(1, []byte("G0 X10")))
//	if err != nil {
//	    // handle error
//	}
//	status, err := sess.WaitUntilComplete(ctx, seq, 5*time.Second)
//
//	errs, _ := sess.PullErrors()
//	for rec := range errs {
//	    if rec.IsOverflow() {
//	        // rec.Dropped records were lost
//	    }
//	}
//
// Errors wrap one of ErrTransport, ErrTimeout and ErrPrecondition. A transport error caused by a
// disconnected channel detaches the session.
package lui
