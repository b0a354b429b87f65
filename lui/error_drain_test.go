package lui

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-lui/channel"
	"github.com/arloliu/go-lui/record"
)

func newTestDrain(t *testing.T, capacity int) (*ErrorDrain, *channel.PipeEnd, *SessionMetrics) {
	t.Helper()

	metrics := &SessionMetrics{}
	client, ctrl := channel.NewPipe(channel.KindError, 64)
	cfg := newTestConfig(t, newFakeClock(), WithErrorBufferCapacity(capacity))

	return NewErrorDrain(client, cfg, metrics), ctrl, metrics
}

func raise(t *testing.T, ch channel.Channel, msg string) {
	t.Helper()
	require.NoError(t, ch.Send(record.EncodeError(record.ErrorPayload{Severity: record.SeverityText, Message: msg})))
}

func messages(recs []ErrorRecord) []string {
	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Message)
	}

	return out
}

func TestErrorDrain_Order(t *testing.T) {
	require := require.New(t)

	drain, ctrl, metrics := newTestDrain(t, 8)

	raise(t, ctrl, "a")
	require.NoError(ctrl.Send(record.EncodeError(record.ErrorPayload{
		Severity:      record.SeverityFatal,
		Message:       "b",
		CommandSeq:    7,
		HasCommandSeq: true,
	})))
	raise(t, ctrl, "c")

	n, err := drain.Fill()
	require.NoError(err)
	require.Equal(3, n)
	require.Equal(3, drain.Pending())
	require.Equal(uint64(3), metrics.ErrorRecvCount.Load())

	recs := collect(drain)
	require.Equal([]string{"a", "b", "c"}, messages(recs))
	require.Equal(ErrorDiagnostic, recs[1].Kind)
	require.Equal(record.SeverityFatal, recs[1].Severity)
	require.True(recs[1].HasCommandSeq)
	require.Equal(uint64(7), recs[1].CommandSeq)
	require.False(recs[0].HasCommandSeq)

	require.Empty(collect(drain))
	require.Equal(0, drain.Pending())
}

func TestErrorDrain_Overflow(t *testing.T) {
	require := require.New(t)

	drain, ctrl, metrics := newTestDrain(t, 2)

	for _, msg := range []string{"1", "2", "3", "4", "5"} {
		raise(t, ctrl, msg)
	}

	_, err := drain.Fill()
	require.NoError(err)
	require.Equal(2, drain.Pending())

	recs := collect(drain)
	require.Len(recs, 3)
	require.Equal("4", recs[0].Message)
	require.Equal("5", recs[1].Message)

	marker := recs[2]
	require.True(marker.IsOverflow())
	require.Equal(ErrorOverflow, marker.Kind)
	require.Equal(uint64(3), marker.Dropped)

	require.Equal(uint64(3), drain.Dropped())
	require.Equal(uint64(3), metrics.ErrorDropCount.Load())

	// the marker is reported once
	require.Empty(collect(drain))

	raise(t, ctrl, "6")
	_, err = drain.Fill()
	require.NoError(err)
	require.Equal([]string{"6"}, messages(collect(drain)))
}

func TestErrorDrain_EarlyStop(t *testing.T) {
	require := require.New(t)

	drain, ctrl, _ := newTestDrain(t, 2)
	for _, msg := range []string{"1", "2", "3"} {
		raise(t, ctrl, msg)
	}
	_, err := drain.Fill()
	require.NoError(err)

	for rec := range drain.Pull() {
		require.Equal("2", rec.Message)
		break
	}
	require.Equal(1, drain.Pending())

	recs := collect(drain)
	require.Len(recs, 2)
	require.Equal("3", recs[0].Message)
	require.True(recs[1].IsOverflow())
	require.Equal(uint64(1), recs[1].Dropped)
}

func TestErrorDrain_Malformed(t *testing.T) {
	require := require.New(t)

	drain, ctrl, metrics := newTestDrain(t, 4)

	raise(t, ctrl, "ok")
	// severity out of range
	require.NoError(ctrl.Send(record.New(record.ErrorType, 0, []byte{0x08, 0x09})))
	raise(t, ctrl, "still ok")

	n, err := drain.Fill()
	require.NoError(err)
	require.Equal(2, n)
	require.Equal(uint64(1), metrics.MalformedRecordCount.Load())
	require.Equal([]string{"ok", "still ok"}, messages(collect(drain)))
}

func TestErrorDrain_Disconnected(t *testing.T) {
	require := require.New(t)

	drain, ctrl, _ := newTestDrain(t, 4)
	raise(t, ctrl, "last words")
	require.NoError(ctrl.Close())

	n, err := drain.Fill()
	require.ErrorIs(err, ErrDisconnected)
	require.Equal(1, n)

	// records received before the failure stay available
	require.Equal([]string{"last words"}, messages(collect(drain)))
}
