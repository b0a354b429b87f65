package lui

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-lui/channel"
	"github.com/arloliu/go-lui/record"
)

func newTestCache(t *testing.T) (*StatusCache, *channel.PipeEnd, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	client, ctrl := channel.NewPipe(channel.KindStatus, 8)

	return NewStatusCache(client, newTestConfig(t, clock), nil), ctrl, clock
}

func TestStatusCache_NoStatusYet(t *testing.T) {
	require := require.New(t)

	cache, _, _ := newTestCache(t)

	_, err := cache.Current()
	require.ErrorIs(err, ErrNoStatusYet)
	require.ErrorIs(err, ErrPrecondition)
	require.False(cache.IsFresh(time.Hour))
	require.Equal(uint64(0), cache.Generation())
	require.True(cache.LastUpdate().IsZero())

	result, err := cache.Refresh()
	require.NoError(err)
	require.Equal(RefreshUnavailable, result)
}

func TestStatusCache_Refresh(t *testing.T) {
	require := require.New(t)

	cache, ctrl, clock := newTestCache(t)

	rec := record.EncodeStatus(3, record.StatusPayload{LastExecutedSeq: 2, ExecState: record.ExecRunning, State: []byte{1, 2}})
	rec.Timestamp = time.Unix(42, 0)
	require.NoError(ctrl.Send(rec))

	result, err := cache.Refresh()
	require.NoError(err)
	require.Equal(RefreshUpdated, result)
	require.Equal(uint64(1), cache.Generation())
	require.Equal(clock.Now(), cache.LastUpdate())

	snapshot, err := cache.Current()
	require.NoError(err)
	require.Equal(uint64(3), snapshot.Heartbeat)
	require.Equal(uint64(2), snapshot.LastExecutedSeq)
	require.Equal(record.ExecRunning, snapshot.ExecState)
	require.True(time.Unix(42, 0).Equal(snapshot.Timestamp))
	require.Equal(clock.Now(), snapshot.ReceivedAt)
	require.Equal([]byte{1, 2}, snapshot.State)

	// the returned state is a copy
	snapshot.State[0] = 9
	again, err := cache.Current()
	require.NoError(err)
	require.Equal([]byte{1, 2}, again.State)

	// same heartbeat
	publishStatus(t, ctrl, 3, 5)
	result, err = cache.Refresh()
	require.NoError(err)
	require.Equal(RefreshUnchanged, result)

	// older heartbeat
	publishStatus(t, ctrl, 1, 5)
	result, err = cache.Refresh()
	require.NoError(err)
	require.Equal(RefreshUnchanged, result)

	snapshot, err = cache.Current()
	require.NoError(err)
	require.Equal(uint64(3), snapshot.Heartbeat)
	require.Equal(uint64(2), snapshot.LastExecutedSeq)
	require.Equal(uint64(1), cache.Generation())

	result, err = cache.Refresh()
	require.NoError(err)
	require.Equal(RefreshUnavailable, result)
}

func TestStatusCache_HeartbeatNeverDecreases(t *testing.T) {
	require := require.New(t)

	cache, ctrl, _ := newTestCache(t)

	var highest uint64
	for i := 0; i < 200; i++ {
		hb := rand.Uint64N(50) + 1
		publishStatus(t, ctrl, hb, hb)
		highest = max(highest, hb)

		_, err := cache.Refresh()
		require.NoError(err)

		snapshot, err := cache.Current()
		require.NoError(err)
		require.Equal(highest, snapshot.Heartbeat)
	}
}

func TestStatusCache_IsFresh(t *testing.T) {
	require := require.New(t)

	cache, ctrl, clock := newTestCache(t)
	publishStatus(t, ctrl, 1, 0)
	_, err := cache.Refresh()
	require.NoError(err)

	require.True(cache.IsFresh(time.Second))

	clock.Advance(time.Second)
	require.True(cache.IsFresh(time.Second))

	clock.Advance(time.Millisecond)
	require.False(cache.IsFresh(time.Second))

	// an unchanged heartbeat does not refresh the snapshot age
	publishStatus(t, ctrl, 1, 0)
	result, err := cache.Refresh()
	require.NoError(err)
	require.Equal(RefreshUnchanged, result)
	require.False(cache.IsFresh(time.Second))

	publishStatus(t, ctrl, 2, 0)
	result, err = cache.Refresh()
	require.NoError(err)
	require.Equal(RefreshUpdated, result)
	require.True(cache.IsFresh(time.Second))
}

func TestStatusCache_Malformed(t *testing.T) {
	require := require.New(t)

	metrics := &SessionMetrics{}
	client, ctrl := channel.NewPipe(channel.KindStatus, 8)
	cache := NewStatusCache(client, nil, metrics)

	publishStatus(t, ctrl, 1, 1)
	_, err := cache.Refresh()
	require.NoError(err)

	require.NoError(ctrl.Send(record.New(record.StatusType, 2, []byte{0x08, 0xff})))
	result, err := cache.Refresh()
	require.ErrorIs(err, ErrMalformedRecord)
	require.False(IsFatal(err))
	require.Equal(RefreshUnavailable, result)
	require.Equal(uint64(1), metrics.MalformedRecordCount.Load())

	snapshot, err := cache.Current()
	require.NoError(err)
	require.Equal(uint64(1), snapshot.Heartbeat)
}

func TestStatusCache_Disconnected(t *testing.T) {
	require := require.New(t)

	cache, ctrl, _ := newTestCache(t)
	require.NoError(ctrl.Close())

	result, err := cache.Refresh()
	require.ErrorIs(err, ErrDisconnected)
	require.ErrorIs(err, ErrTransport)
	require.True(IsFatal(err))
	require.Equal(RefreshUnavailable, result)
}
