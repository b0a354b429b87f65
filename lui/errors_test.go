package lui

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-lui/channel"
)

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transport bool
		fatal     bool
	}{
		{"Nil", nil, false, false},
		{"Disconnected", ErrDisconnected, true, true},
		{"Wrapped disconnected", fmt.Errorf("refresh: %w", ErrDisconnected), true, true},
		{"Channel disconnected", channel.ErrDisconnected, false, true},
		{"Would block", ErrSendWouldBlock, true, false},
		{"Queue full", ErrCommandQueueFull, true, false},
		{"Malformed record", ErrMalformedRecord, true, false},
		{"Abandoned on would block", errors.Join(ErrCommandAbandoned, ErrSendWouldBlock), true, false},
		{"Abandoned on disconnect", errors.Join(ErrCommandAbandoned, ErrDisconnected), true, true},
		{"Timeout", ErrTimeout, false, false},
		{"Not attached", ErrNotAttached, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.transport, errors.Is(tt.err, ErrTransport))
			require.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}

func TestChannelError(t *testing.T) {
	require := require.New(t)

	require.NoError(channelError(nil))
	require.ErrorIs(channelError(channel.ErrWouldBlock), ErrSendWouldBlock)
	require.ErrorIs(channelError(fmt.Errorf("send: %w", channel.ErrDisconnected)), ErrDisconnected)

	other := errors.New("frame too large")
	err := channelError(other)
	require.ErrorIs(err, ErrTransport)
	require.ErrorIs(err, other)
	require.False(IsFatal(err))
}
