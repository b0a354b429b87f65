package channel

import (
	"os"
	"testing"

	"github.com/arloliu/go-lui/logger"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.SetLevelFromEnv("LOG_LEVEL")

	os.Exit(m.Run())
}

func TestKind(t *testing.T) {
	require := require.New(t)

	require.Equal("command", KindCommand.String())
	require.Equal("status", KindStatus.String())
	require.Equal("error", KindError.String())
	require.Equal("unknown", Kind(0).String())

	require.True(KindError.IsValid())
	require.False(Kind(4).IsValid())

	require.True(KindStatus.LatestWins())
	require.False(KindCommand.LatestWins())
	require.False(KindError.LatestWins())
}

func TestSet(t *testing.T) {
	require := require.New(t)

	cmd, _ := NewPipe(KindCommand, 4)
	status, _ := NewPipe(KindStatus, 4)

	var set Set
	set.Put(cmd)
	require.False(set.Complete())
	set.Put(status)
	require.Same(cmd, set.Get(KindCommand))
	require.Nil(set.Get(KindError))
	require.Nil(set.Get(Kind(9)))

	errCh, _ := NewPipe(KindError, 4)
	set.Put(errCh)
	require.True(set.Complete())

	require.NoError(set.Close())
	require.ErrorIs(cmd.Send(nil), ErrNilRecord)
	_, _, err := errCh.TryReceiveNext()
	require.ErrorIs(err, ErrDisconnected)
}
