package channel

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-lui/record"
)

func newTestListener(t *testing.T, opts ...StreamOption) *Listener {
	t.Helper()

	cfg, err := NewStreamConfig(opts...)
	require.NoError(t, err)

	l, err := Listen("127.0.0.1:0", cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	return l
}

// openStreamSet opens all three kinds against l and returns the client and controller sets.
func openStreamSet(t *testing.T, l *Listener) (client Set, controller Set) {
	t.Helper()
	require := require.New(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		set Set
		err error
	}
	accepted := make(chan result, 1)
	go func() {
		set, err := l.AcceptSet(ctx)
		accepted <- result{set, err}
	}()

	opener := NewTCPOpener(l.Addr().String(), nil)
	for _, kind := range Kinds {
		ch, err := opener.Open(ctx, kind)
		require.NoError(err)
		require.Equal(kind, ch.Kind())
		client.Put(ch)
	}

	res := <-accepted
	require.NoError(res.err)
	require.True(res.set.Complete())

	t.Cleanup(func() {
		_ = client.Close()
		_ = res.set.Close()
	})

	return client, res.set
}

func TestStream_CommandRoundTrip(t *testing.T) {
	require := require.New(t)

	client, controller := openStreamSet(t, newTestListener(t))

	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(client.Command.Send(record.EncodeCommand(seq, record.CommandPayload{Code: 7, Body: []byte{byte(seq)}})))
	}

	for seq := uint64(1); seq <= 3; seq++ {
		var rec *record.Record
		require.Eventually(func() bool {
			r, ok, err := controller.Command.TryReceiveNext()
			require.NoError(err)
			rec = r
			return ok
		}, 2*time.Second, time.Millisecond)

		p, err := record.DecodeCommand(rec)
		require.NoError(err)
		require.Equal(seq, rec.Seq)
		require.Equal([]byte{byte(seq)}, p.Body)

		require.NoError(controller.Command.Send(record.New(record.CommandAckType, seq, nil)))
	}

	for seq := uint64(1); seq <= 3; seq++ {
		var rec *record.Record
		require.Eventually(func() bool {
			r, ok, err := client.Command.TryReceiveNext()
			require.NoError(err)
			rec = r
			return ok
		}, 2*time.Second, time.Millisecond)
		require.Equal(record.CommandAckType, rec.Type)
		require.Equal(seq, rec.Seq)
	}

	stream, ok := client.Command.(*Stream)
	require.True(ok)
	require.Equal(uint64(3), stream.Metrics().RecordSendCount.Load())
	require.Equal(uint64(3), stream.Metrics().RecordRecvCount.Load())
}

func TestStream_StatusLatestWins(t *testing.T) {
	require := require.New(t)

	client, controller := openStreamSet(t, newTestListener(t))

	for hb := uint64(1); hb <= 5; hb++ {
		require.NoError(controller.Status.Send(record.EncodeStatus(hb, record.StatusPayload{LastExecutedSeq: hb})))
	}

	var last uint64
	require.Eventually(func() bool {
		rec, ok, err := client.Status.TryReceiveLatest()
		require.NoError(err)
		if ok {
			require.Greater(rec.Seq, last)
			last = rec.Seq
		}
		return last == 5
	}, 2*time.Second, time.Millisecond)

	_, ok, err := client.Status.TryReceiveLatest()
	require.NoError(err)
	require.False(ok)
}

func TestStream_ErrorFIFO(t *testing.T) {
	require := require.New(t)

	client, controller := openStreamSet(t, newTestListener(t))

	messages := []string{"a", "b", "c", "d"}
	for _, msg := range messages {
		require.NoError(controller.Error.Send(record.EncodeError(record.ErrorPayload{Message: msg})))
	}

	var got []string
	require.Eventually(func() bool {
		for {
			rec, ok, err := client.Error.TryReceiveNext()
			require.NoError(err)
			if !ok {
				break
			}
			p, err := record.DecodeError(rec)
			require.NoError(err)
			got = append(got, p.Message)
		}
		return len(got) == len(messages)
	}, 2*time.Second, time.Millisecond)

	require.Equal(messages, got)
}

func TestStream_Disconnect(t *testing.T) {
	require := require.New(t)

	client, controller := openStreamSet(t, newTestListener(t))

	require.NoError(controller.Error.Send(record.EncodeError(record.ErrorPayload{Message: "last words"})))
	require.Eventually(func() bool {
		return controller.Error.(*Stream).Metrics().RecordSendCount.Load() == 1
	}, 2*time.Second, time.Millisecond)
	require.NoError(controller.Error.Close())

	require.Eventually(func() bool {
		return client.Error.(*Stream).IsDisconnected()
	}, 2*time.Second, time.Millisecond)

	// the record received before the disconnect is still delivered
	rec, ok, err := client.Error.TryReceiveNext()
	require.NoError(err)
	require.True(ok)
	require.Equal(record.ErrorType, rec.Type)

	_, ok, err = client.Error.TryReceiveNext()
	require.False(ok)
	require.ErrorIs(err, ErrDisconnected)

	require.ErrorIs(client.Error.Send(record.New(record.ErrorType, 0, nil)), ErrDisconnected)
}

func TestStream_SendTooLarge(t *testing.T) {
	require := require.New(t)

	cfg, err := NewStreamConfig(WithMaxFrameSize(record.HeaderSize + 4))
	require.NoError(err)

	l, err := Listen("127.0.0.1:0", cfg)
	require.NoError(err)
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		s, err := l.Accept(ctx)
		if err == nil {
			<-ctx.Done()
			_ = s.Close()
		}
	}()

	ch, err := NewTCPOpener(l.Addr().String(), cfg).Open(ctx, KindCommand)
	require.NoError(err)
	defer ch.Close()

	require.ErrorIs(ch.Send(record.New(record.CommandType, 1, make([]byte, 5))), record.ErrPayloadTooLarge)
	require.NoError(ch.Send(record.New(record.CommandType, 1, make([]byte, 4))))
	require.ErrorIs(ch.Send(nil), ErrNilRecord)
}

func TestStream_HandshakeFailure(t *testing.T) {
	tests := []struct {
		name  string
		reply func(conn net.Conn)
	}{
		{
			name:  "No echo",
			reply: func(conn net.Conn) {},
		},
		{
			name: "Wrong kind",
			reply: func(conn net.Conn) {
				rec := record.EncodeHello(record.HelloPayload{Kind: uint8(KindError), Version: record.Version})
				_, _ = conn.Write(rec.ToBytes())
			},
		},
		{
			name: "Wrong version",
			reply: func(conn net.Conn) {
				rec := record.EncodeHello(record.HelloPayload{Kind: uint8(KindCommand), Version: 99})
				_, _ = conn.Write(rec.ToBytes())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			ln, err := net.Listen("tcp", "127.0.0.1:0")
			require.NoError(err)
			defer ln.Close()

			go func() {
				conn, err := ln.Accept()
				if err != nil {
					return
				}
				defer conn.Close()

				fr := frameReader{maxFrameSize: 1024}
				if _, err := fr.readFrame(conn); err != nil {
					return
				}
				tt.reply(conn)
				time.Sleep(200 * time.Millisecond)
			}()

			cfg, err := NewStreamConfig(WithHelloTimeout(50 * time.Millisecond))
			require.NoError(err)

			_, err = NewTCPOpener(ln.Addr().String(), cfg).Open(context.Background(), KindCommand)
			require.ErrorIs(err, ErrHandshake)
		})
	}
}

func TestTCPOpener_InvalidKind(t *testing.T) {
	_, err := NewTCPOpener("127.0.0.1:1", nil).Open(context.Background(), Kind(0))
	require.ErrorIs(t, err, ErrInvalidKind)
}

func TestListener_AcceptCanceled(t *testing.T) {
	require := require.New(t)

	l := newTestListener(t, WithAcceptTimeout(10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := l.Accept(ctx)
	require.ErrorIs(err, context.DeadlineExceeded)
}

func TestFrameReader(t *testing.T) {
	require := require.New(t)

	fr := frameReader{maxFrameSize: 64}

	rec, err := fr.readFrame(bytes.NewReader(record.New(record.StatusType, 3, []byte{1}).ToBytes()))
	require.NoError(err)
	require.Equal(uint64(3), rec.Seq)

	// undecodable record, framing intact
	bad := record.New(record.StatusType, 3, nil).ToBytes()
	bad[5] = 0xee
	_, err = fr.readFrame(bytes.NewReader(bad))
	require.ErrorIs(err, errBadRecord)
	require.ErrorIs(err, record.ErrInvalidType)

	short := make([]byte, 4)
	binary.BigEndian.PutUint32(short, 3)
	_, err = fr.readFrame(bytes.NewReader(short))
	require.Error(err)
	require.NotErrorIs(err, errBadRecord)

	huge := make([]byte, 4)
	binary.BigEndian.PutUint32(huge, 65)
	_, err = fr.readFrame(bytes.NewReader(huge))
	require.Error(err)
	require.NotErrorIs(err, errBadRecord)

	_, err = fr.readFrame(bytes.NewReader(nil))
	require.Error(err)
}

func TestStreamConfig(t *testing.T) {
	require := require.New(t)

	cfg, err := NewStreamConfig()
	require.NoError(err)
	require.Equal(3*time.Second, cfg.DialTimeout())
	require.Equal(3*time.Second, cfg.HelloTimeout())
	require.Equal(time.Second, cfg.WriteTimeout())
	require.Equal(200*time.Millisecond, cfg.AcceptTimeout())
	require.Equal(64, cfg.SendQueueSize())
	require.Equal(1024*1024, cfg.MaxFrameSize())

	tests := []struct {
		name string
		opt  StreamOption
	}{
		{"Dial timeout", WithDialTimeout(time.Microsecond)},
		{"Hello timeout", WithHelloTimeout(2 * time.Minute)},
		{"Write timeout", WithWriteTimeout(0)},
		{"Accept timeout", WithAcceptTimeout(time.Minute)},
		{"Send queue size", WithSendQueueSize(0)},
		{"Max frame size", WithMaxFrameSize(record.HeaderSize - 1)},
		{"Logger", WithStreamLogger(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStreamConfig(tt.opt)
			require.Error(t, err)
		})
	}

	require.ErrorIs(WithSendQueueSize(1).apply(nil), ErrStreamConfigNil)
	require.ErrorIs(WithDialTimeout(time.Second).apply(nil), ErrStreamConfigNil)
}
