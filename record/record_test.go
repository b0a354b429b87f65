package record

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecord_ToBytes(t *testing.T) {
	require := require.New(t)

	ts := time.Unix(1700000000, 123)
	rec := &Record{Type: StatusType, Seq: 0x0102030405060708, Timestamp: ts, Payload: []byte{0xaa, 0xbb}}

	buf := rec.ToBytes()
	require.Len(buf, MinFrameSize+2)
	require.Equal(uint32(HeaderSize+2), binary.BigEndian.Uint32(buf[:4]))
	require.Equal(byte(Version), buf[4])
	require.Equal(byte(StatusType), buf[5])
	require.Equal([]byte{1, 2, 3, 4, 5, 6, 7, 8}, buf[8:16])
	require.Equal([]byte{0xaa, 0xbb}, buf[24:])

	decoded, err := DecodeFrame(buf)
	require.NoError(err)
	require.Equal(rec.Type, decoded.Type)
	require.Equal(rec.Seq, decoded.Seq)
	require.True(ts.Equal(decoded.Timestamp))
	require.Equal(rec.Payload, decoded.Payload)
}

func TestRecord_ZeroTimestamp(t *testing.T) {
	require := require.New(t)

	rec := &Record{Type: CommandAckType, Seq: 7}
	decoded, err := DecodeFrame(rec.ToBytes())
	require.NoError(err)
	require.True(decoded.Timestamp.IsZero())
	require.Nil(decoded.Payload)
}

func TestRecord_MarshalBinary(t *testing.T) {
	require := require.New(t)

	_, err := (&Record{Type: UndefinedType}).MarshalBinary()
	require.ErrorIs(err, ErrInvalidType)

	rec := New(ErrorType, 3, []byte("x"))
	data, err := rec.MarshalBinary()
	require.NoError(err)

	var out Record
	require.NoError(out.UnmarshalBinary(data))
	require.Equal(ErrorType, out.Type)
	require.Equal(uint64(3), out.Seq)
	require.Equal([]byte("x"), out.Payload)
}

func TestDecode_Malformed(t *testing.T) {
	valid := (&Record{Type: CommandType, Seq: 1}).ToBytes()

	badVersion := append([]byte(nil), valid...)
	badVersion[4] = 9

	badType := append([]byte(nil), valid...)
	badType[5] = 42

	badLength := append([]byte(nil), valid...)
	binary.BigEndian.PutUint32(badLength, 99)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "Empty", data: nil, wantErr: ErrShortFrame},
		{name: "Short", data: valid[:10], wantErr: ErrShortFrame},
		{name: "Bad version", data: badVersion, wantErr: ErrUnsupportedVersion},
		{name: "Bad type", data: badType, wantErr: ErrInvalidType},
		{name: "Length mismatch", data: badLength, wantErr: ErrLengthMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFrame(tt.data)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRecord_Clone(t *testing.T) {
	require := require.New(t)

	rec := New(CommandType, 1, []byte{1, 2, 3})
	clone := rec.Clone()
	clone.Payload[0] = 9

	require.Equal(byte(1), rec.Payload[0])
	require.Nil((*Record)(nil).Clone())
}

func TestType_String(t *testing.T) {
	require := require.New(t)

	require.Equal("command", CommandType.String())
	require.Equal("command.ack", CommandAckType.String())
	require.Equal("status", StatusType.String())
	require.Equal("error", ErrorType.String())
	require.Equal("hello", HelloType.String())
	require.Equal("undefined", Type(77).String())
}

func TestInfo(t *testing.T) {
	info := Info(New(StatusType, 5, []byte{1}), "method", "test")
	require.Equal(t, []any{"method", "test", "type", "status", "seq", uint64(5), "size", 1}, info)
}
