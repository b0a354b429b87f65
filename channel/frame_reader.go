package channel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/arloliu/go-lui/record"
)

// errBadRecord marks a frame that was read completely but holds an undecodable record.
// The stream stays usable after such a frame.
var errBadRecord = errors.New("bad record")

// frameReader reads length-prefixed record frames:
//  1. Read the 4-byte big-endian frame length
//  2. Validate the length (at least record.HeaderSize, at most maxFrameSize)
//  3. Read the frame body
//  4. Decode the body with record.Decode
//
// frameReader is NOT goroutine-safe.
type frameReader struct {
	maxFrameSize int
	lenBuf       [record.LengthFieldSize]byte
}

// readFrame reads one frame from r. Errors other than errBadRecord leave r at an unknown
// position and the stream must be discarded.
func (fr *frameReader) readFrame(r io.Reader) (*record.Record, error) {
	if _, err := io.ReadFull(r, fr.lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read frame length: %w", err)
	}

	frameLen := binary.BigEndian.Uint32(fr.lenBuf[:])
	if frameLen < record.HeaderSize {
		return nil, fmt.Errorf("frame length %d shorter than header", frameLen)
	}

	if int64(frameLen) > int64(fr.maxFrameSize) {
		return nil, fmt.Errorf("frame length %d exceeds maximum %d", frameLen, fr.maxFrameSize)
	}

	body := make([]byte, frameLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}

	rec, err := record.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errBadRecord, err)
	}

	return rec, nil
}
