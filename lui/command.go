package lui

import (
	"encoding"

	"github.com/arloliu/go-lui/internal/util"
)

// Command is a caller-defined command. Code selects the controller operation and the
// marshaled bytes are carried as the opaque command body.
type Command interface {
	Code() uint32
	encoding.BinaryMarshaler
}

// RawCommand is a Command with a pre-encoded body.
type RawCommand struct {
	code uint32
	body []byte
}

var _ Command = (*RawCommand)(nil)

// NewRawCommand creates a command with the given code and body. The body is copied.
func NewRawCommand(code uint32, body []byte) *RawCommand {
	return &RawCommand{code: code, body: util.CloneSlice(body, 0)}
}

func (c *RawCommand) Code() uint32 {
	return c.code
}

func (c *RawCommand) MarshalBinary() ([]byte, error) {
	return c.body, nil
}
