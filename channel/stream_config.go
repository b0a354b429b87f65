package channel

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-lui/logger"
	"github.com/arloliu/go-lui/record"
)

// ErrStreamConfigNil indicates that a stream option was applied to a nil config.
var ErrStreamConfigNil = errors.New("stream config is nil")

// StreamConfig represents the configuration parameters of TCP stream channels.
type StreamConfig struct {
	// dialTimeout defines the timeout for establishing the TCP connection. It should be between 10ms and 60 seconds.
	// Defaults to 3 seconds.
	dialTimeout time.Duration

	// helloTimeout defines how long to wait for the hello exchange after the TCP connection is established.
	// It should be between 10ms and 60 seconds.
	// Defaults to 3 seconds.
	helloTimeout time.Duration

	// writeTimeout defines the write deadline of one frame. It should be between 1ms and 60 seconds.
	// Defaults to 1 second.
	writeTimeout time.Duration

	// acceptTimeout defines the timeout for each iteration of accepting a connection, which bounds
	// how quickly Listener.Accept observes context cancellation. It should be between 10ms and 5 seconds.
	// Defaults to 200 milliseconds.
	acceptTimeout time.Duration

	// sendQueueSize defines the size of the sender queue, which buffers records before the writer
	// task writes them to the connection. Send returns ErrWouldBlock when it is full.
	//
	// Defaults to 64.
	sendQueueSize int

	// maxFrameSize defines the largest accepted frame, excluding the length field.
	// Defaults to 1 MiB.
	maxFrameSize int

	logger logger.Logger
}

// NewStreamConfig creates a stream configuration with default values and applies opts.
func NewStreamConfig(opts ...StreamOption) (*StreamConfig, error) {
	cfg := &StreamConfig{
		dialTimeout:   3 * time.Second,
		helloTimeout:  3 * time.Second,
		writeTimeout:  time.Second,
		acceptTimeout: 200 * time.Millisecond,
		sendQueueSize: 64,
		maxFrameSize:  1024 * 1024,
		logger:        logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

func defaultStreamConfig() *StreamConfig {
	cfg, _ := NewStreamConfig()
	return cfg
}

func (cfg *StreamConfig) DialTimeout() time.Duration   { return cfg.dialTimeout }
func (cfg *StreamConfig) HelloTimeout() time.Duration  { return cfg.helloTimeout }
func (cfg *StreamConfig) WriteTimeout() time.Duration  { return cfg.writeTimeout }
func (cfg *StreamConfig) AcceptTimeout() time.Duration { return cfg.acceptTimeout }
func (cfg *StreamConfig) SendQueueSize() int           { return cfg.sendQueueSize }
func (cfg *StreamConfig) MaxFrameSize() int            { return cfg.maxFrameSize }

// StreamOption represents a functional option for configuring a StreamConfig.
type StreamOption interface {
	apply(*StreamConfig) error
}

type streamOptFunc struct {
	name      string
	applyFunc func(*StreamConfig) error
}

func (o *streamOptFunc) apply(cfg *StreamConfig) error { return o.applyFunc(cfg) }

func newStreamOptFunc(name string, f func(*StreamConfig) error) *streamOptFunc {
	return &streamOptFunc{name: name, applyFunc: f}
}

func durationOption(name string, lo, hi time.Duration, field func(*StreamConfig) *time.Duration, val time.Duration) StreamOption {
	return newStreamOptFunc(name, func(cfg *StreamConfig) error {
		if cfg == nil {
			return ErrStreamConfigNil
		}

		if val < lo || val > hi {
			return fmt.Errorf("%s out of range [%s, %s]", name, lo, hi)
		}
		*field(cfg) = val

		return nil
	})
}

// WithDialTimeout sets the TCP dial timeout.
//
// The default value is 3 seconds.
func WithDialTimeout(val time.Duration) StreamOption {
	return durationOption("dial timeout", 10*time.Millisecond, time.Minute,
		func(cfg *StreamConfig) *time.Duration { return &cfg.dialTimeout }, val)
}

// WithHelloTimeout sets the hello handshake timeout.
//
// The default value is 3 seconds.
func WithHelloTimeout(val time.Duration) StreamOption {
	return durationOption("hello timeout", 10*time.Millisecond, time.Minute,
		func(cfg *StreamConfig) *time.Duration { return &cfg.helloTimeout }, val)
}

// WithWriteTimeout sets the write deadline of one frame. A write exceeding it disconnects the stream.
//
// The default value is 1 second.
func WithWriteTimeout(val time.Duration) StreamOption {
	return durationOption("write timeout", time.Millisecond, time.Minute,
		func(cfg *StreamConfig) *time.Duration { return &cfg.writeTimeout }, val)
}

// WithAcceptTimeout sets the timeout of each accept iteration of a Listener.
//
// The default value is 200 milliseconds.
func WithAcceptTimeout(val time.Duration) StreamOption {
	return durationOption("accept timeout", 10*time.Millisecond, 5*time.Second,
		func(cfg *StreamConfig) *time.Duration { return &cfg.acceptTimeout }, val)
}

// WithSendQueueSize sets the size of the sender queue. It should be between 1 and 65536.
//
// The default value is 64.
func WithSendQueueSize(size int) StreamOption {
	return newStreamOptFunc("WithSendQueueSize", func(cfg *StreamConfig) error {
		if cfg == nil {
			return ErrStreamConfigNil
		}

		if size < 1 || size > 65536 {
			return errors.New("send queue size out of range [1, 65536]")
		}
		cfg.sendQueueSize = size

		return nil
	})
}

// WithMaxFrameSize sets the largest accepted frame size, excluding the length field.
// It should be between record.HeaderSize and record.HeaderSize+record.MaxPayloadSize.
//
// The default value is 1 MiB.
func WithMaxFrameSize(size int) StreamOption {
	return newStreamOptFunc("WithMaxFrameSize", func(cfg *StreamConfig) error {
		if cfg == nil {
			return ErrStreamConfigNil
		}

		if size < record.HeaderSize || size > record.HeaderSize+record.MaxPayloadSize {
			return fmt.Errorf("max frame size out of range [%d, %d]", record.HeaderSize, record.HeaderSize+record.MaxPayloadSize)
		}
		cfg.maxFrameSize = size

		return nil
	})
}

// WithStreamLogger sets the logger of stream channels.
func WithStreamLogger(l logger.Logger) StreamOption {
	return newStreamOptFunc("WithStreamLogger", func(cfg *StreamConfig) error {
		if cfg == nil {
			return ErrStreamConfigNil
		}

		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}
