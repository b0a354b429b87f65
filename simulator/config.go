package simulator

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-lui/logger"
	"github.com/arloliu/go-lui/record"
)

// ErrConfigNil indicates that an option was applied to a nil config.
var ErrConfigNil = errors.New("simulator config is nil")

type config struct {
	// execTicks is the number of steps a command takes to execute. Defaults to 1.
	execTicks int
	// publishInterval is the minimum interval between status publishes.
	// Zero publishes on every step. Defaults to 0.
	publishInterval time.Duration
	// failures maps command codes to the error message raised when a command with that code executes.
	failures map[uint32]string
	logger   logger.Logger
	now      func() time.Time
}

// Option represents a functional option for configuring a Controller.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(cfg *config) error {
	if cfg == nil {
		return ErrConfigNil
	}

	return f(cfg)
}

// WithExecTicks sets the number of steps a command takes to execute. It should be between 1 and 1000000.
//
// The default value is 1, a command completes in the step that received it.
func WithExecTicks(n int) Option {
	return optFunc(func(cfg *config) error {
		if n < 1 || n > 1_000_000 {
			return errors.New("exec ticks out of range [1, 1000000]")
		}
		cfg.execTicks = n

		return nil
	})
}

// WithPublishInterval sets the minimum interval between status publishes. It should be between 0 and 1 minute.
//
// The default value is 0, status is published on every step.
func WithPublishInterval(d time.Duration) Option {
	return optFunc(func(cfg *config) error {
		if d < 0 || d > time.Minute {
			return fmt.Errorf("publish interval out of range [0, %s]", time.Minute)
		}
		cfg.publishInterval = d

		return nil
	})
}

// WithFailingCode makes commands with the given code end in error. When such a command
// executes, an error record with SeverityError, message and the command sequence number is raised.
func WithFailingCode(code uint32, message string) Option {
	return optFunc(func(cfg *config) error {
		cfg.failures[code] = message
		return nil
	})
}

// WithLogger sets the logger of the controller.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *config) error {
		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithClock sets the clock used for publish intervals and status timestamps.
func WithClock(now func() time.Time) Option {
	return optFunc(func(cfg *config) error {
		if now == nil {
			return errors.New("clock is nil")
		}
		cfg.now = now

		return nil
	})
}

func newConfig(opts ...Option) (*config, error) {
	cfg := &config{
		execTicks: 1,
		failures:  make(map[uint32]string),
		logger:    logger.GetLogger(),
		now:       time.Now,
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// failure returns the error raised by executing a command with code, if any.
func (cfg *config) failure(code uint32) (record.ErrorPayload, bool) {
	msg, ok := cfg.failures[code]
	if !ok {
		return record.ErrorPayload{}, false
	}

	return record.ErrorPayload{Severity: record.SeverityError, Message: msg}, true
}
