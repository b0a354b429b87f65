package lui

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-lui/logger"
)

// Configuration limits.
const (
	MinCommandQueueCapacity = 1
	MaxCommandQueueCapacity = 4096
	MinErrorBufferCapacity  = 1
	MaxErrorBufferCapacity  = 65536
	MinFreshnessWindow      = time.Millisecond
	MaxFreshnessWindow      = 10 * time.Minute
	MinPollInterval         = 100 * time.Microsecond
	MaxPollInterval         = 10 * time.Second
)

// SessionConfig represents the configuration parameters of a control session.
type SessionConfig struct {
	// commandQueueCapacity bounds the number of outstanding commands, sent but not yet confirmed.
	// It should be between 1 and 4096.
	// Defaults to 32.
	commandQueueCapacity int

	// errorBufferCapacity bounds the number of buffered error records. The oldest record is
	// evicted when the buffer is full. It should be between 1 and 65536.
	// Defaults to 64.
	errorBufferCapacity int

	// freshnessWindow is the maximum age of a status snapshot that may confirm a command.
	// It should be between 1ms and 10 minutes.
	// Defaults to 1 second.
	freshnessWindow time.Duration

	// pollInterval is the interval between refresh and poll rounds of WaitUntilComplete.
	// It should be between 100µs and 10 seconds, and not longer than freshnessWindow.
	// Defaults to 10 milliseconds.
	pollInterval time.Duration

	// logLevel, when set, is applied once all options are applied. A logger given with
	// WithLogger gets the level, otherwise a dedicated logger is created with it.
	logLevel *logger.Level

	logger    logger.Logger
	ownLogger bool // logger was given with WithLogger
	now    func() time.Time
}

// NewSessionConfig creates a session configuration with default values and applies opts.
//
// Returns the configuration and an error if any option is invalid.
func NewSessionConfig(opts ...SessionOption) (*SessionConfig, error) {
	cfg := defaultSessionConfig()

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	if cfg.logLevel != nil {
		if cfg.ownLogger {
			cfg.logger.SetLevel(*cfg.logLevel)
		} else {
			// the default logger is shared by the whole process
			cfg.logger = logger.NewSlog(*cfg.logLevel, false)
		}
	}

	return cfg, nil
}

func defaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		commandQueueCapacity: 32,
		errorBufferCapacity:  64,
		freshnessWindow:      time.Second,
		pollInterval:         10 * time.Millisecond,
		logger:               logger.GetLogger(),
		now:                  time.Now,
	}
}

func (cfg *SessionConfig) validate() error {
	if cfg.pollInterval > cfg.freshnessWindow {
		return fmt.Errorf("poll interval %s exceeds freshness window %s", cfg.pollInterval, cfg.freshnessWindow)
	}

	return nil
}

func (cfg *SessionConfig) CommandQueueCapacity() int      { return cfg.commandQueueCapacity }
func (cfg *SessionConfig) ErrorBufferCapacity() int       { return cfg.errorBufferCapacity }
func (cfg *SessionConfig) FreshnessWindow() time.Duration { return cfg.freshnessWindow }
func (cfg *SessionConfig) PollInterval() time.Duration    { return cfg.pollInterval }
func (cfg *SessionConfig) Logger() logger.Logger          { return cfg.logger }

// sessionConfigFile is the YAML document read by LoadSessionConfig.
type sessionConfigFile struct {
	CommandQueueCapacity *int    `yaml:"commandQueueCapacity"`
	ErrorBufferCapacity  *int    `yaml:"errorBufferCapacity"`
	FreshnessWindow      *string `yaml:"freshnessWindow"`
	PollInterval         *string `yaml:"pollInterval"`
	LogLevel             *string `yaml:"logLevel"`
}

// LoadSessionConfig creates a session configuration from a YAML document.
//
// Keys absent from the document keep their default values. Durations use time.ParseDuration
// syntax, e.g. "250ms". opts are applied after the document and take precedence.
// logLevel is applied to the logger given with WithLogger. Without one, the session logs
// through a dedicated logger at that level and the process default logger is left untouched.
//
// Example:
//
//	commandQueueCapacity: 16
//	errorBufferCapacity: 128
//	freshnessWindow: 500ms
//	pollInterval: 5ms
//	logLevel: debug
func LoadSessionConfig(data []byte, opts ...SessionOption) (*SessionConfig, error) {
	var file sessionConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse session config: %w", err)
	}

	var fileOpts []SessionOption
	if file.CommandQueueCapacity != nil {
		fileOpts = append(fileOpts, WithCommandQueueCapacity(*file.CommandQueueCapacity))
	}

	if file.ErrorBufferCapacity != nil {
		fileOpts = append(fileOpts, WithErrorBufferCapacity(*file.ErrorBufferCapacity))
	}

	if file.FreshnessWindow != nil {
		d, err := time.ParseDuration(*file.FreshnessWindow)
		if err != nil {
			return nil, fmt.Errorf("parse freshnessWindow: %w", err)
		}
		fileOpts = append(fileOpts, WithFreshnessWindow(d))
	}

	if file.PollInterval != nil {
		d, err := time.ParseDuration(*file.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("parse pollInterval: %w", err)
		}
		fileOpts = append(fileOpts, WithPollInterval(d))
	}

	if file.LogLevel != nil {
		level, ok := logger.ParseLevel(*file.LogLevel)
		if !ok {
			return nil, fmt.Errorf("unknown logLevel %q", *file.LogLevel)
		}
		fileOpts = append(fileOpts, withLogLevel(level))
	}

	return NewSessionConfig(append(fileOpts, opts...)...)
}

// SessionOption represents a functional option for configuring a SessionConfig.
type SessionOption interface {
	apply(*SessionConfig) error
}

type sessionOptFunc struct {
	name      string
	applyFunc func(*SessionConfig) error
}

func (o *sessionOptFunc) apply(cfg *SessionConfig) error { return o.applyFunc(cfg) }

func newSessionOptFunc(name string, f func(*SessionConfig) error) *sessionOptFunc {
	return &sessionOptFunc{name: name, applyFunc: f}
}

// WithCommandQueueCapacity sets the maximum number of outstanding commands.
// Submit fails with ErrCommandQueueFull when the limit is reached.
//
// The default value is 32.
func WithCommandQueueCapacity(n int) SessionOption {
	return newSessionOptFunc("WithCommandQueueCapacity", func(cfg *SessionConfig) error {
		if cfg == nil {
			return ErrSessionConfigNil
		}

		if n < MinCommandQueueCapacity || n > MaxCommandQueueCapacity {
			return fmt.Errorf("command queue capacity out of range [%d, %d]", MinCommandQueueCapacity, MaxCommandQueueCapacity)
		}
		cfg.commandQueueCapacity = n

		return nil
	})
}

// WithErrorBufferCapacity sets the capacity of the error buffer.
//
// The default value is 64.
func WithErrorBufferCapacity(n int) SessionOption {
	return newSessionOptFunc("WithErrorBufferCapacity", func(cfg *SessionConfig) error {
		if cfg == nil {
			return ErrSessionConfigNil
		}

		if n < MinErrorBufferCapacity || n > MaxErrorBufferCapacity {
			return fmt.Errorf("error buffer capacity out of range [%d, %d]", MinErrorBufferCapacity, MaxErrorBufferCapacity)
		}
		cfg.errorBufferCapacity = n

		return nil
	})
}

// WithFreshnessWindow sets the default freshness window of status snapshots.
//
// The default value is 1 second.
func WithFreshnessWindow(d time.Duration) SessionOption {
	return newSessionOptFunc("WithFreshnessWindow", func(cfg *SessionConfig) error {
		if cfg == nil {
			return ErrSessionConfigNil
		}

		if d < MinFreshnessWindow || d > MaxFreshnessWindow {
			return fmt.Errorf("freshness window out of range [%s, %s]", MinFreshnessWindow, MaxFreshnessWindow)
		}
		cfg.freshnessWindow = d

		return nil
	})
}

// WithPollInterval sets the default poll interval of WaitUntilComplete.
//
// The default value is 10 milliseconds.
func WithPollInterval(d time.Duration) SessionOption {
	return newSessionOptFunc("WithPollInterval", func(cfg *SessionConfig) error {
		if cfg == nil {
			return ErrSessionConfigNil
		}

		if d < MinPollInterval || d > MaxPollInterval {
			return fmt.Errorf("poll interval out of range [%s, %s]", MinPollInterval, MaxPollInterval)
		}
		cfg.pollInterval = d

		return nil
	})
}

// WithLogger sets the logger of the session and its components.
func WithLogger(l logger.Logger) SessionOption {
	return newSessionOptFunc("WithLogger", func(cfg *SessionConfig) error {
		if cfg == nil {
			return ErrSessionConfigNil
		}

		if l == nil {
			return errors.New("logger is nil")
		}
		cfg.logger = l
		cfg.ownLogger = true

		return nil
	})
}

// WithClock sets the wall clock used for freshness decisions. It is intended for tests and simulation.
func WithClock(now func() time.Time) SessionOption {
	return newSessionOptFunc("WithClock", func(cfg *SessionConfig) error {
		if cfg == nil {
			return ErrSessionConfigNil
		}

		if now == nil {
			return errors.New("clock is nil")
		}
		cfg.now = now

		return nil
	})
}

func withLogLevel(level logger.Level) SessionOption {
	return newSessionOptFunc("withLogLevel", func(cfg *SessionConfig) error {
		if cfg == nil {
			return ErrSessionConfigNil
		}
		cfg.logLevel = &level

		return nil
	})
}
