package lui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-lui/logger"
)

func TestSessionConfig_Default(t *testing.T) {
	require := require.New(t)

	cfg, err := NewSessionConfig()
	require.NoError(err)
	require.Equal(32, cfg.CommandQueueCapacity())
	require.Equal(64, cfg.ErrorBufferCapacity())
	require.Equal(time.Second, cfg.FreshnessWindow())
	require.Equal(10*time.Millisecond, cfg.PollInterval())
	require.NotNil(cfg.Logger())
}

func TestSessionConfig_Options(t *testing.T) {
	tests := []struct {
		name    string
		opt     SessionOption
		wantErr bool
	}{
		{"Command queue capacity min", WithCommandQueueCapacity(MinCommandQueueCapacity), false},
		{"Command queue capacity max", WithCommandQueueCapacity(MaxCommandQueueCapacity), false},
		{"Command queue capacity zero", WithCommandQueueCapacity(0), true},
		{"Command queue capacity too large", WithCommandQueueCapacity(MaxCommandQueueCapacity + 1), true},
		{"Error buffer capacity min", WithErrorBufferCapacity(MinErrorBufferCapacity), false},
		{"Error buffer capacity zero", WithErrorBufferCapacity(0), true},
		{"Error buffer capacity too large", WithErrorBufferCapacity(MaxErrorBufferCapacity + 1), true},
		{"Freshness window max", WithFreshnessWindow(MaxFreshnessWindow), false},
		{"Freshness window too small", WithFreshnessWindow(time.Microsecond), true},
		{"Freshness window too large", WithFreshnessWindow(time.Hour), true},
		{"Poll interval min", WithPollInterval(MinPollInterval), false},
		{"Poll interval zero", WithPollInterval(0), true},
		{"Nil logger", WithLogger(nil), true},
		{"Nil clock", WithClock(nil), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSessionConfig(tt.opt)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSessionConfig_PollIntervalExceedsFreshness(t *testing.T) {
	require := require.New(t)

	_, err := NewSessionConfig(WithFreshnessWindow(5*time.Millisecond), WithPollInterval(10*time.Millisecond))
	require.Error(err)

	cfg, err := NewSessionConfig(WithPollInterval(5*time.Second), WithFreshnessWindow(5*time.Second))
	require.NoError(err)
	require.Equal(5*time.Second, cfg.PollInterval())
}

func TestSessionConfig_NilConfig(t *testing.T) {
	require.ErrorIs(t, WithPollInterval(time.Millisecond).apply(nil), ErrSessionConfigNil)
}

func TestLoadSessionConfig(t *testing.T) {
	require := require.New(t)

	l := logger.NewSlog(logger.InfoLevel, false)
	doc := []byte(`
commandQueueCapacity: 16
errorBufferCapacity: 128
freshnessWindow: 500ms
pollInterval: 5ms
logLevel: debug
`)

	cfg, err := LoadSessionConfig(doc, WithLogger(l))
	require.NoError(err)
	require.Equal(16, cfg.CommandQueueCapacity())
	require.Equal(128, cfg.ErrorBufferCapacity())
	require.Equal(500*time.Millisecond, cfg.FreshnessWindow())
	require.Equal(5*time.Millisecond, cfg.PollInterval())
	require.Equal(logger.DebugLevel, l.Level())

	// options take precedence over the document
	cfg, err = LoadSessionConfig(doc, WithCommandQueueCapacity(4))
	require.NoError(err)
	require.Equal(4, cfg.CommandQueueCapacity())

	// absent keys keep their defaults
	cfg, err = LoadSessionConfig([]byte("errorBufferCapacity: 8\n"))
	require.NoError(err)
	require.Equal(8, cfg.ErrorBufferCapacity())
	require.Equal(32, cfg.CommandQueueCapacity())
}

func TestLoadSessionConfig_LogLevelKeepsDefaultLogger(t *testing.T) {
	require := require.New(t)

	before := logger.GetLogger().Level()
	want := logger.ErrorLevel
	if before == logger.ErrorLevel {
		want = logger.WarnLevel
	}

	cfg, err := LoadSessionConfig([]byte("logLevel: " + want.String()))
	require.NoError(err)
	require.Equal(want, cfg.Logger().Level())
	require.NotSame(logger.GetLogger(), cfg.Logger())
	require.Equal(before, logger.GetLogger().Level())

	// a session created from the config leaves the default logger alone too
	_, err = NewSession(cfg)
	require.NoError(err)
	require.Equal(before, logger.GetLogger().Level())
}

func TestLoadSessionConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"Bad yaml", "commandQueueCapacity: [1"},
		{"Bad type", "commandQueueCapacity: many"},
		{"Bad freshness", "freshnessWindow: soon"},
		{"Bad poll interval", "pollInterval: 5"},
		{"Out of range", "errorBufferCapacity: 0"},
		{"Unknown log level", "logLevel: loud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSessionConfig([]byte(tt.doc))
			require.Error(t, err)
		})
	}
}
