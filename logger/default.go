package logger

import (
	"os"
	"sync/atomic"
)

// holder boxes a Logger so loggers of different concrete types can share one atomic pointer.
type holder struct {
	Logger
}

var defLogger atomic.Pointer[holder]

func init() {
	defLogger.Store(&holder{NewSlog(InfoLevel, false)})
}

// GetLogger returns the package default logger. Components created without an explicit
// logger log through it.
func GetLogger() Logger {
	return defLogger.Load().Logger
}

// SetLogger replaces the package default logger. A nil logger is ignored.
//
// Components keep the logger they were created with.
func SetLogger(l Logger) {
	if l != nil {
		defLogger.Store(&holder{l})
	}
}

// SetLevel sets the minimum enabled level of the default logger.
func SetLevel(level Level) {
	GetLogger().SetLevel(level)
}

// SetLevelFromEnv sets the level of the default logger from the environment variable key,
// e.g. LOG_LEVEL=debug. It reports whether the variable held a known level name.
func SetLevelFromEnv(key string) bool {
	level, ok := ParseLevel(os.Getenv(key))
	if ok {
		SetLevel(level)
	}

	return ok
}

func Debug(msg string, keysAndValues ...any) { GetLogger().Debug(msg, keysAndValues...) }
func Info(msg string, keysAndValues ...any)  { GetLogger().Info(msg, keysAndValues...) }
func Warn(msg string, keysAndValues ...any)  { GetLogger().Warn(msg, keysAndValues...) }
func Error(msg string, keysAndValues ...any) { GetLogger().Error(msg, keysAndValues...) }

func With(keyValues ...any) Logger {
	return GetLogger().With(keyValues...)
}
