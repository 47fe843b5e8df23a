package logger

import (
	"log"
	"os"
	"sync/atomic"
)

// A Logger handles log records.
type Logger interface {

	// Trace logs at LevelTrace.
	Trace(msg any)

	// Tracef logs at LevelTrace.
	Tracef(format string, args ...any)

	// Debug logs at LevelDebug.
	Debug(msg any)

	// Debugf logs at LevelDebug.
	Debugf(format string, args ...any)

	// Info logs at LevelInfo.
	Info(msg any)

	// Infof logs at LevelInfo.
	Infof(format string, args ...any)

	// Warn logs at LevelWarn.
	Warn(msg any)

	// Warnf logs at LevelWarn.
	Warnf(format string, args ...any)

	// Error logs at LevelError.
	Error(msg any)

	// Errorf logs at LevelError.
	Errorf(format string, args ...any)

	// Enabled reports whether the logger handles records at the given level.
	Enabled(level Level) bool
}

var defaultLogger atomic.Pointer[Logger]

func init() {
	l := Logger(NewSimpleLogger(log.New(os.Stdout, "", log.LstdFlags),
		LevelInfo))
	defaultLogger.Store(&l)
}

// Default returns the default Logger.
func Default() Logger {
	return *defaultLogger.Load()
}

// SetDefault makes the given logger the default Logger.
func SetDefault(logger Logger) {
	defaultLogger.Store(&logger)
}

// NoOpLogger satisfies the Logger interface and discards all log records.
type NoOpLogger struct{}

var _ Logger = (*NoOpLogger)(nil)

func (NoOpLogger) Trace(_ any)                  {}
func (NoOpLogger) Tracef(_ string, _ ...any)    {}
func (NoOpLogger) Debug(_ any)                  {}
func (NoOpLogger) Debugf(_ string, _ ...any)    {}
func (NoOpLogger) Info(_ any)                   {}
func (NoOpLogger) Infof(_ string, _ ...any)     {}
func (NoOpLogger) Warn(_ any)                   {}
func (NoOpLogger) Warnf(_ string, _ ...any)     {}
func (NoOpLogger) Error(_ any)                  {}
func (NoOpLogger) Errorf(_ string, _ ...any)    {}
func (NoOpLogger) Enabled(_ Level) bool         { return false }
