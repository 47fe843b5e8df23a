package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger implements the logger.Logger interface on top of a
// zap.SugaredLogger.
// Trace records are logged at zap's debug level, which is the lowest
// level zap supports.
type ZapLogger struct {
	logger *zap.SugaredLogger
	level  Level
}

var _ Logger = (*ZapLogger)(nil)

// NewZapLogger returns a new ZapLogger wrapping the given zap logger.
func NewZapLogger(logger *zap.Logger, level Level) *ZapLogger {
	return &ZapLogger{
		logger: logger.WithOptions(zap.AddCallerSkip(1)).Sugar(),
		level:  level,
	}
}

// NewDevelopmentZapLogger returns a ZapLogger backed by a zap development
// configuration, logging at LevelDebug.
func NewDevelopmentZapLogger() *ZapLogger {
	logger, _ := zap.NewDevelopment()
	return NewZapLogger(logger, LevelDebug)
}

// NewProductionZapLogger returns a ZapLogger backed by a zap production
// configuration, logging at LevelInfo.
func NewProductionZapLogger() *ZapLogger {
	logger, _ := zap.NewProduction()
	return NewZapLogger(logger, LevelInfo)
}

// Trace logs at LevelTrace.
func (l *ZapLogger) Trace(msg any) {
	if l.Enabled(LevelTrace) {
		l.logger.Debug(msg)
	}
}

// Tracef logs at LevelTrace.
func (l *ZapLogger) Tracef(format string, args ...any) {
	if l.Enabled(LevelTrace) {
		l.logger.Debugf(format, args...)
	}
}

// Debug logs at LevelDebug.
func (l *ZapLogger) Debug(msg any) {
	if l.Enabled(LevelDebug) {
		l.logger.Debug(msg)
	}
}

// Debugf logs at LevelDebug.
func (l *ZapLogger) Debugf(format string, args ...any) {
	if l.Enabled(LevelDebug) {
		l.logger.Debugf(format, args...)
	}
}

// Info logs at LevelInfo.
func (l *ZapLogger) Info(msg any) {
	if l.Enabled(LevelInfo) {
		l.logger.Info(msg)
	}
}

// Infof logs at LevelInfo.
func (l *ZapLogger) Infof(format string, args ...any) {
	if l.Enabled(LevelInfo) {
		l.logger.Infof(format, args...)
	}
}

// Warn logs at LevelWarn.
func (l *ZapLogger) Warn(msg any) {
	if l.Enabled(LevelWarn) {
		l.logger.Warn(msg)
	}
}

// Warnf logs at LevelWarn.
func (l *ZapLogger) Warnf(format string, args ...any) {
	if l.Enabled(LevelWarn) {
		l.logger.Warnf(format, args...)
	}
}

// Error logs at LevelError.
func (l *ZapLogger) Error(msg any) {
	if l.Enabled(LevelError) {
		l.logger.Error(msg)
	}
}

// Errorf logs at LevelError.
func (l *ZapLogger) Errorf(format string, args ...any) {
	if l.Enabled(LevelError) {
		l.logger.Errorf(format, args...)
	}
}

// Enabled reports whether the logger handles records at the given level.
func (l *ZapLogger) Enabled(level Level) bool {
	if level < l.level {
		return false
	}
	return l.logger.Desugar().Core().Enabled(zapLevel(level))
}

func zapLevel(level Level) zapcore.Level {
	switch {
	case level < LevelInfo:
		return zapcore.DebugLevel
	case level < LevelWarn:
		return zapcore.InfoLevel
	case level < LevelError:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
