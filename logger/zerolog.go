package logger

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	logger zerolog.Logger
	level  *atomic.Int32
}

var _ Logger = (*ZerologLogger)(nil)

// NewZerolog wraps l. The initial level is taken from l.GetLevel().
func NewZerolog(l zerolog.Logger) Logger {
	level := &atomic.Int32{}
	level.Store(int32(fromZerologLevel(l.GetLevel())))

	return &ZerologLogger{logger: l, level: level}
}

func (l *ZerologLogger) enabled(level LogLevel) bool {
	return level >= LogLevel(l.level.Load())
}

func (l *ZerologLogger) Debug(msg string, keysAndValues ...any) {
	if l.enabled(DebugLevel) {
		l.logger.WithLevel(zerolog.DebugLevel).Fields(keysAndValues).Msg(msg)
	}
}

func (l *ZerologLogger) Info(msg string, keysAndValues ...any) {
	if l.enabled(InfoLevel) {
		l.logger.WithLevel(zerolog.InfoLevel).Fields(keysAndValues).Msg(msg)
	}
}

func (l *ZerologLogger) Warn(msg string, keysAndValues ...any) {
	if l.enabled(WarnLevel) {
		l.logger.WithLevel(zerolog.WarnLevel).Fields(keysAndValues).Msg(msg)
	}
}

func (l *ZerologLogger) Error(msg string, keysAndValues ...any) {
	if l.enabled(ErrorLevel) {
		l.logger.WithLevel(zerolog.ErrorLevel).Fields(keysAndValues).Msg(msg)
	}
}

// Fatal logs at fatal level and exits through zerolog.
func (l *ZerologLogger) Fatal(msg string, keysAndValues ...any) {
	l.logger.Fatal().Fields(keysAndValues).Msg(msg)
}

func (l *ZerologLogger) With(keyValues ...any) Logger {
	return &ZerologLogger{
		logger: l.logger.With().Fields(keyValues).Logger(),
		level:  l.level,
	}
}

func (l *ZerologLogger) Level() LogLevel {
	return LogLevel(l.level.Load())
}

func (l *ZerologLogger) SetLevel(level LogLevel) {
	l.level.Store(int32(level))
}

func fromZerologLevel(level zerolog.Level) LogLevel {
	switch level {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		return DebugLevel
	case zerolog.InfoLevel, zerolog.NoLevel:
		return InfoLevel
	case zerolog.WarnLevel:
		return WarnLevel
	case zerolog.ErrorLevel:
		return ErrorLevel
	default:
		return FatalLevel
	}
}
