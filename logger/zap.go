package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a *zap.Logger to the Logger interface.
//
// The adapter keeps its own minimum level on top of the level configured in
// the zap core, so SetLevel works on loggers built without a zap.AtomicLevel.
type ZapLogger struct {
	sugar *zap.SugaredLogger
	level *atomic.Int32
}

var _ Logger = (*ZapLogger)(nil)

// NewZap wraps l. The initial level is taken from the zap core.
func NewZap(l *zap.Logger) Logger {
	level := &atomic.Int32{}
	level.Store(int32(fromZapLevel(l.Level())))

	return &ZapLogger{
		sugar: l.WithOptions(zap.AddCallerSkip(1)).Sugar(),
		level: level,
	}
}

func (l *ZapLogger) enabled(level LogLevel) bool {
	return level >= LogLevel(l.level.Load())
}

func (l *ZapLogger) Debug(msg string, keysAndValues ...any) {
	if l.enabled(DebugLevel) {
		l.sugar.Debugw(msg, keysAndValues...)
	}
}

func (l *ZapLogger) Info(msg string, keysAndValues ...any) {
	if l.enabled(InfoLevel) {
		l.sugar.Infow(msg, keysAndValues...)
	}
}

func (l *ZapLogger) Warn(msg string, keysAndValues ...any) {
	if l.enabled(WarnLevel) {
		l.sugar.Warnw(msg, keysAndValues...)
	}
}

func (l *ZapLogger) Error(msg string, keysAndValues ...any) {
	if l.enabled(ErrorLevel) {
		l.sugar.Errorw(msg, keysAndValues...)
	}
}

func (l *ZapLogger) Fatal(msg string, keysAndValues ...any) {
	l.sugar.Fatalw(msg, keysAndValues...)
}

func (l *ZapLogger) With(keyValues ...any) Logger {
	return &ZapLogger{
		sugar: l.sugar.With(keyValues...),
		level: l.level,
	}
}

func (l *ZapLogger) Level() LogLevel {
	return LogLevel(l.level.Load())
}

func (l *ZapLogger) SetLevel(level LogLevel) {
	l.level.Store(int32(level))
}

func fromZapLevel(level zapcore.Level) LogLevel {
	switch {
	case level <= zapcore.DebugLevel:
		return DebugLevel
	case level == zapcore.InfoLevel:
		return InfoLevel
	case level == zapcore.WarnLevel:
		return WarnLevel
	case level == zapcore.ErrorLevel:
		return ErrorLevel
	default:
		return FatalLevel
	}
}
