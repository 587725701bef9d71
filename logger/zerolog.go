package logger

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	base  zerolog.Logger
	level *atomic.Int32
}

var _ Logger = (*ZerologLogger)(nil)

// NewZerolog wraps zl. The level is tracked by the adapter so SetLevel
// affects every child created with With.
func NewZerolog(zl zerolog.Logger, level LogLevel) *ZerologLogger {
	lv := &atomic.Int32{}
	lv.Store(int32(level))

	return &ZerologLogger{base: zl, level: lv}
}

func (l *ZerologLogger) Debug(msg string, keysAndValues ...any) {
	l.emit(DebugLevel, l.base.Debug(), msg, keysAndValues)
}

func (l *ZerologLogger) Info(msg string, keysAndValues ...any) {
	l.emit(InfoLevel, l.base.Info(), msg, keysAndValues)
}

func (l *ZerologLogger) Warn(msg string, keysAndValues ...any) {
	l.emit(WarnLevel, l.base.Warn(), msg, keysAndValues)
}

func (l *ZerologLogger) Error(msg string, keysAndValues ...any) {
	l.emit(ErrorLevel, l.base.Error(), msg, keysAndValues)
}

// Fatal logs at fatal level; zerolog exits the process after writing.
func (l *ZerologLogger) Fatal(msg string, keysAndValues ...any) {
	addFields(l.base.Fatal(), keysAndValues).Msg(msg)
}

func (l *ZerologLogger) With(keyValues ...any) Logger {
	ctx := l.base.With()
	kvPairs(keyValues, func(key string, value any) {
		ctx = ctx.Interface(key, value)
	})

	return &ZerologLogger{base: ctx.Logger(), level: l.level}
}

func (l *ZerologLogger) Level() LogLevel {
	return LogLevel(l.level.Load())
}

func (l *ZerologLogger) SetLevel(level LogLevel) {
	l.level.Store(int32(level))
}

func (l *ZerologLogger) emit(level LogLevel, ev *zerolog.Event, msg string, keysAndValues []any) {
	if level < l.Level() {
		ev.Discard()
		return
	}

	addFields(ev, keysAndValues).Msg(msg)
}

func addFields(ev *zerolog.Event, keysAndValues []any) *zerolog.Event {
	kvPairs(keysAndValues, func(key string, value any) {
		if err, ok := value.(error); ok {
			ev = ev.AnErr(key, err)
			return
		}
		ev = ev.Interface(key, value)
	})

	return ev
}
