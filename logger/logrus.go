package logger

import (
	"github.com/sirupsen/logrus"
)

// LogrusLogger adapts a logrus logger to the Logger interface.
type LogrusLogger struct {
	root  *logrus.Logger
	entry *logrus.Entry
}

var _ Logger = (*LogrusLogger)(nil)

// NewLogrus wraps l and sets its level.
func NewLogrus(l *logrus.Logger, level LogLevel) *LogrusLogger {
	inst := &LogrusLogger{root: l, entry: logrus.NewEntry(l)}
	inst.SetLevel(level)

	return inst
}

func (l *LogrusLogger) Debug(msg string, keysAndValues ...any) {
	l.entry.WithFields(toLogrusFields(keysAndValues)).Debug(msg)
}

func (l *LogrusLogger) Info(msg string, keysAndValues ...any) {
	l.entry.WithFields(toLogrusFields(keysAndValues)).Info(msg)
}

func (l *LogrusLogger) Warn(msg string, keysAndValues ...any) {
	l.entry.WithFields(toLogrusFields(keysAndValues)).Warn(msg)
}

func (l *LogrusLogger) Error(msg string, keysAndValues ...any) {
	l.entry.WithFields(toLogrusFields(keysAndValues)).Error(msg)
}

func (l *LogrusLogger) Fatal(msg string, keysAndValues ...any) {
	l.entry.WithFields(toLogrusFields(keysAndValues)).Fatal(msg)
}

func (l *LogrusLogger) With(keyValues ...any) Logger {
	return &LogrusLogger{root: l.root, entry: l.entry.WithFields(toLogrusFields(keyValues))}
}

func (l *LogrusLogger) Level() LogLevel {
	switch l.root.GetLevel() {
	case logrus.TraceLevel, logrus.DebugLevel:
		return DebugLevel
	case logrus.InfoLevel:
		return InfoLevel
	case logrus.WarnLevel:
		return WarnLevel
	case logrus.ErrorLevel:
		return ErrorLevel
	default:
		return FatalLevel
	}
}

// SetLevel sets the level on the shared root logger.
func (l *LogrusLogger) SetLevel(level LogLevel) {
	switch level {
	case DebugLevel:
		l.root.SetLevel(logrus.DebugLevel)
	case InfoLevel:
		l.root.SetLevel(logrus.InfoLevel)
	case WarnLevel:
		l.root.SetLevel(logrus.WarnLevel)
	case ErrorLevel:
		l.root.SetLevel(logrus.ErrorLevel)
	default:
		l.root.SetLevel(logrus.FatalLevel)
	}
}

func toLogrusFields(keysAndValues []any) logrus.Fields {
	fields := make(logrus.Fields, len(keysAndValues)/2)
	kvPairs(keysAndValues, func(key string, value any) {
		fields[key] = value
	})

	return fields
}
