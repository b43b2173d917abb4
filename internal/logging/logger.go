package logging

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type Level uint32

const (
	DiscardLevel = Level(logrus.PanicLevel)
	ErrorLevel   = Level(logrus.ErrorLevel)
	WarnLevel    = Level(logrus.WarnLevel)
	InfoLevel    = Level(logrus.InfoLevel)
	DebugLevel   = Level(logrus.DebugLevel)
	TraceLevel   = Level(logrus.TraceLevel)
)

type Format string

const (
	ConsoleFormat Format = "console"
	JSONFormat    Format = "json"
)

type loggerContextKey struct{}

var globalLogger = NewLogger(InfoLevel, ConsoleFormat)

// Logger is a thin, key/value oriented wrapper around a logrus.Entry. It is
// created once by the CLI and handed to every component that needs to log.
type Logger struct {
	entry *logrus.Entry
}

// NewLogger returns a new *Logger that writes to stderr at the provided level
// using the provided format.
func NewLogger(level Level, format Format) *Logger {
	return NewLoggerWithOutput(os.Stderr, level, format)
}

// NewLoggerWithOutput is like NewLogger but writes to the provided io.Writer.
func NewLoggerWithOutput(out io.Writer, level Level, format Format) *Logger {
	logrusLogger := logrus.New()
	logrusLogger.SetOutput(out)
	logrusLogger.SetLevel(logrus.Level(level))
	switch format {
	case JSONFormat:
		logrusLogger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrusLogger.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
	}
	return &Logger{entry: logrus.NewEntry(logrusLogger)}
}

// NewDiscardLogger returns a *Logger that drops everything. Handy in tests.
func NewDiscardLogger() *Logger {
	return NewLoggerWithOutput(io.Discard, DiscardLevel, ConsoleFormat)
}

// ContextWithLogger returns a context.Context that has been augmented with
// the provided *Logger.
func ContextWithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// LoggerFromContext extracts a *Logger from the provided context.Context and
// returns it. If no *Logger is found, a global, info-level *Logger is
// returned.
func LoggerFromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerContextKey{}).(*Logger); ok {
		return logger
	}
	return globalLogger
}

// Error logs a message at the error level.
func (l *Logger) Error(err error, msg string, keysAndValues ...any) {
	e := l.withPairs(keysAndValues)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}

// Warn logs a message at the warn level.
func (l *Logger) Warn(msg string, keysAndValues ...any) {
	l.withPairs(keysAndValues).Warn(msg)
}

// Info logs a message at the info level.
func (l *Logger) Info(msg string, keysAndValues ...any) {
	l.withPairs(keysAndValues).Info(msg)
}

// Debug logs a message at the debug level.
func (l *Logger) Debug(msg string, keysAndValues ...any) {
	l.withPairs(keysAndValues).Debug(msg)
}

// Trace logs a message at the trace level.
func (l *Logger) Trace(msg string, keysAndValues ...any) {
	l.withPairs(keysAndValues).Trace(msg)
}

// WithValues adds key-value pairs to a logger's context.
func (l *Logger) WithValues(keysAndValues ...any) *Logger {
	return &Logger{entry: l.withPairs(keysAndValues)}
}

func (l *Logger) withPairs(keysAndValues []any) *logrus.Entry {
	if len(keysAndValues) == 0 {
		return l.entry
	}
	fields := make(logrus.Fields, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = "!BADKEY"
		}
		if i+1 < len(keysAndValues) {
			fields[key] = keysAndValues[i+1]
		} else {
			fields[key] = "(MISSING)"
		}
	}
	return l.entry.WithFields(fields)
}
