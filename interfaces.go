package rediskv

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// Logger interface for custom logging implementations
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// MetricsCollector interface for metrics collection
type MetricsCollector interface {
	// RecordCommandProcessed records a processed command with its duration
	RecordCommandProcessed(cmd string, duration time.Duration)

	// RecordKeyCount records the current number of keys
	RecordKeyCount(count int64)

	// RecordMemoryUsage records current memory usage
	RecordMemoryUsage(bytes int64)

	// RecordExpiredKey records a key removed because its TTL elapsed
	RecordExpiredKey()

	// RecordBlockingWait records how long a blocking pop was parked and
	// whether it was served a value
	RecordBlockingWait(duration time.Duration, served bool)

	// RecordError records an error reply by its error code
	RecordError(errorType string)
}

// slogLogger implements Logger on top of log/slog
type slogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger returns a Logger writing to l. A nil l uses a text handler
// on stderr at info level.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &slogLogger{logger: l}
}

func (l *slogLogger) Debug(msg string, fields ...Field) {
	l.log(slog.LevelDebug, msg, fields)
}

func (l *slogLogger) Info(msg string, fields ...Field) {
	l.log(slog.LevelInfo, msg, fields)
}

func (l *slogLogger) Error(msg string, fields ...Field) {
	l.log(slog.LevelError, msg, fields)
}

func (l *slogLogger) log(level slog.Level, msg string, fields []Field) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	l.logger.LogAttrs(ctx, level, msg, attrs...)
}
