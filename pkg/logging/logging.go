package logging

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with context support
type Logger struct {
	logger *zap.Logger
}

// LogLevel defines the logging level
type LogLevel zapcore.Level

const (
	DEBUG LogLevel = LogLevel(zapcore.DebugLevel)
	INFO  LogLevel = LogLevel(zapcore.InfoLevel)
	WARN  LogLevel = LogLevel(zapcore.WarnLevel)
	ERROR LogLevel = LogLevel(zapcore.ErrorLevel)
	FATAL LogLevel = LogLevel(zapcore.FatalLevel)
)

// contextKey defines a type for context keys
type contextKey string

// clOrdIDKey correlates log lines with the ClOrdID of the order whose
// submission, cancel, or FIX round-trip is being handled: the natural
// request identifier for this system, since every gateway path (FIX,
// NATS ingress, direct OMS call) is keyed off it end to end.
const clOrdIDKey contextKey = "cl_ord_id"

// NewLogger creates a new Logger instance
func NewLogger(level LogLevel) *Logger {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.Level(level))
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return &Logger{logger: logger}
}

// WithClOrdID attaches a ClOrdID to ctx so every log call made against
// that ctx is automatically tagged with it, without every call site
// having to pass a zap.String("cl_ord_id", ...) field by hand.
func WithClOrdID(ctx context.Context, clOrdID string) context.Context {
	return context.WithValue(ctx, clOrdIDKey, clOrdID)
}

// clOrdIDFromContext retrieves the ClOrdID WithClOrdID attached, if any.
func clOrdIDFromContext(ctx context.Context) (string, bool) {
	clOrdID, ok := ctx.Value(clOrdIDKey).(string)
	return clOrdID, ok
}

// logMessage logs a message with the specified level and context
func (l *Logger) logMessage(ctx context.Context, level LogLevel, msg string, fields ...zap.Field) {
	if clOrdID, ok := clOrdIDFromContext(ctx); ok {
		fields = append([]zap.Field{zap.String("cl_ord_id", clOrdID)}, fields...)
	}
	if level == WARN || level == ERROR || level == FATAL {
		fields = append(fields, l.callerField())
	}
	logger := l.logger
	switch level {
	case DEBUG:
		logger.Debug(msg, fields...)
	case INFO:
		logger.Info(msg, fields...)
	case WARN:
		logger.Warn(msg, fields...)
	case ERROR:
		logger.Error(msg, fields...)
	case FATAL:
		logger.Fatal(msg, fields...)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.logMessage(ctx, DEBUG, msg, fields...)
}

// Info logs an info message
func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.logMessage(ctx, INFO, msg, fields...)
}

// Warn logs a warning message
func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.logMessage(ctx, WARN, msg, fields...)
}

// Error logs an error message
func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.logMessage(ctx, ERROR, msg, fields...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	l.logMessage(ctx, FATAL, msg, fields...)
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return l.logger.Sync()
}

// callerField returns the file:line of the site that called
// Warn/Error/Fatal (the caller of the caller of logMessage), for triage
// without a full stack trace.
func (l *Logger) callerField() zapcore.Field {
	pc := make([]uintptr, 15)
	n := runtime.Callers(4, pc)
	frames := runtime.CallersFrames(pc[:n])
	frame, _ := frames.Next()
	return zap.String("log_line", fmt.Sprintf("%s:%d", frame.File, frame.Line))
}
