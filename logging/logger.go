// Package logging wraps log/slog with the conventions used across fieldsync:
// operation and component attributes, structured SyncError values and a
// process-wide default logger.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	syncErrors "github.com/c0deZ3R0/fieldsync/errors"
)

// Logger is our wrapper around slog.Logger with additional convenience methods
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration
type Config struct {
	Level       string    `json:"level" yaml:"level"`             // trace, debug, info, warn, error
	Format      string    `json:"format" yaml:"format"`           // text, json
	AddSource   bool      `json:"add_source" yaml:"add_source"`   // whether to add source code information
	Environment string    `json:"environment" yaml:"environment"` // development, production, test
	Output      io.Writer `json:"-" yaml:"-"`                     // defaults to os.Stderr
}

// DefaultConfig is used when no explicit configuration is given.
var DefaultConfig = Config{
	Level:       "info",
	Format:      "text",
	AddSource:   false,
	Environment: EnvDevelopment,
}

var defaultLogger *Logger

// Operation names the unit of work a log line belongs to.
type Operation string

func (o Operation) LogValue() slog.Value {
	return slog.StringValue(string(o))
}

// Component names the subsystem emitting a log line.
type Component string

func (c Component) LogValue() slog.Value {
	return slog.StringValue(string(c))
}

type ctxKey int

const (
	ownerKey ctxKey = iota
	runKey
)

// ContextWithOwner stores the owner (technician) id for WithContext.
func ContextWithOwner(ctx context.Context, ownerID int64) context.Context {
	return context.WithValue(ctx, ownerKey, ownerID)
}

// ContextWithRun stores a sync run id for WithContext.
func ContextWithRun(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runKey, runID)
}

// SyncErrorValuer provides structured logging for SyncError
type SyncErrorValuer struct {
	*syncErrors.SyncError
}

func (e SyncErrorValuer) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("operation", string(e.Op)),
		slog.String("code", string(e.Code)),
		slog.Bool("retryable", e.Retryable),
	}
	if e.Component != "" {
		attrs = append(attrs, slog.String("component", e.Component))
	}
	if e.Kind != "" {
		attrs = append(attrs, slog.String("kind", string(e.Kind)))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}

	if len(e.Metadata) > 0 {
		metadataAttrs := make([]slog.Attr, 0, len(e.Metadata))
		for k, v := range e.Metadata {
			metadataAttrs = append(metadataAttrs, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Attr{Key: "metadata", Value: slog.GroupValue(metadataAttrs...)})
	}

	return slog.GroupValue(attrs...)
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch name {
	case "trace":
		return slog.Level(LevelTrace)
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(config Config, level slog.Leveler) slog.Handler {
	out := config.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: config.AddSource,
	}
	if config.Format == "json" {
		return slog.NewJSONHandler(out, opts)
	}
	return slog.NewTextHandler(out, opts)
}

// NewLogger creates a new logger with the provided configuration
func NewLogger(config Config) *Logger {
	return &Logger{Logger: slog.New(newHandler(config, ParseLevel(config.Level)))}
}

// Discard returns a logger that drops every record. Useful in tests.
func Discard() *Logger {
	return NewLogger(Config{Level: "error", Output: io.Discard})
}

// Init initializes the global logger with the provided configuration
func Init(config Config) {
	defaultLogger = NewLogger(config)
	slog.SetDefault(defaultLogger.Logger)
}

// Default returns the default logger instance
func Default() *Logger {
	if defaultLogger == nil {
		Init(DefaultConfig)
	}
	return defaultLogger
}

// WithOperation creates a child logger with operation context
func (l *Logger) WithOperation(op Operation) *Logger {
	return &Logger{Logger: l.With(slog.Any("operation", op))}
}

// WithComponent creates a child logger with component context
func (l *Logger) WithComponent(component Component) *Logger {
	return &Logger{Logger: l.With(slog.Any("component", component))}
}

// WithContext creates a child logger carrying the owner and run ids stored in ctx.
func (l *Logger) WithContext(ctx context.Context, attrs ...slog.Attr) *Logger {
	contextAttrs := make([]any, 0, len(attrs)+2)

	if owner, ok := ctx.Value(ownerKey).(int64); ok {
		contextAttrs = append(contextAttrs, slog.Int64("owner_id", owner))
	}
	if run, ok := ctx.Value(runKey).(string); ok {
		contextAttrs = append(contextAttrs, slog.String("run_id", run))
	}
	for _, attr := range attrs {
		contextAttrs = append(contextAttrs, attr)
	}

	return &Logger{Logger: l.With(contextAttrs...)}
}

// LogError logs an error with caller information and structured attributes
func (l *Logger) LogError(ctx context.Context, err error, msg string, attrs ...slog.Attr) {
	allAttrs := make([]any, 0, len(attrs)+2)

	var syncErr *syncErrors.SyncError
	switch {
	case err == nil:
	case errors.As(err, &syncErr):
		allAttrs = append(allAttrs, slog.Any("sync_error", SyncErrorValuer{SyncError: syncErr}))
	default:
		allAttrs = append(allAttrs, slog.String("error", err.Error()))
	}

	if pc, file, line, ok := runtime.Caller(1); ok {
		name := ""
		if fn := runtime.FuncForPC(pc); fn != nil {
			name = fn.Name()
		}
		allAttrs = append(allAttrs,
			slog.Group("caller",
				slog.String("file", file),
				slog.Int("line", line),
				slog.String("function", name),
			),
		)
	}

	for _, attr := range attrs {
		allAttrs = append(allAttrs, attr)
	}

	l.ErrorContext(ctx, msg, allAttrs...)
}

// LogOperation logs the start and end of an operation with duration tracking
func (l *Logger) LogOperation(ctx context.Context, op Operation, component Component, fn func() error) error {
	start := time.Now()
	opLogger := l.WithOperation(op).WithComponent(component)

	opLogger.DebugContext(ctx, "operation started")

	err := fn()
	duration := time.Since(start)

	if err != nil {
		opLogger.LogError(ctx, err, "operation failed",
			slog.Duration("duration", duration),
		)
		return err
	}

	opLogger.DebugContext(ctx, "operation completed",
		slog.Duration("duration", duration),
	)
	return nil
}

func toArgs(attrs []slog.Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}

// Convenience methods that use the default logger

func Debug(msg string, attrs ...slog.Attr) { Default().Debug(msg, toArgs(attrs)...) }
func Info(msg string, attrs ...slog.Attr)  { Default().Info(msg, toArgs(attrs)...) }
func Warn(msg string, attrs ...slog.Attr)  { Default().Warn(msg, toArgs(attrs)...) }
func Error(msg string, attrs ...slog.Attr) { Default().Error(msg, toArgs(attrs)...) }

func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().InfoContext(ctx, msg, toArgs(attrs)...)
}

func WarnContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	Default().WarnContext(ctx, msg, toArgs(attrs)...)
}

func LogError(ctx context.Context, err error, msg string, attrs ...slog.Attr) {
	Default().LogError(ctx, err, msg, attrs...)
}

func WithComponent(component Component) *Logger {
	return Default().WithComponent(component)
}
