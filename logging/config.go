package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Environment types
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// GetConfigFromEnv creates a logger configuration from FIELDSYNC_LOG_LEVEL,
// FIELDSYNC_LOG_FORMAT, FIELDSYNC_ENV and FIELDSYNC_LOG_ADD_SOURCE.
// Unset variables fall back to the environment-specific defaults.
func GetConfigFromEnv() Config {
	config := Config{Environment: EnvDevelopment}

	if env := os.Getenv("FIELDSYNC_ENV"); env != "" {
		config.Environment = strings.ToLower(env)
	}
	if level := os.Getenv("FIELDSYNC_LOG_LEVEL"); level != "" {
		config.Level = strings.ToLower(level)
	}
	if format := os.Getenv("FIELDSYNC_LOG_FORMAT"); format != "" {
		config.Format = strings.ToLower(format)
	}

	switch config.Environment {
	case EnvProduction:
		// JSON at info, no source info
		if config.Format == "" {
			config.Format = "json"
		}
		if config.Level == "" {
			config.Level = "info"
		}
	case EnvTest:
		if config.Format == "" {
			config.Format = "text"
		}
		if config.Level == "" {
			config.Level = "debug"
		}
	default:
		if config.Format == "" {
			config.Format = "text"
		}
		if config.Level == "" {
			config.Level = "debug"
		}
		config.AddSource = true
	}

	if addSource := os.Getenv("FIELDSYNC_LOG_ADD_SOURCE"); addSource != "" {
		config.AddSource = strings.ToLower(addSource) == "true"
	}

	return config
}

// CustomLevel defines a custom log level between existing ones
type CustomLevel slog.Level

// LevelTrace is more verbose than debug. Per-entry sync details log here.
const LevelTrace CustomLevel = CustomLevel(slog.LevelDebug - 4)

// String returns the string representation of the custom level
func (l CustomLevel) String() string {
	if l == LevelTrace {
		return "TRACE"
	}
	return slog.Level(l).String()
}

// Trace logs at trace level.
func (l *Logger) Trace(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.LogAttrs(ctx, slog.Level(LevelTrace), msg, attrs...)
}

// DynamicLevelVar allows changing log level at runtime
type DynamicLevelVar struct {
	*slog.LevelVar
}

// NewDynamicLevelVar creates a new dynamic level variable
func NewDynamicLevelVar(initialLevel slog.Level) *DynamicLevelVar {
	levelVar := &slog.LevelVar{}
	levelVar.Set(initialLevel)
	return &DynamicLevelVar{LevelVar: levelVar}
}

// SetFromString sets the level from a string representation
func (d *DynamicLevelVar) SetFromString(level string) bool {
	switch strings.ToLower(level) {
	case "trace", "debug", "info", "warn", "warning", "error":
		d.Set(ParseLevel(strings.ToLower(level)))
		return true
	default:
		return false
	}
}

// NewLoggerWithDynamicLevel creates a logger whose level can be changed later,
// e.g. when the watch command receives SIGUSR1.
func NewLoggerWithDynamicLevel(config Config) (*Logger, *DynamicLevelVar) {
	levelVar := NewDynamicLevelVar(ParseLevel(config.Level))
	return &Logger{Logger: slog.New(newHandler(config, levelVar.LevelVar))}, levelVar
}
