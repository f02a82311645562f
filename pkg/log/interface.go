// Package log provides the structured logging interface used across implantgen.
//
// The Logger interface mirrors log/slog method signatures so callers pass
// alternating key/value pairs. The default implementation is backed by
// zerolog (see zerolog.go); tests use TestLogger, which captures JSON lines
// in memory.
//
// Example usage:
//
//	logger := log.GetLogger().With(
//	    log.ComponentKey, "generator",
//	    log.DatasetKey, "implant_bone_loss",
//	)
//	logger.Info("Dataset generated",
//	    log.SamplesKey, 500,
//	    log.RandomSeedKey, 42,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
type Logger interface {
	// Debug logs a debug-level message with optional key/value fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional key/value fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional key/value fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message. If the first field is an error it is
	// attached under the "error" key together with its stack trace.
	//
	//	logger.Error("Write failed", err, log.PathKey, "implant_success_data.csv")
	Error(msg string, fields ...any)

	// With returns a Logger that includes the given fields in every record.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a textual level ("debug", "info", "warn", "error").
// Unknown values fall back to LevelInfo and ok is false.
func ParseLevel(s string) (level Level, ok bool) {
	switch s {
	case "debug":
		return LevelDebug, true
	case "info", "":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}
