package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	implerrors "github.com/periospot/implantgen/pkg/errors"
)

// ZerologLogger implements Logger on top of a zerolog.Logger.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger wraps an existing zerolog.Logger.
func NewZerologLogger(zl zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{zl: zl}
}

// Debug implements Logger.Debug.
func (l *ZerologLogger) Debug(msg string, fields ...any) {
	l.zl.Debug().Fields(normalizeFields(fields)).Msg(msg)
}

// Info implements Logger.Info.
func (l *ZerologLogger) Info(msg string, fields ...any) {
	l.zl.Info().Fields(normalizeFields(fields)).Msg(msg)
}

// Warn implements Logger.Warn.
func (l *ZerologLogger) Warn(msg string, fields ...any) {
	l.zl.Warn().Fields(normalizeFields(fields)).Msg(msg)
}

// Error implements Logger.Error. A leading error argument is attached under
// ErrorKey along with the stack trace recorded by cockroachdb/errors.
func (l *ZerologLogger) Error(msg string, fields ...any) {
	ev := l.zl.Error()
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			ev = ev.Str(ErrorKey, err.Error())
			if st := extractStacktrace(err); st != "" {
				ev = ev.Str(StacktraceKey, st)
			}
			if m, ok := asObjectMarshaler(err); ok {
				ev = ev.Object("error.details", m)
			}
			fields = fields[1:]
		}
	}
	ev.Fields(normalizeFields(fields)).Msg(msg)
}

// With implements Logger.With.
func (l *ZerologLogger) With(fields ...any) Logger {
	return &ZerologLogger{zl: l.zl.With().Fields(normalizeFields(fields)).Logger()}
}

// Enabled implements Logger.Enabled.
func (l *ZerologLogger) Enabled(_ context.Context, level Level) bool {
	return l.zl.GetLevel() <= toZerologLevel(level)
}

// Zerolog exposes the underlying zerolog.Logger.
func (l *ZerologLogger) Zerolog() zerolog.Logger {
	return l.zl
}

// Options configures New.
type Options struct {
	Level   Level
	Console bool // human-readable output instead of JSON lines
	Output  io.Writer
}

// New builds a zerolog-backed Logger writing to opts.Output (stderr when nil).
func New(opts Options) *ZerologLogger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Console {
		out = zerolog.ConsoleWriter{Out: out}
	}
	zl := zerolog.New(out).Level(toZerologLevel(opts.Level)).With().Timestamp().Logger()
	return NewZerologLogger(zl)
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = NewZerologLogger(zerolog.Nop())
)

// GetLogger returns the process-wide logger. It discards everything until
// SetLogger or Setup is called.
func GetLogger() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetLogger replaces the process-wide logger.
func SetLogger(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Setup installs a zerolog logger as the process-wide logger and routes
// library warnings (convergence, undefined metrics) through it.
func Setup(opts Options) Logger {
	l := New(opts)
	SetLogger(l)
	implerrors.SetZerologWarnFunc(func(w error) {
		ev := l.zl.Warn()
		if m, ok := asObjectMarshaler(w); ok {
			ev = ev.Object("warning", m)
		}
		ev.Msg(w.Error())
	})
	return l
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// normalizeFields turns alternating key/value arguments into the
// []interface{} form zerolog's Fields expects, with string keys.
func normalizeFields(fields []any) []interface{} {
	out := make([]interface{}, 0, len(fields))
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprint(fields[i])
		}
		value := fields[i+1]
		if err, ok := value.(error); ok {
			value = err.Error()
		}
		out = append(out, key, value)
	}
	return out
}

func asObjectMarshaler(err error) (zerolog.LogObjectMarshaler, bool) {
	var m zerolog.LogObjectMarshaler
	if errors.As(err, &m) {
		return m, true
	}
	return nil, false
}

func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
