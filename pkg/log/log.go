package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level is the minimum severity a logger emits.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the lowercase name of the level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel converts a level name ("debug", "info", "warn", "error").
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("log: unknown level %q", s)
	}
}

func (l Level) slog() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Field is a structured key/value attribute attached to a log record.
type Field = slog.Attr

// F builds a Field from an arbitrary value.
func F(key string, value any) Field { return slog.Any(key, value) }

// Str builds a string Field.
func Str(key, value string) Field { return slog.String(key, value) }

// Int builds an int Field.
func Int(key string, value int) Field { return slog.Int(key, value) }

// Int64 builds an int64 Field.
func Int64(key string, value int64) Field { return slog.Int64(key, value) }

// Bool builds a bool Field.
func Bool(key string, value bool) Field { return slog.Bool(key, value) }

// Err builds the conventional "error" Field.
func Err(err error) Field { return slog.Any("error", err) }

// Component tags records with the subsystem that produced them.
func Component(name string) Field { return slog.String("component", name) }

// Format selects the output encoding.
type Format int

const (
	TextFormat Format = iota
	JSONFormat
)

// ParseFormat converts a format name ("text", "json").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return TextFormat, nil
	case "json":
		return JSONFormat, nil
	default:
		return TextFormat, fmt.Errorf("log: unknown format %q", s)
	}
}

// Logger is the structured logging facade used across courier.
type Logger struct {
	s *slog.Logger
}

// Option configures a Logger under construction.
type Option func(*options)

type options struct {
	level  Level
	format Format
	out    io.Writer
}

// WithLevel sets the minimum level. Default is InfoLevel.
func WithLevel(l Level) Option { return func(o *options) { o.level = l } }

// WithFormat sets the output encoding. Default is TextFormat.
func WithFormat(f Format) Option { return func(o *options) { o.format = f } }

// WithOutput sets the destination writer. Default is os.Stderr.
func WithOutput(w io.Writer) Option { return func(o *options) { o.out = w } }

// New builds a Logger backed by a slog handler.
func New(opts ...Option) *Logger {
	o := options{level: InfoLevel, format: TextFormat, out: os.Stderr}
	for _, fn := range opts {
		fn(&o)
	}
	hopts := &slog.HandlerOptions{Level: o.level.slog()}
	var h slog.Handler
	if o.format == JSONFormat {
		h = slog.NewJSONHandler(o.out, hopts)
	} else {
		h = slog.NewTextHandler(o.out, hopts)
	}
	return &Logger{s: slog.New(h)}
}

// Nop returns a logger that discards everything. Useful in tests.
func Nop() *Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(127)})
	return &Logger{s: slog.New(h)}
}

// With returns a child logger carrying the given fields on every record.
func (l *Logger) With(fields ...Field) *Logger {
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return &Logger{s: l.s.With(args...)}
}

// WithComponent returns a child logger tagged with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(Component(name))
}

func (l *Logger) log(lvl slog.Level, msg string, fields []Field) {
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	l.s.Log(context.Background(), lvl, msg, args...)
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields) }

// Info logs at info level.
func (l *Logger) Info(msg string, fields ...Field) { l.log(slog.LevelInfo, msg, fields) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, fields ...Field) { l.log(slog.LevelWarn, msg, fields) }

// Error logs at error level.
func (l *Logger) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields) }
