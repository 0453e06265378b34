// Package logging is the structured logger shared by the engines and the
// binaries. It wraps slog behind a narrow interface so engine options can
// carry a logger without importing slog handlers.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Field is one key/value attribute on a log line.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field         { return Field{Key: key, Value: value} }
func Int(key string, value int) Field        { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field      { return Field{Key: key, Value: value} }
func Any(key string, value any) Field        { return Field{Key: key, Value: value} }

// Err logs err's message under "error". A nil err logs null.
func Err(err error) Field {
	f := Field{Key: "error"}
	if err != nil {
		f.Value = err.Error()
	}
	return f
}

// Logger is implemented by the slog-backed logger returned from New and by
// Noop.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Config selects the level and encoding of log output.
type Config struct {
	// Level is debug, info, warn or error. Anything else means info.
	Level string `yaml:"level"`
	// Format is json or text.
	Format    string    `yaml:"format"`
	AddSource bool      `yaml:"addSource"`
	Output    io.Writer `yaml:"-"` // stderr when nil
}

// New returns a Logger writing cfg.Format lines to cfg.Output.
func New(cfg Config) Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: levelOf(cfg.Level), AddSource: cfg.AddSource}
	if strings.EqualFold(cfg.Format, "json") {
		return &slogger{l: slog.New(slog.NewJSONHandler(out, opts))}
	}
	return &slogger{l: slog.New(slog.NewTextHandler(out, opts))}
}

func levelOf(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Noop discards everything.
func Noop() Logger { return noopLogger{} }

// OrNoop lets engines accept a nil Logger in their options.
func OrNoop(l Logger) Logger {
	if l == nil {
		return noopLogger{}
	}
	return l
}

type slogger struct {
	l *slog.Logger
}

func (s *slogger) log(ctx context.Context, level slog.Level, msg string, fields []Field) {
	if !s.l.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	s.l.LogAttrs(ctx, level, msg, attrs...)
}

func (s *slogger) Debug(ctx context.Context, msg string, fields ...Field) {
	s.log(ctx, slog.LevelDebug, msg, fields)
}

func (s *slogger) Info(ctx context.Context, msg string, fields ...Field) {
	s.log(ctx, slog.LevelInfo, msg, fields)
}

func (s *slogger) Warn(ctx context.Context, msg string, fields ...Field) {
	s.log(ctx, slog.LevelWarn, msg, fields)
}

func (s *slogger) Error(ctx context.Context, msg string, fields ...Field) {
	s.log(ctx, slog.LevelError, msg, fields)
}

func (s *slogger) With(fields ...Field) Logger {
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = slog.Any(f.Key, f.Value)
	}
	return &slogger{l: s.l.With(args...)}
}

type noopLogger struct{}

func (noopLogger) Debug(context.Context, string, ...Field) {}
func (noopLogger) Info(context.Context, string, ...Field)  {}
func (noopLogger) Warn(context.Context, string, ...Field)  {}
func (noopLogger) Error(context.Context, string, ...Field) {}
func (n noopLogger) With(...Field) Logger                  { return n }

type sessionKey struct{}

// SessionIDFromContext returns the id stored by WithSessionLogger, or "".
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// WithSessionLogger tags a drawing or editing gesture. It reuses the
// session id already on ctx or stores a new uuid, and returns base
// annotated with session_id.
func WithSessionLogger(ctx context.Context, base Logger) (context.Context, Logger) {
	if ctx == nil {
		ctx = context.Background()
	}
	id := SessionIDFromContext(ctx)
	if id == "" {
		id = uuid.NewString()
		ctx = context.WithValue(ctx, sessionKey{}, id)
	}
	return ctx, OrNoop(base).With(String("session_id", id))
}
