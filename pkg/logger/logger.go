// Package logger is the structured logging facade for the client.
// Everything logs through the Logger interface so callers never touch
// slog directly.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Frames between runtime.Caller and the line that logged:
// getCaller -> log -> leveled method -> caller.
const callerSkipFrames = 3

// Logger is the leveled, structured logging interface the client codes
// against. Named returns a child logger that groups its fields.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)

	Named(name string) Logger
}

// Field is one structured key-value attribute on a log line.
type Field struct {
	Key   string
	Value interface{}
}

// Field constructors.
func String(key, val string) Field                 { return Field{Key: key, Value: val} }
func Int(key string, val int) Field                { return Field{Key: key, Value: val} }
func Float64(key string, val float64) Field        { return Field{Key: key, Value: val} }
func Bool(key string, val bool) Field              { return Field{Key: key, Value: val} }
func Duration(key string, val time.Duration) Field { return Field{Key: key, Value: val} }
func Any(key string, val interface{}) Field        { return Field{Key: key, Value: val} }
func Error(err error) Field                        { return Field{Key: "error", Value: err} }

// slogLogger implements Logger on top of slog.
type slogLogger struct {
	sl *slog.Logger
}

func (l *slogLogger) Named(name string) Logger {
	return &slogLogger{sl: l.sl.WithGroup(name)}
}

func (l *slogLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelDebug, msg, fields)
}

func (l *slogLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelInfo, msg, fields)
}

func (l *slogLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelWarn, msg, fields)
}

func (l *slogLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelError, msg, fields)
}

// log stamps the calling location and forwards everything to slog.
func (l *slogLogger) log(ctx context.Context, level slog.Level, msg string, fields []Field) {
	attrs := make([]slog.Attr, 0, len(fields)+1)
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	attrs = append(attrs, slog.String("source", getCaller()))
	l.sl.LogAttrs(ctx, level, msg, attrs...)
}

var global Logger
var levelVar slog.LevelVar

// Init installs the global logger. Logs go to stderr so that command
// output on stdout stays machine-readable. Calling it again resets the
// level to info, which keeps repeated Init calls in tests harmless.
func Init() error {
	levelVar.Set(slog.LevelInfo)
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &levelVar, AddSource: false})
	global = &slogLogger{sl: slog.New(h)}
	return nil
}

// getCaller returns the logging line as path/file.go:line, relative to the
// working directory when possible so editors can jump to it.
func getCaller() string {
	_, file, line, ok := runtime.Caller(callerSkipFrames)
	if !ok {
		return "unknown:0"
	}
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(cwd, file); err == nil {
			return fmt.Sprintf("%s:%d", rel, line)
		}
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

// Get returns the process-wide logger. It panics before Init so a missing
// Init surfaces immediately instead of as silently dropped logs.
func Get() Logger {
	if global == nil {
		panic("logger not initialized. Call logger.Init() first")
	}
	return global
}

// Named returns a child of the process-wide logger.
func Named(name string) Logger {
	return Get().Named(name)
}

// Sync exists for symmetry with buffering backends; the slog text handler
// writes through, so there is nothing to flush.
func Sync() error {
	return nil
}

// SetLevel changes the level of every logger derived from the global one.
func SetLevel(level slog.Level) { levelVar.Set(level) }

// levelNames maps config strings to slog levels. The empty string keeps
// the info default so an unset config field is not an error.
var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"":        slog.LevelInfo,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// SetLevelString applies a level given by name, case-insensitively.
func SetLevelString(level string) error {
	lvl, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		return fmt.Errorf("unknown log level: %s", level)
	}
	SetLevel(lvl)
	return nil
}
