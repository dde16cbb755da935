// Package logger provides leveled logging with support for debug, info, warn, and error levels.
// It keeps a printf-style package API and hands records to log/slog, so the configured
// format (json or text) controls the handler.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level represents a logging level
type Level int

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel Level = iota
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual human review.
	WarnLevel
	// ErrorLevel logs are high-priority. If an application is running smoothly, it shouldn't generate any error-level logs.
	ErrorLevel
)

func (l Level) slogLevel() slog.Level {
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

// ParseLevel maps a config string to a Level. Unknown values yield InfoLevel.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

var (
	// Global logger instance
	defaultLogger *slog.Logger
)

// Init initializes the default logger with the specified level and format.
// Output goes to stderr unless w is given.
func Init(level string, format string, w ...io.Writer) {
	var out io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		out = w[0]
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(level).slogLevel()}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	defaultLogger = slog.New(handler).With(slog.String("app", "churnwatch"))
}

func logf(level slog.Level, format string, args ...interface{}) {
	if defaultLogger == nil {
		return
	}
	ctx := context.Background()
	if !defaultLogger.Enabled(ctx, level) {
		return
	}
	defaultLogger.Log(ctx, level, fmt.Sprintf(format, args...))
}

// Debug logs a message at DebugLevel
func Debug(format string, args ...interface{}) {
	logf(slog.LevelDebug, format, args...)
}

// Info logs a message at InfoLevel
func Info(format string, args ...interface{}) {
	logf(slog.LevelInfo, format, args...)
}

// Warn logs a message at WarnLevel
func Warn(format string, args ...interface{}) {
	logf(slog.LevelWarn, format, args...)
}

// Error logs a message at ErrorLevel
func Error(format string, args ...interface{}) {
	logf(slog.LevelError, format, args...)
}

// Fatal logs a message at ErrorLevel and exits
func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if defaultLogger != nil {
		defaultLogger.Error(msg, slog.Bool("fatal", true))
	} else {
		fmt.Fprintln(os.Stderr, "[FATAL] "+msg)
	}
	os.Exit(1)
}
