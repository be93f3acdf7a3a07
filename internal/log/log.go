// Package log provides structured logging for go-jetcam.
// It wraps slog with sensible defaults for production use.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	level  = &slog.LevelVar{}
	mu     sync.RWMutex
)

// Init initializes the global logger.
// Valid levels: "debug", "info", "warn", "error".
// Valid formats: "text", "json". An empty format picks JSON when
// GO_ENV=production and text otherwise.
func Init(lvl, format string) {
	if format == "" {
		format = "text"
		if os.Getenv("GO_ENV") == "production" {
			format = "json"
		}
	}

	level.Set(ParseLevel(lvl))
	l := New(os.Stderr, level, format)

	mu.Lock()
	logger = l
	mu.Unlock()

	slog.SetDefault(l)
}

// New builds a logger writing to w. It does not touch the global logger.
func New(w io.Writer, lvl slog.Leveler, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: lvl,
	}

	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a level name to a slog.Level. Unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// SetLevel changes the global level at runtime.
func SetLevel(lvl string) {
	level.Set(ParseLevel(lvl))
}

// L returns the global logger instance.
func L() *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()

	if l == nil {
		Init("info", "")
		return L()
	}
	return l
}

// Named returns a logger tagged with module=name.
func Named(name string) *slog.Logger {
	return L().With("module", name)
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}
