package logger

import (
	"log/slog"
	"os"
	"strings"
)

// LevelCritical extends the standard slog levels for failures that require
// operator attention. It sits above slog.LevelError.
const LevelCritical = slog.Level(12)

// New creates a new slog.Logger instance with the specified logging level
// level can be: "debug", "info", "warning", "error", "critical"
// Default is "info"
func New(level string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, handlerOptions(level))
	return slog.New(handler)
}

// NewJSON creates a new slog.Logger with JSON output
func NewJSON(level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, handlerOptions(level))
	return slog.New(handler)
}

func handlerOptions(level string) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level:       ParseLevel(level),
		ReplaceAttr: renameCritical,
	}
}

// renameCritical renders LevelCritical as "CRITICAL" instead of "ERROR+4"
func renameCritical(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelCritical {
			a.Value = slog.StringValue("CRITICAL")
		}
	}
	return a
}

// ParseLevel converts a string level to slog.Level
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warning", "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "critical":
		return LevelCritical
	default:
		return slog.LevelInfo // Default to info
	}
}
