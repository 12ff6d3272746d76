package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Log is usable before Init so packages can log from tests without setup.
var Log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func Init(level string) {
	InitTo(os.Stdout, level)
}

// InitTo is Init with the log output sent to w.
func InitTo(w io.Writer, level string) {
	// JSON handler for production-ready logging
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	Log = slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
