package logging

import (
	"io"
	"log/slog"
	"os"
)

// ParseLevel maps a config log level to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup configures the global slog logger based on the log level and optional
// log file, and returns it.
func Setup(level string, logFile string) *slog.Logger {
	var writer io.Writer = os.Stderr
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			writer = io.MultiWriter(os.Stderr, f)
		}
	}

	logger := New(writer, level)
	slog.SetDefault(logger)
	return logger
}

// New creates a text logger writing to w
func New(w io.Writer, level string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	return slog.New(handler)
}
