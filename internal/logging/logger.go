package logging

import (
	"log/slog"
	"os"
)

// InitLogger configures the process-wide slog logger.
// level: "debug", "info", "warn", "error" (defaults to "info")
// format: "json" or "text" (defaults to "text")
func InitLogger(level, format string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// WithStream returns a logger with the stream_user field attached.
func WithStream(streamUser string) *slog.Logger {
	return slog.Default().With("stream_user", streamUser)
}

// WithGeneration returns a logger with the session generation attached.
func WithGeneration(generation uint64) *slog.Logger {
	return slog.Default().With("generation", generation)
}
