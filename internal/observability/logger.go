// Package observability configures the process-wide structured logger.
package observability

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs a JSON slog handler writing to stderr as the default
// logger. Unknown level names fall back to info.
func Setup(level string) {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
