package commands

import (
	"log/slog"
	"os"

	"github.com/allisson/filevault/internal/config"
)

// newLogger builds a structured JSON logger at the level configured by cfg,
// matching the level-selection logic the rest of the stack uses.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
