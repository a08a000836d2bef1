// Package logger centralizes log setup so every package emits through the
// same slog handler; level and format come from the environment.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Process-wide logger, reused to keep output consistent across packages.
var defaultLogger *slog.Logger

// Setup initializes the default logger from LOG_LEVEL and LOG_FORMAT.
// Output goes to stderr; file handles and aggregation are not managed here.
func Setup() *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return SetupLevel(lvl)
}

// SetupLevel initializes the default logger at an explicit level, used by the
// CLIs to map -v counts onto slog levels. LOG_FORMAT=json switches handlers.
func SetupLevel(lvl slog.Level) *slog.Logger {
	var h slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	} else {
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}
	defaultLogger = slog.New(h)
	return defaultLogger
}

// L returns the default logger, initializing it on first use.
func L() *slog.Logger {
	if defaultLogger == nil {
		return Setup()
	}
	return defaultLogger
}
