// Package corelog configures the process-wide slog logger. Ported from the
// teacher's libs/go/core/logging package: JSON vs text handler selected by
// an environment flag, level configurable the same way.
package corelog

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures slog.Default() for the given service name and returns the
// logger for callers that want an explicit handle.
func Init(service string) *slog.Logger {
	mode := strings.ToLower(os.Getenv("DRAGONFLY_JSON_LOG"))
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: levelFromEnv()}
	if mode == "1" || mode == "true" || mode == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	return logger
}

func levelFromEnv() slog.Leveler {
	switch strings.ToLower(os.Getenv("DRAGONFLY_LOG_LEVEL")) {
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
