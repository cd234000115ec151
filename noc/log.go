package noc

import (
	"context"
	"log/slog"
)

// LevelTrace is the level of per-flit trace messages.
const LevelTrace slog.Level = slog.LevelInfo + 1

// Trace logs a message at trace level.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}
