package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

var trace atomic.Bool

// SetTrace toggles fan-out tracing: one DEBUG line per subscriber per event.
func SetTrace(on bool) { trace.Store(on) }

// Trace logs msg at DEBUG when tracing is on.
func Trace(logger *slog.Logger, msg string, args ...any) {
	if trace.Load() {
		logger.Log(context.Background(), slog.LevelDebug, msg, args...)
	}
}
