package store

import (
	"fmt"
	"log/slog"
	"os"
)

// DebugEnv toggles diagnostic logging; it is read at call time so callers can
// flip it between invocations without rebuilding state
const DebugEnv = "MORPHEIN_DEBUG"

var debugLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

func debugf(format string, args ...interface{}) {
	if os.Getenv(DebugEnv) == "" {
		return
	}
	debugLogger.Debug(fmt.Sprintf(format, args...))
}
