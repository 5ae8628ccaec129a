package logger

import (
	"context"
	"fmt"
	"log/slog"
)

// Printf adapts a slog.Logger to the printf-style callbacks third-party
// drivers expect, tagging every line with the component name.
func Printf(log *slog.Logger, level slog.Level, component string) func(string, ...interface{}) {
	return func(format string, args ...interface{}) {
		if log == nil {
			return
		}
		log.Log(context.Background(), level, fmt.Sprintf(format, args...), "component", component)
	}
}
