// Package util provides helper functions for logging events and for virtual
// serial ports used in local testing.
package util

import (
	"fmt"
	"log"
	"log/slog"
	"os"
)

// SetupLogger routes slog and the legacy stdlib log through one text
// handler on stderr.
func SetupLogger() {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(h))
	log.SetOutput(os.Stderr)
}

// Info logs general system information messages.
func Info(msg string, args ...any) {
	slog.Info(fmt.Sprintf(msg, args...))
}

// Error logs error messages.
func Error(msg string, args ...any) {
	slog.Error(fmt.Sprintf(msg, args...))
}
