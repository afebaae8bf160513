// Logging bootstrap shared by all services
package utils

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

// InitLogger initializes the process-wide structured logger.
// Log level is taken from COMMAND_CENTRE_LOG_LEVEL (debug, info, warn, error).
func InitLogger() {
	loggerOnce.Do(func() {
		level := slog.LevelInfo
		switch strings.ToLower(os.Getenv("COMMAND_CENTRE_LOG_LEVEL")) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}

		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		logger = slog.New(handler)
		slog.SetDefault(logger)
	})
}

// GetLogger returns the process-wide logger, initializing it if needed.
func GetLogger() *slog.Logger {
	if logger == nil {
		InitLogger()
	}
	return logger
}

// MaskSensitiveString hides the middle of a secret for log and API output.
func MaskSensitiveString(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
