// Package logging sets up the agent's dual-sink logger: every line goes
// to stdout (for cron MAILTO) and to the persistent log file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// New builds a logger writing to stdout and the given file in append
// mode. The returned closer flushes and closes the file sink.
func New(logFile, level string) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", logFile, err)
	}

	handler := slog.NewTextHandler(
		io.MultiWriter(os.Stdout, file),
		&slog.HandlerOptions{Level: ParseLevel(level)},
	)
	return slog.New(handler), file, nil
}

// ParseLevel maps a config level string to a slog level, defaulting to Info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
