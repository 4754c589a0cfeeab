// Package logging builds the process logger: JSON lines on stdout, and
// optionally on a size-rotated file as well.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the level and the optional log file.
type Config struct {
	Level string // debug, info, warn or error (default: info)
	File  string // Rotated log file; empty logs to stdout only.
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// New returns the logger and a closer for the log file. An unknown level
// falls back to info and is reported on the returned logger.
func New(cfg Config) (*slog.Logger, io.Closer) {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg Config, stdout io.Writer) (*slog.Logger, io.Closer) {
	level, levelErr := ParseLevel(cfg.Level)

	w := stdout
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    64, // MB
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		}
		w = io.MultiWriter(stdout, file)
		closer = file
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	if levelErr != nil {
		logger.Warn("invalid log level, using info", "component", "logging", "error", levelErr)
	}
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
