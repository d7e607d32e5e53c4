package slogx

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel converts string (debug|info|warn|error) to slog.Level. Unknown → info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewDefault creates a logger writing to stderr with the given level string.
func NewDefault(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}

// Options configure New.
type Options struct {
	Level      string
	File       string // optional rotated log file, written in addition to stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New creates a text logger on stderr, teeing into a rotated file when
// o.File is set. The returned closer releases the file and is never nil.
func New(o Options) (*slog.Logger, io.Closer) {
	if o.File == "" {
		return NewDefault(o.Level), nopCloser{}
	}
	lj := &lumberjack.Logger{
		Filename:   o.File,
		MaxSize:    o.MaxSizeMB, // MB, 0 → lumberjack default
		MaxBackups: o.MaxBackups,
		MaxAge:     o.MaxAgeDays, // days
	}
	h := slog.NewTextHandler(io.MultiWriter(os.Stderr, lj), &slog.HandlerOptions{
		Level: ParseLevel(o.Level),
	})
	return slog.New(h), lj
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
