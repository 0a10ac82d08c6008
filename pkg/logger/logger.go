package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

const BritishTimeFormat = "02.01.2006 15:04:05"

const logFileMode = 0o644

// Config represents logger configuration from environment/config
// LogLevel is a string like "debug", "info", "error";
// LogHumanFriendly toggles between text (true) and JSON (false);
// LogFile, when set, receives a JSON copy of every record.
type Config struct {
	LogLevel         string
	LogHumanFriendly bool
	LogFile          string
}

// ParseLevel converts a string to slog.Level, defaulting to Info on error.
func ParseLevel(level string) slog.Level {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(level))
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// NewFromConfig creates a slog.Logger writing to stderr based on Config.
// Stdout is left to command output.
func NewFromConfig(cfg Config) *slog.Logger {
	return slog.New(consoleHandler(os.Stderr, cfg))
}

// NewWithFile creates a logger that fans out to stderr and, when cfg.LogFile
// is set, to a JSON log file. The returned cleanup closes the file.
func NewWithFile(cfg Config) (*slog.Logger, func() error, error) {
	if cfg.LogFile == "" {
		return NewFromConfig(cfg), func() error { return nil }, nil
	}

	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFileMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.LogFile, err)
	}

	return NewWithWriters(os.Stderr, file, cfg), file.Close, nil
}

// NewWithWriters creates a logger writing to console and, as JSON, to file
func NewWithWriters(console, file io.Writer, cfg Config) *slog.Logger {
	fileHandler := slog.NewJSONHandler(file, handlerOptions(cfg))
	return slog.New(slogmulti.Fanout(consoleHandler(console, cfg), fileHandler))
}

func consoleHandler(w io.Writer, cfg Config) slog.Handler {
	if cfg.LogHumanFriendly {
		return slog.NewTextHandler(w, handlerOptions(cfg))
	}
	return slog.NewJSONHandler(w, handlerOptions(cfg))
}

func handlerOptions(cfg Config) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level:     ParseLevel(cfg.LogLevel),
		AddSource: false,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				// Format time as British timestamp
				return slog.String(slog.TimeKey, a.Value.Time().Format(BritishTimeFormat))
			}
			return a
		},
	}
}
