// Package logging builds the application logger.
//
// Console output is human-readable on stderr. When a file is configured,
// JSON records are also written there and rotated by size.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config configures the logger.
type Config struct {
	// Level is one of trace, debug, info, warn, error.
	Level string

	// Console writes human-readable output to Stderr. Default output when
	// no File is set.
	Console bool

	// File receives JSON logs. Empty disables file output.
	File string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Stderr overrides os.Stderr for console output.
	Stderr io.Writer
}

// Logger wraps a zerolog.Logger with the closer of its file output.
type Logger struct {
	zerolog.Logger
	file *lumberjack.Logger
}

// New creates a logger from cfg.
func New(cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	var writers []io.Writer
	if cfg.Console || cfg.File == "" {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        stderr,
			TimeFormat: time.TimeOnly,
		})
	}

	l := &Logger{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		l.file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		writers = append(writers, l.file)
	}

	var out io.Writer = writers[0]
	if len(writers) > 1 {
		out = zerolog.MultiLevelWriter(writers...)
	}
	l.Logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
	return l, nil
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Rotate starts a new log file. It does nothing without file output.
func (l *Logger) Rotate() error {
	if l.file == nil {
		return nil
	}
	return l.file.Rotate()
}

// ParseLevel parses a level name. An empty name is info.
func ParseLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q", name)
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}
