// Package logging builds the slog loggers used by the dispatcher and its hosts.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Format selects the slog handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Sink selects where records are written.
type Sink string

const (
	SinkStderr Sink = "stderr"
	SinkFile   Sink = "file"
	SinkNone   Sink = "none"
)

// ErrInvalidConfig is returned for an unknown format or sink, or a file sink without a path.
var ErrInvalidConfig = errors.New("logging: invalid configuration")

// Config configures the logger.
type Config struct {
	// Level is debug, info, warn or error. Unknown values mean info.
	Level string `toml:"level" yaml:"level" json:"level" env:"LEVEL"`

	Format Format `toml:"format" yaml:"format" json:"format" env:"FORMAT"`
	Sink   Sink   `toml:"sink" yaml:"sink" json:"sink" env:"SINK"`

	// File is the log file path for the file sink.
	File string `toml:"file" yaml:"file" json:"file" env:"FILE"`

	// Rotation settings for the file sink.
	MaxSizeMB  int  `toml:"maxSizeMB" yaml:"maxSizeMB" json:"maxSizeMB" env:"MAX_SIZE_MB"`
	MaxBackups int  `toml:"maxBackups" yaml:"maxBackups" json:"maxBackups" env:"MAX_BACKUPS"`
	MaxAgeDays int  `toml:"maxAgeDays" yaml:"maxAgeDays" json:"maxAgeDays" env:"MAX_AGE_DAYS"`
	Compress   bool `toml:"compress" yaml:"compress" json:"compress" env:"COMPRESS"`

	// AddSource includes the caller position in each record.
	AddSource bool `toml:"addSource" yaml:"addSource" json:"addSource" env:"ADD_SOURCE"`
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     FormatText,
		Sink:       SinkStderr,
		MaxSizeMB:  20,
		MaxBackups: 5,
		MaxAgeDays: 7,
		Compress:   true,
	}
}

// Validate checks the format and sink.
func (c Config) Validate() error {
	switch c.Format {
	case FormatText, FormatJSON, "":
	default:
		return fmt.Errorf("%w: unknown format %q", ErrInvalidConfig, c.Format)
	}
	switch c.Sink {
	case SinkStderr, SinkNone, "":
	case SinkFile:
		if strings.TrimSpace(c.File) == "" {
			return fmt.Errorf("%w: file sink requires a path", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown sink %q", ErrInvalidConfig, c.Sink)
	}
	return nil
}

// ParseLevel parses a level name. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// New builds a logger from cfg. The returned closer releases the file sink
// and must be called when the logger is no longer used.
func New(cfg Config) (*slog.Logger, io.Closer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	w, closer, err := writer(cfg)
	if err != nil {
		return nil, nil, err
	}
	return slog.New(newHandler(w, cfg)), closer, nil
}

// NewWriter builds a logger that writes to w, ignoring the sink settings.
func NewWriter(w io.Writer, cfg Config) *slog.Logger {
	return slog.New(newHandler(w, cfg))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// WithComponent returns a logger with the component attribute set.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("component", component))
}

func newHandler(w io.Writer, cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level), AddSource: cfg.AddSource}
	if cfg.Format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func writer(cfg Config) (io.Writer, io.Closer, error) {
	switch cfg.Sink {
	case SinkNone:
		return io.Discard, nopCloser{}, nil
	case SinkFile:
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("logging: creating log directory: %w", err)
		}
		rot := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    positive(cfg.MaxSizeMB, 20),
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		return rot, rot, nil
	default:
		return os.Stderr, nopCloser{}, nil
	}
}

func positive(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
