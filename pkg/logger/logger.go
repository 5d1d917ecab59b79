package logger

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

const (
	// EnvVarLogLevel is the environment variable name for setting the log level.
	EnvVarLogLevel = "LOG_LEVEL"

	// EnvVarLogFormat is the environment variable name for choosing "json" or "text" output.
	EnvVarLogFormat = "LOG_FORMAT"

	// FormatJSON writes one JSON object per record.
	FormatJSON = "json"

	// FormatText writes logfmt-style key=value records.
	FormatText = "text"
)

// Options describes a structured logger.
type Options struct {
	// Module is the name of the application using the logger.
	Module string
	// Version is the application version (e.g., "v1.0.0").
	Version string
	// Level is the log level as a string (e.g., "debug", "info", "warn", "error").
	Level string
	// Format is FormatJSON (default) or FormatText.
	Format string
	// Writer receives the output, os.Stderr when nil.
	Writer io.Writer
}

// FromEnv returns Options for module and version with level and format taken
// from LOG_LEVEL and LOG_FORMAT.
func FromEnv(module, version string) Options {
	return Options{
		Module:  module,
		Version: version,
		Level:   os.Getenv(EnvVarLogLevel),
		Format:  os.Getenv(EnvVarLogFormat),
	}
}

// NewStructuredLogger creates a new structured logger.
// Module name and version are included in every record.
// AddSource is enabled for debug level logging only.
func NewStructuredLogger(opts Options) *slog.Logger {
	lev := ParseLogLevel(opts.Level)
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	ho := &slog.HandlerOptions{
		Level:     lev,
		AddSource: lev <= slog.LevelDebug,
	}

	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), FormatText) {
		h = slog.NewTextHandler(w, ho)
	} else {
		h = slog.NewJSONHandler(w, ho)
	}

	return slog.New(h).With("module", opts.Module, "version", opts.Version)
}

// NewLogLogger returns a standard library log.Logger that writes through the
// default slog logger at the given level. Used as the http.Server error log.
func NewLogLogger(level slog.Level) *log.Logger {
	return slog.NewLogLogger(slog.Default().Handler(), level)
}

// SetDefaultLogger builds a structured logger from opts and makes it the default.
func SetDefaultLogger(opts Options) *slog.Logger {
	l := NewStructuredLogger(opts)
	slog.SetDefault(l)
	return l
}

// ParseLogLevel converts a string representation of a log level into a slog.Level.
// Defaults to slog.LevelInfo for unrecognized strings.
func ParseLogLevel(level string) slog.Level {
	var lev slog.Level

	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lev = slog.LevelDebug
	case "warn", "warning":
		lev = slog.LevelWarn
	case "error":
		lev = slog.LevelError
	default:
		lev = slog.LevelInfo
	}

	return lev
}
