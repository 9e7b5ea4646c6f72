// Package monlog provides structured logging for the engine using zerolog.
//
// Unlike the package-level global logger style, every collaborator that
// needs a logger receives one explicitly at construction — there is no
// process-wide singleton inside the engine, only the CLI wires one.
package monlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Level is a logging severity, matching MONARCH_LOG_LEVEL.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
	FatalLevel Level = "fatal"
)

// Config controls how New builds a logger.
type Config struct {
	Level      Level
	JSONOutput bool // matches MONARCH_LOG_FORMAT: json vs text
	Output     io.Writer
}

// New builds a zerolog.Logger from cfg. Invalid levels fall back to info
// rather than erroring, matching the environment contract in spec.md §6.
func New(cfg Config) zerolog.Logger {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	case FatalLevel:
		level = zerolog.FatalLevel
	default:
		level = zerolog.InfoLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var logger zerolog.Logger
	if cfg.JSONOutput {
		logger = zerolog.New(output).Level(level).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).Level(level).With().Timestamp().Logger()
	}
	return logger
}

// Component returns a child logger tagged with the given component name.
func Component(base zerolog.Logger, component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}

// WithCollection tags a logger with the collection it is operating on.
func WithCollection(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("collection", name).Logger()
}

// WithContainer tags a logger with the container key it is operating on.
func WithContainer(base zerolog.Logger, key string) zerolog.Logger {
	return base.With().Str("container_key", key).Logger()
}

// Nop returns a disabled logger, used as the default when none is supplied.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
