// Package log provides structured, colored logging for the puzzle tools.
package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Component loggers for different parts of the system.
var (
	Engine  zerolog.Logger
	Node    zerolog.Logger
	Book    zerolog.Logger
	Storage zerolog.Logger
	CLI     zerolog.Logger
)

// out is where logs go. Standard output is left to command results.
var out io.Writer = os.Stderr

func init() {
	// Default to colored console output
	Logger = NewConsoleLogger(out, "info")
	initComponentLoggers()
}

// Init initializes the logger with the given configuration.
// When file is non-empty, logs are written to both the console (colored or
// JSON depending on jsonOutput) and the file (always JSON for machine parsing).
func Init(level string, jsonOutput bool, file string) error {
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}

		lvl := parseLevel(level)

		// Console writer: colored or JSON per flag.
		var consoleWriter io.Writer
		if jsonOutput {
			consoleWriter = out
		} else {
			consoleWriter = zerolog.ConsoleWriter{
				Out:        out,
				TimeFormat: "15:04:05",
				NoColor:    false,
			}
		}

		// File writer: always JSON (no ANSI codes, structured for parsing).
		multi := zerolog.MultiLevelWriter(consoleWriter, f)
		Logger = zerolog.New(multi).
			Level(lvl).
			With().
			Timestamp().
			Logger()
	} else if jsonOutput {
		Logger = NewJSONLogger(out, level)
	} else {
		Logger = NewConsoleLogger(out, level)
	}

	initComponentLoggers()
	return nil
}

// SetOutput redirects console logging and rebuilds the loggers at level.
// Tests use it to capture or silence output.
func SetOutput(w io.Writer, level string) {
	out = w
	Logger = NewJSONLogger(w, level)
	initComponentLoggers()
}

// NewConsoleLogger creates a colored console logger.
func NewConsoleLogger(w io.Writer, level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		NoColor:    false,
	}

	lvl := parseLevel(level)
	return zerolog.New(output).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// NewJSONLogger creates a structured JSON logger.
func NewJSONLogger(w io.Writer, level string) zerolog.Logger {
	lvl := parseLevel(level)
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// parseLevel converts a string level to zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "off", "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// ValidLevel reports whether level is one Init understands.
func ValidLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error", "off", "disabled":
		return true
	}
	return false
}

// initComponentLoggers initializes loggers for each component.
func initComponentLoggers() {
	Engine = Logger.With().Str("component", "engine").Logger()
	Node = Logger.With().Str("component", "node").Logger()
	Book = Logger.With().Str("component", "book").Logger()
	Storage = Logger.With().Str("component", "storage").Logger()
	CLI = Logger.With().Str("component", "cli").Logger()
}

// WithPuzzle returns a component logger tagged with a puzzle commitment.
func WithPuzzle(base zerolog.Logger, hash string) zerolog.Logger {
	return base.With().Str("puzzle", hash).Logger()
}
