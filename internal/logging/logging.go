// Package logging holds the process-wide zerolog logger.
//
// Diagnostics share stderr with command output, so by default only warnings
// and errors are written. --log-level and --print-logs lower the threshold.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var logger zerolog.Logger

// Config holds logger configuration.
type Config struct {
	Level  zerolog.Level
	Output io.Writer
	// Pretty writes "15:04:05 WRN message key=value" lines instead of JSON.
	Pretty bool
}

// DefaultConfig is what the front end starts with.
func DefaultConfig() Config {
	return Config{
		Level:  zerolog.WarnLevel,
		Output: os.Stderr,
		Pretty: true,
	}
}

// Init replaces the global logger.
func Init(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			NoColor:    true,
		}
	}

	logger = zerolog.New(out).
		Level(cfg.Level).
		With().
		Timestamp().
		Int("pid", os.Getpid()).
		Logger()
}

// ParseLevel maps a level name (DEBUG, INFO, WARN, ERROR, OFF) to a zerolog
// level. Unknown names return WarnLevel and false.
func ParseLevel(name string) (zerolog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG", "TRACE":
		return zerolog.DebugLevel, true
	case "INFO":
		return zerolog.InfoLevel, true
	case "WARN", "WARNING":
		return zerolog.WarnLevel, true
	case "ERROR":
		return zerolog.ErrorLevel, true
	case "OFF", "NONE":
		return zerolog.Disabled, true
	default:
		return zerolog.WarnLevel, false
	}
}

// ForCommand returns a logger that tags every message with the command name.
func ForCommand(name string) zerolog.Logger {
	return logger.With().Str("cmd", name).Logger()
}

func Debug() *zerolog.Event {
	return logger.Debug()
}

func Warn() *zerolog.Event {
	return logger.Warn()
}

func init() {
	Init(DefaultConfig())
}
