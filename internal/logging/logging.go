// Package logging configures the process-wide zerolog logger. Everything is
// written to stderr: in every mode stdout belongs to the host protocol or the
// command's own output and must stay clean.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const (
	// EnvLogLevel overrides the configured log level.
	EnvLogLevel = "TWLAUNCH_LOG_LEVEL"
	// EnvLogNoColor disables the console writer's colors.
	EnvLogNoColor = "TWLAUNCH_LOG_NOCOLOR"
)

var (
	configureOnce sync.Once
	root          zerolog.Logger
)

// Configure sets up the root logger once. level comes from config; verbose
// forces debug. Later calls are no-ops.
func Configure(level string, verbose bool) {
	configureOnce.Do(func() {
		lvl := parseLevel(level)
		if verbose {
			lvl = zerolog.DebugLevel
		}
		if env, ok := lookupLevel(os.Getenv(EnvLogLevel)); ok {
			lvl = env
		}

		var out io.Writer = os.Stderr
		if isatty.IsTerminal(os.Stderr.Fd()) {
			out = zerolog.ConsoleWriter{
				Out:     os.Stderr,
				NoColor: os.Getenv(EnvLogNoColor) != "",
			}
		}

		root = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	})
}

// L returns the root logger. Configure must have been called; otherwise a
// disabled logger is returned.
func L() zerolog.Logger {
	return root
}

// Component returns a child logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return root.With().Str("component", name).Logger()
}

func parseLevel(raw string) zerolog.Level {
	if lvl, ok := lookupLevel(raw); ok {
		return lvl
	}
	return zerolog.InfoLevel
}

func lookupLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}
