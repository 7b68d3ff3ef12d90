// Package logging builds the zerolog logger shared by every component.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel   = "VIGIL_LOG_LEVEL"
	EnvLogNoColor = "VIGIL_LOG_NOCOLOR"
	EnvLogJSON    = "VIGIL_LOG_JSON"
)

// Options configure New. Environment variables override them.
type Options struct {
	Level   string
	NoColor bool
	// JSON writes raw JSON lines instead of the console format.
	JSON bool
}

// New returns a logger writing to w. A nil w writes to stderr.
func New(opts Options, w io.Writer) zerolog.Logger {
	applyEnvOverrides(&opts)
	if w == nil {
		w = os.Stderr
	}

	level, ok := parseLevel(opts.Level)
	if !ok {
		level = zerolog.InfoLevel
	}

	out := w
	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: w, NoColor: opts.NoColor, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func applyEnvOverrides(opts *Options) {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		if _, ok := parseLevel(v); ok {
			opts.Level = v
		}
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		opts.NoColor = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogJSON)); ok {
		opts.JSON = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
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

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
