// Package sysutil holds process-level helpers shared by the binaries.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetLogLevel sets the global zerolog level. Unknown values mean info.
func SetLogLevel(lvl string) {
	lvl = strings.ToLower(strings.TrimSpace(lvl))
	level, err := zerolog.ParseLevel(lvl)
	if lvl == "warning" {
		level, err = zerolog.WarnLevel, nil
	}
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// ConfigureLogger installs the global logger: JSON lines on w, or a console
// writer when pretty is set.
func ConfigureLogger(w io.Writer, level string, pretty bool) {
	if w == nil {
		w = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	SetLogLevel(level)
}

// FirstNonEmpty returns the first value that is not blank.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
