// Package logging builds the command's logger from the environment.
package logging

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/xyproto/env/v2"
)

// New returns a logger writing to w, configured by environment variables:
//
//	FNCOPY_LOG_LEVEL: debug, info, warn, error (default: warn)
//	FNCOPY_LOG_PREFIX: prefix for log messages (default: "fncopy")
//
// debug forces the debug level.
func New(w io.Writer, debug bool) *log.Logger {
	lg := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          env.Str("FNCOPY_LOG_PREFIX", "fncopy"),
	})

	level, err := log.ParseLevel(env.Str("FNCOPY_LOG_LEVEL", "warn"))
	if err != nil {
		level = log.WarnLevel
	}
	if debug {
		level = log.DebugLevel
	}
	lg.SetLevel(level)

	return lg
}
