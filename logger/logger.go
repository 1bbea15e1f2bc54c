// Package logger constructs the process-wide zerolog sink. The server logs
// one record per line with timestamp, level and file:line; correlation ids
// (conn, req, worker) are attached by the components through With().
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Options configures the sink.
type Options struct {
	Level   string // debug, info, warn, error
	File    string // append-only log file; empty disables the file sink
	Console bool   // mirror records to stdout
}

// New builds a logger from opts. The file is opened append-only; failure to
// open it degrades to stdout-only with a warning rather than aborting.
func New(opts Options) zerolog.Logger {
	var writers []io.Writer
	if opts.Console {
		writers = append(writers, os.Stdout)
	}

	var fileErr error
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fileErr = err
		} else {
			writers = append(writers, f)
		}
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	log := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(opts.Level)).
		With().Timestamp().Caller().Logger()

	if fileErr != nil {
		log.Warn().Err(fileErr).Str("file", opts.File).Msg("log file unavailable, logging to stdout only")
	}
	return log
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
