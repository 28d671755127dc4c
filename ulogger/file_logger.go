package ulogger

import (
	"log"
	"os"

	"github.com/rs/zerolog"
)

// NewFileLogger returns a zerolog backed logger that appends JSON lines to the
// configured log file instead of stdout.
func NewFileLogger(service string, options ...Option) *ZLoggerWrapper {
	if service == "" {
		service = "walletnode"
	}

	opts := DefaultOptions()
	for _, o := range options {
		o(opts)
	}

	f, err := os.OpenFile(opts.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("failed to open log file %s: %v", opts.filePath, err)
	}

	z := &ZLoggerWrapper{
		zerolog.New(f).With().
			CallerWithSkipFrameCount(zerolog.CallerSkipFrameCount + 2).
			Timestamp().
			Logger(),
		service,
		f,
	}

	z.SetLogLevel(opts.logLevel)

	return z
}
