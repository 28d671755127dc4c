package ulogger

import (
	"io"
	"os"

	"github.com/ordishs/gocore"
)

type Options struct {
	loggerType string
	logLevel   string
	skip       int
	writer     io.Writer
	filePath   string
}

type Option func(*Options)

func DefaultOptions() *Options {
	loggerType, _ := gocore.Config().Get("logger_type", "zerolog")
	logLevel, _ := gocore.Config().Get("logLevel", "INFO")
	filePath, _ := gocore.Config().Get("log_file_path", "walletnode.log")

	return &Options{
		loggerType: loggerType,
		logLevel:   logLevel,
		skip:       0,
		writer:     os.Stdout,
		filePath:   filePath,
	}
}

// WithLevel sets the minimum level the logger will emit.
func WithLevel(logLevel string) Option {
	return func(o *Options) {
		o.logLevel = logLevel
	}
}

// WithWriter sets the destination the logger writes to.
func WithWriter(w io.Writer) Option {
	return func(o *Options) {
		o.writer = w
	}
}

// WithLoggerType selects the logger implementation: zerolog, gocore or file.
func WithLoggerType(loggerType string) Option {
	return func(o *Options) {
		o.loggerType = loggerType
	}
}

// WithSkipFrame adjusts the number of stack frames skipped when reporting the caller.
func WithSkipFrame(skip int) Option {
	return func(o *Options) {
		o.skip = skip
	}
}

// WithFilePath sets the output file used by the file logger.
func WithFilePath(path string) Option {
	return func(o *Options) {
		o.filePath = path
	}
}
