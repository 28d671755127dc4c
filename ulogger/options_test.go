package ulogger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	require.NotNil(t, opts)

	assert.Equal(t, "zerolog", opts.loggerType)
	assert.Equal(t, "INFO", opts.logLevel)
	assert.Equal(t, 0, opts.skip)
	assert.NotNil(t, opts.writer)
	assert.NotEmpty(t, opts.filePath)
}

func TestOptionApplication(t *testing.T) {
	buf := &bytes.Buffer{}

	opts := DefaultOptions()
	for _, o := range []Option{
		WithLevel("DEBUG"),
		WithWriter(buf),
		WithLoggerType("gocore"),
		WithSkipFrame(3),
		WithFilePath("/tmp/x.log"),
	} {
		o(opts)
	}

	assert.Equal(t, "DEBUG", opts.logLevel)
	assert.Equal(t, buf, opts.writer)
	assert.Equal(t, "gocore", opts.loggerType)
	assert.Equal(t, 3, opts.skip)
	assert.Equal(t, "/tmp/x.log", opts.filePath)
}
