package tracing

import (
	"context"
	"time"

	"github.com/ordishs/gocore"
	"github.com/verdant-network/walletnode/ulogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TracerWrapper wraps an otel tracer with the Start helper used at the top of
// every traced operation in this codebase.
type TracerWrapper struct {
	tracer trace.Tracer
}

// Tracer returns a wrapper around the named otel tracer.
func Tracer(name string) *TracerWrapper {
	return &TracerWrapper{tracer: otel.Tracer(name)}
}

type startOptions struct {
	parentStat *gocore.Stat
	logger     ulogger.Logger
	logFormat  string
	logArgs    []interface{}
}

// StartOption configures a traced operation.
type StartOption func(*startOptions)

// WithParentStat records the operation duration as a child of the given
// gocore stat.
func WithParentStat(stat *gocore.Stat) StartOption {
	return func(o *startOptions) {
		o.parentStat = stat
	}
}

// WithLogMessage logs the message when the operation starts and again, with
// the elapsed time, when it finishes.
func WithLogMessage(logger ulogger.Logger, format string, args ...interface{}) StartOption {
	return func(o *startOptions) {
		o.logger = logger
		o.logFormat = format
		o.logArgs = args
	}
}

// Start begins a span for the named operation. It returns the span context,
// the span, and a defer function that ends the span and emits the configured
// stat and log output.
func (t *TracerWrapper) Start(ctx context.Context, operation string, opts ...StartOption) (context.Context, trace.Span, func()) {
	options := &startOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.logger != nil {
		options.logger.Infof(options.logFormat, options.logArgs...)
	}

	start := time.Now()
	startNanos := gocore.CurrentTime()

	spanCtx, span := t.tracer.Start(ctx, operation)

	deferFn := func() {
		span.End()

		if options.parentStat != nil {
			options.parentStat.NewStat(operation).AddTime(startNanos)
		}

		if options.logger != nil {
			options.logger.Debugf(options.logFormat+" DONE in %s", append(options.logArgs, time.Since(start).String())...)
		}
	}

	return spanCtx, span, deferFn
}
