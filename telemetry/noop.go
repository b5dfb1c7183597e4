package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/codes"
)

type (
	// NoopLogger is a no-op implementation of Logger that discards all log messages.
	NoopLogger struct{}

	// NoopTracer is a no-op implementation of Tracer that creates no-op spans.
	NoopTracer struct{}

	noopSpan struct{}
)

// NewNoopLogger constructs a Logger that discards all log messages.
// Use this for testing or when logging is not required.
func NewNoopLogger() Logger {
	return NoopLogger{}
}

// NewNoopTracer constructs a Tracer that creates no-op spans.
// Use this for testing or when tracing is not required.
func NewNoopTracer() Tracer {
	return NoopTracer{}
}

// Debug discards the log message.
func (NoopLogger) Debug(context.Context, string, ...any) {}

// Info discards the log message.
func (NoopLogger) Info(context.Context, string, ...any) {}

// Warn discards the log message.
func (NoopLogger) Warn(context.Context, string, ...any) {}

// Error discards the log message.
func (NoopLogger) Error(context.Context, error, string, ...any) {}

// Start returns a no-op span without modifying the context.
func (NoopTracer) Start(ctx context.Context, _ string, _ ...any) (context.Context, Span) {
	return ctx, noopSpan{}
}

// End is a no-op.
func (noopSpan) End() {}

// RecordError is a no-op.
func (noopSpan) RecordError(error) {}

// SetStatus is a no-op.
func (noopSpan) SetStatus(codes.Code, string) {}
