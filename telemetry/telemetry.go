// Package telemetry defines the logging and tracing seams used across the
// workflow engine, runner, and queues. Components depend on these small
// interfaces rather than concrete backends so tests can run silent and
// deployments can plug in clue/OTEL without touching execution code.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/codes"
)

type (
	// Logger emits structured log records. Keyvals are alternating
	// key/value pairs; non-string keys are dropped.
	Logger interface {
		// Debug emits a debug-level record.
		Debug(ctx context.Context, msg string, keyvals ...any)
		// Info emits an info-level record.
		Info(ctx context.Context, msg string, keyvals ...any)
		// Warn emits a warning-level record.
		Warn(ctx context.Context, msg string, keyvals ...any)
		// Error emits an error-level record. err may be nil.
		Error(ctx context.Context, err error, msg string, keyvals ...any)
	}

	// Tracer starts spans around graph and node execution.
	Tracer interface {
		// Start opens a span with the given name and alternating key/value
		// attributes, returning the derived context and the span handle.
		Start(ctx context.Context, name string, keyvals ...any) (context.Context, Span)
	}

	// Span is a minimal span handle.
	Span interface {
		// End finalizes the span.
		End()
		// RecordError records err on the span and marks it failed.
		RecordError(err error)
		// SetStatus sets the span status code and description.
		SetStatus(code codes.Code, description string)
	}
)
