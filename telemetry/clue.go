package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"
)

type (
	// ClueLogger delegates to goa.design/clue/log. Formatting and debug
	// settings are read from the context (set via log.Context and
	// log.WithFormat/log.WithDebug).
	ClueLogger struct{}

	// OTELTracer delegates to the global OTEL TracerProvider. Configure the
	// provider via otel.SetTracerProvider (typically clue.ConfigureOpenTelemetry)
	// before executing graphs.
	OTELTracer struct {
		tracer trace.Tracer
	}

	otelSpan struct {
		span trace.Span
	}
)

// NewClueLogger constructs a Logger backed by goa.design/clue/log.
func NewClueLogger() Logger {
	return ClueLogger{}
}

// NewOTELTracer constructs a Tracer backed by the global OTEL TracerProvider.
func NewOTELTracer() Tracer {
	return &OTELTracer{tracer: otel.Tracer("github.com/ohnodev/obelisk-core")}
}

// Debug emits a debug-level log message with structured key-value pairs.
func (ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, fielders(msg, keyvals)...)
}

// Info emits an info-level log message with structured key-value pairs.
func (ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, fielders(msg, keyvals)...)
}

// Warn emits a warning-level log message with structured key-value pairs.
func (ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	log.Warn(ctx, fielders(msg, keyvals)...)
}

// Error emits an error-level log message with structured key-value pairs.
func (ClueLogger) Error(ctx context.Context, err error, msg string, keyvals ...any) {
	log.Error(ctx, err, fielders(msg, keyvals)...)
}

// Start opens an OTEL span with the given name and attributes.
func (t *OTELTracer) Start(ctx context.Context, name string, keyvals ...any) (context.Context, Span) {
	newCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs(keyvals)...))
	return newCtx, &otelSpan{span: span}
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s *otelSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

func fielders(msg string, keyvals []any) []log.Fielder {
	fs := []log.Fielder{log.KV{K: "msg", V: msg}}
	for i := 0; i < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		fs = append(fs, log.KV{K: k, V: v})
	}
	return fs
}

func attrs(keyvals []any) []attribute.KeyValue {
	var out []attribute.KeyValue
	for i := 0; i < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		switch val := v.(type) {
		case string:
			out = append(out, attribute.String(k, val))
		case int:
			out = append(out, attribute.Int(k, val))
		case int64:
			out = append(out, attribute.Int64(k, val))
		case float64:
			out = append(out, attribute.Float64(k, val))
		case bool:
			out = append(out, attribute.Bool(k, val))
		default:
			out = append(out, attribute.String(k, ""))
		}
	}
	return out
}
