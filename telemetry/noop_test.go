package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
)

func TestNoopImplementationsAreSafe(t *testing.T) {
	ctx := context.Background()
	var log Logger = NewNoopLogger()
	log.Debug(ctx, "msg", "k", "v")
	log.Info(ctx, "msg")
	log.Warn(ctx, "msg", "k", 1)
	log.Error(ctx, errors.New("boom"), "msg")
	log.Error(ctx, nil, "msg")

	var tr Tracer = NewNoopTracer()
	sctx, span := tr.Start(ctx, "span", "k", "v")
	if sctx == nil {
		t.Fatal("noop tracer must return a context")
	}
	span.RecordError(errors.New("boom"))
	span.SetStatus(codes.Error, "failed")
	span.End()
}
