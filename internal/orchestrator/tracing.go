package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	traceScope = "arena.orchestrator"

	traceSpanRun  = "arena.run"
	traceSpanUnit = "arena.unit"
	traceSpanStep = "arena.step"

	traceAttrMode   = "arena.mode"
	traceAttrUnitID = "arena.unit_id"
	traceAttrStepID = "arena.step_id"
	traceAttrIntent = "arena.intent"
	traceAttrWinner = "arena.winner"
	traceAttrStatus = "arena.status"
)

func startSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(traceScope).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

func markSpanStatus(span trace.Span, failed bool, detail string) {
	if span == nil {
		return
	}
	if failed {
		span.SetStatus(codes.Error, detail)
		span.SetAttributes(attribute.String(traceAttrStatus, "failed"))
		return
	}
	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.String(traceAttrStatus, "completed"))
}
