package services

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/custodia-labs/studyrag/internal/core/services"

// The global providers delegate, so instruments created here follow
// whatever provider main installs later.
var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)

	ingestionJobs, _ = meter.Int64Counter("studyrag.ingestion.jobs",
		metric.WithDescription("Ingestion jobs by terminal status"))
	embeddingRetries, _ = meter.Int64Counter("studyrag.embedding.retries",
		metric.WithDescription("Embedding batch retries"))
	queries, _ = meter.Int64Counter("studyrag.queries",
		metric.WithDescription("Answered queries by outcome"))
)

func count(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// traceID returns the active span's trace id, or a fresh uuid when tracing is off.
func traceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return uuid.New().String()
}
