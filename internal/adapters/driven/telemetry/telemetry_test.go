package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewProvider_RecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp, err := NewProvider(context.Background(), Config{ServiceName: "studyrag-test", Version: "1.2.3"},
		sdktrace.WithSpanProcessor(rec))
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "query.answer")
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "query.answer", spans[0].Name())
	assert.Contains(t, spans[0].Resource().Attributes(), attribute.String("service.name", "studyrag-test"))
	assert.Contains(t, spans[0].Resource().Attributes(), attribute.String("service.version", "1.2.3"))
}
