package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRecordError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	tracer := tp.Tracer(InstrumentationName)

	ctx, span := tracer.Start(context.Background(), SpanEnter)
	assert.NotEmpty(t, TraceID(ctx))
	RecordError(span, nil)
	RecordError(span, errors.New("boom"))
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	assert.Len(t, spans[0].Events(), 1)
}

func TestTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
}

func TestAttributes(t *testing.T) {
	assert.Equal(t, "db", Module("db").Value.AsString())
	assert.Equal(t, "enabled", State("enabled").Value.AsString())
	assert.Equal(t, "loaded", Previous("loaded").Value.AsString())
	assert.Equal(t, "r-1", RunID("r-1").Value.AsString())
	assert.EqualValues(t, 3, Modules(3).Value.AsInt64())
	assert.NotNil(t, Tracer())
}
