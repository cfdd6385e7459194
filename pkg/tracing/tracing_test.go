package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartRecordsErrors(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	_, end := Start(context.Background(), "test", "ok", attribute.String("k", "v"))
	end(nil)
	_, end = Start(context.Background(), "test", "failed")
	end(errors.New("boom"))

	spans := rec.Ended()
	if assert.Len(t, spans, 2) {
		assert.Equal(t, "ok", spans[0].Name())
		assert.Empty(t, spans[0].Events())
		assert.Equal(t, "failed", spans[1].Name())
		assert.Len(t, spans[1].Events(), 1)
	}
}
