package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestExtractEventMetaFallsBack(t *testing.T) {
	msg := kafka.Message{Topic: "booking.booking_created.v1", Key: []byte("bk-1")}
	meta := ExtractEventMeta(msg)
	assert.Empty(t, meta.EventID, "keys are not event ids")
	assert.Equal(t, "booking.booking_created.v1", meta.EventType)

	msg.Headers = EventMeta{EventID: "evt-9", EventType: "custom"}.Headers()
	meta = ExtractEventMeta(msg)
	assert.Equal(t, "evt-9", meta.EventID)
	assert.Equal(t, "custom", meta.EventType)
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitBrokers(" a:9092, ,b:9092 "))
	assert.Empty(t, SplitBrokers(""))
}

func TestTraceHeadersRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled,
	}))

	headers := InjectTraceHeaders(ctx, EventMeta{EventID: "e", EventType: "t"}.Headers())
	assert.NotEmpty(t, HeaderValue(headers, "traceparent"))

	got := trace.SpanContextFromContext(ExtractTraceContext(context.Background(), kafka.Message{Headers: headers}))
	assert.Equal(t, traceID, got.TraceID())
}
