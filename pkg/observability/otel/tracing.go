// Package otelobs provides optional OTLP tracing for the pipeline. Tracing
// is env-gated: without OTEL_EXPORTER_OTLP_ENDPOINT every returned handle is
// a noop, so the hot path carries no exporter cost by default.
package otelobs

import (
	"context"
	"log"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// InitTracer sets up an OTLP HTTP exporter and returns a shutdown func.
func InitTracer(serviceName string) func(context.Context) error {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		log.Printf("[otel] no OTEL_EXPORTER_OTLP_ENDPOINT; tracing disabled for %s", serviceName)
		return func(context.Context) error { return nil }
	}
	exp, err := otlptracehttp.New(context.Background(), otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		log.Printf("[otel] exporter init error: %v", err)
		return func(context.Context) error { return nil }
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		log.Printf("[otel] resource init error: %v", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

// StartMessageSpan opens a span around one message's handling. With tracing
// disabled this is a noop span.
func StartMessageSpan(ctx context.Context, channel, messageID string) (context.Context, trace.Span) {
	tracer := otel.Tracer("fraudwatch/pipeline")
	return tracer.Start(ctx, "transaction.handle",
		trace.WithAttributes(
			attribute.String("messaging.channel", channel),
			attribute.String("messaging.message_id", messageID),
		))
}
