// Package telemetry sets up OpenTelemetry tracing for the API and the worker.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	TenantIDKey     = "fleet.tenant.id"
	WorkflowIDKey   = "fleet.workflow.id"
	WorkflowNameKey = "fleet.workflow.name"
	ExecutionIDKey  = "fleet.execution.id"
	ActionIDKey     = "fleet.action.id"
	ActionTypeKey   = "fleet.action.type"
	EventIDKey      = "fleet.event.id"
	EventTypeKey    = "fleet.event.type"
	SubjectKey      = "fleet.event.subject"
)

// Shutdown flushes and stops the tracer provider
type Shutdown func(context.Context) error

// Init installs a global tracer provider exporting over OTLP/HTTP.
// When disabled the global no-op provider stays in place.
func Init(ctx context.Context, serviceName string, enabled bool) (Shutdown, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}))
	if !enabled {
		return func(context.Context) error { return nil }, nil
	}

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// Tracer returns a named tracer from the global provider
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a span with the given attributes
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// SetError marks the span as failed
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("error_occurred", trace.WithAttributes(attrs...))
}
