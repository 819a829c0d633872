// Package tracing wires OpenTelemetry tracing for the service and its clients.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/okian/churn"

// ErrInit wraps exporter and resource setup failures.
var ErrInit = errors.New("tracing init failed")

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

type options struct {
	serviceName string
	endpoint    string
	sampleRate  float64
	insecure    bool
}

// Option configures Init.
type Option func(*options)

// WithServiceName sets the service.name resource attribute.
func WithServiceName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.serviceName = name
		}
	}
}

// WithEndpoint sets the OTLP/HTTP collector host:port. Empty disables export.
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

// WithSampleRate sets the parent-based ratio sampler fraction.
func WithSampleRate(rate float64) Option {
	return func(o *options) {
		if rate >= 0 && rate <= 1 {
			o.sampleRate = rate
		}
	}
}

// WithSecure enables TLS towards the collector.
func WithSecure() Option {
	return func(o *options) { o.insecure = false }
}

// Init installs the W3C tracecontext propagator and, when an endpoint is
// configured, an SDK tracer provider exporting over OTLP/HTTP. Without an
// endpoint the global no-op provider stays in place.
func Init(ctx context.Context, opts ...Option) (ShutdownFunc, error) {
	o := options{serviceName: "churn-api", sampleRate: 1, insecure: true}
	for _, opt := range opts {
		opt(&o)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	if o.endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(o.endpoint)}
	if o.insecure {
		exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: exporter: %w", ErrInit, err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attribute.String("service.name", o.serviceName)))
	if err != nil {
		return nil, fmt.Errorf("%w: resource: %w", ErrInit, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(o.sampleRate))),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the service tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// WrapHandler decorates h with otelhttp server spans named operation.
func WrapHandler(operation string, h http.Handler) http.Handler {
	return otelhttp.NewHandler(h, operation)
}

// WrapTransport decorates rt so client requests create spans and carry
// traceparent headers. A nil rt wraps http.DefaultTransport.
func WrapTransport(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return otelhttp.NewTransport(rt)
}
