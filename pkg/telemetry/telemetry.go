package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type tracerConfig struct {
	version     string
	sampleRatio float64
}

// TracerOption configures InitTracer.
type TracerOption func(*tracerConfig)

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(v string) TracerOption {
	return func(c *tracerConfig) { c.version = v }
}

// WithSampleRatio samples this fraction of new root traces. Spans under a
// sampled remote parent, such as one carried in an event header, are always
// kept.
func WithSampleRatio(r float64) TracerOption {
	return func(c *tracerConfig) { c.sampleRatio = r }
}

// InitTracer installs the global TracerProvider and propagator for a
// leadflow binary. endpoint is an OTLP HTTP host:port such as
// "localhost:4318"; when it is empty spans go to the no-op provider.
//
// Call the returned function on exit to flush buffered spans.
func InitTracer(ctx context.Context, serviceName, endpoint string, opts ...TracerOption) (shutdown func(), err error) {
	cfg := tracerConfig{sampleRatio: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	// Event headers carry trace context even without an exporter.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if endpoint == "" {
		return func() {}, nil
	}

	exp, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(serviceResource(ctx, serviceName, cfg.version)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.sampleRatio))),
	)
	otel.SetTracerProvider(tp)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}, nil
}

func serviceResource(ctx context.Context, name, version string) *resource.Resource {
	attrs := resource.WithAttributes(semconv.ServiceName(name))
	if version != "" {
		attrs = resource.WithAttributes(semconv.ServiceName(name), semconv.ServiceVersion(version))
	}
	res, err := resource.New(ctx, attrs, resource.WithProcess(), resource.WithOS())
	if err != nil || res == nil {
		return resource.Default()
	}
	return res
}
