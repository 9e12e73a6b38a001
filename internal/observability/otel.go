// Package observability configures OpenTelemetry trace export.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc/credentials"

	"github.com/veigamann/whisper-zap/internal/config"
)

// Replaced in tests.
var (
	newExporter = func(ctx context.Context, opts ...otlptracegrpc.Option) (*otlptrace.Exporter, error) {
		return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	}
	newResource = func(ctx context.Context, attrs ...attribute.KeyValue) (*resource.Resource, error) {
		return resource.New(ctx, resource.WithAttributes(attrs...))
	}
)

// Shutdown flushes and stops the tracer provider.
type Shutdown func(context.Context) error

// SetupTracing installs a global tracer provider exporting over OTLP/gRPC and
// the W3C propagators. When tracing is disabled it returns a no-op Shutdown
// and leaves the globals untouched. session tags every span with the bridge
// session name.
func SetupTracing(ctx context.Context, cfg config.OTELConfig, version, session string) (Shutdown, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	exp, err := newExporter(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(version),
	}
	if session != "" {
		attrs = append(attrs, attribute.String("whatsapp.session", session))
	}
	res, err := newResource(ctx, attrs...)
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
