package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	exporterDialTimeout   = 3 * time.Second
	defaultMetricInterval = 5 * time.Second
)

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ProcessRuntimeName("go"),
		),
	)
}

// exporters dials one trace and one metric exporter for the configured
// endpoint.
type exporters struct {
	spans   trace.SpanExporter
	metrics metric.Exporter
}

func dialExporters(ctx context.Context, c Config) (exporters, error) {
	ctx, cancel := context.WithTimeout(ctx, exporterDialTimeout)
	defer cancel()

	var (
		out exporters
		err error
	)
	switch {
	case c.GrpcEndpoint != "":
		slog.Debug("otlp exporters", "protocol", "grpc", "endpoint", c.GrpcEndpoint)
		out.spans, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpointURL(c.GrpcEndpoint),
			otlptracegrpc.WithHeaders(c.Headers),
		)
		if err != nil {
			return exporters{}, fmt.Errorf("trace exporter: %w", err)
		}
		out.metrics, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpointURL(c.GrpcEndpoint),
			otlpmetricgrpc.WithHeaders(c.Headers),
		)
	default:
		slog.Debug("otlp exporters", "protocol", "http", "endpoint", c.HttpEndpoint)
		out.spans, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(c.HttpEndpoint),
			otlptracehttp.WithHeaders(c.Headers),
		)
		if err != nil {
			return exporters{}, fmt.Errorf("trace exporter: %w", err)
		}
		out.metrics, err = otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpointURL(c.HttpEndpoint),
			otlpmetrichttp.WithHeaders(c.Headers),
		)
	}
	if err != nil {
		_ = out.spans.Shutdown(context.Background())
		return exporters{}, fmt.Errorf("metric exporter: %w", err)
	}
	return out, nil
}

func (e exporters) providers(r *resource.Resource, interval time.Duration) (*trace.TracerProvider, *metric.MeterProvider) {
	if interval <= 0 {
		interval = defaultMetricInterval
	}
	tracerProvider := trace.NewTracerProvider(
		trace.WithBatcher(e.spans),
		trace.WithResource(r),
	)
	meterProvider := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(e.metrics, metric.WithInterval(interval))),
		metric.WithResource(r),
	)
	return tracerProvider, meterProvider
}
