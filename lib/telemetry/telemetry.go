package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
)

// Telemetry holds the providers installed by Setup. The zero value is the
// disabled state, its Shutdown is a no-op.
type Telemetry struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
}

func (t Telemetry) Enabled() bool {
	return t.TracerProvider != nil
}

func (t Telemetry) Shutdown(ctx context.Context) error {
	var errlist []error
	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errlist = append(errlist, err)
		}
	}
	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errlist = append(errlist, err)
		}
	}
	return errors.Join(errlist...)
}

// Config selects where traces and metrics are exported. Only one of the
// endpoints is used, grpc wins when both are set.
type Config struct {
	GrpcEndpoint string
	HttpEndpoint string
	Headers      map[string]string
	// MetricInterval is the export period of metrics, 5s when zero.
	MetricInterval time.Duration
}

func (c Config) empty() bool {
	return c.GrpcEndpoint == "" && c.HttpEndpoint == ""
}

// Setup installs global otel trace and meter providers exporting over OTLP.
// Nothing is installed when no endpoint is configured.
func Setup(ctx context.Context, serviceName string, config Config) (Telemetry, error) {
	if config.empty() {
		return Telemetry{}, nil
	}

	r, err := newResource(serviceName)
	if err != nil {
		return Telemetry{}, err
	}
	exp, err := dialExporters(ctx, config)
	if err != nil {
		return Telemetry{}, err
	}

	tracerProvider, meterProvider := exp.providers(r, config.MetricInterval)
	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)

	return Telemetry{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
	}, nil
}
