package otelx

import (
	"context"
	"fmt"
	"time"

	"github.com/expertmarket/bookingengine/libs/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config controls span export. Propagation is installed even when export is off, so trace
// context still flows through HTTP, gRPC and Kafka headers.
type Config struct {
	Enabled     bool
	ServiceName string
	// Environment is recorded as deployment.environment on every span.
	Environment string

	OTLPEndpoint  string // host:port of an OTLP/gRPC collector
	Insecure      bool
	SampleRatio   float64
	ExportTimeout time.Duration
}

// ConfigFromEnv reads the OTEL_* settings. Export stays off unless OTEL_ENABLED is set.
func ConfigFromEnv(serviceName string) (Config, error) {
	ratio, err := config.Ratio("OTEL_SAMPLING_RATIO", 1)
	if err != nil {
		return Config{}, err
	}
	timeout, err := config.Duration("OTEL_EXPORT_TIMEOUT", 3*time.Second)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Enabled:       config.Bool("OTEL_ENABLED", false),
		ServiceName:   config.String("OTEL_SERVICE_NAME", serviceName),
		Environment:   config.String("APP_ENV", "development"),
		OTLPEndpoint:  config.String("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		Insecure:      config.Bool("OTEL_EXPORTER_OTLP_INSECURE", true),
		SampleRatio:   ratio,
		ExportTimeout: timeout,
	}, nil
}

// Setup installs the W3C propagators and, when enabled, a batching tracer provider exporting
// over OTLP/gRPC. The returned func flushes pending spans.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := otlptracegrpc.New(ctx, exporterOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func exporterOptions(cfg Config) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if cfg.ExportTimeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(cfg.ExportTimeout))
	}
	return opts
}
