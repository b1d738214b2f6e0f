package common

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	metric2 "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// InitInstrumentation setups otel.
// Without an exporterEndpoint only the custom meters are created, on top of the global no-op providers.
func InitInstrumentation(serviceName, serviceVersion, serviceEnvironment, exporterEndpoint string) (func(ctx context.Context), error) {

	if exporterEndpoint == "" {
		if err := createCustomMeters(serviceName, serviceVersion, serviceEnvironment); err != nil {
			return nil, fmt.Errorf("failed to create custom meters: %w", err)
		}
		return func(context.Context) {}, nil
	}

	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
			semconv.DeploymentEnvironmentName(serviceEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to merge otel resource: %w", err)
	}

	// Metric exporter
	metricExporter, err := otlpmetricgrpc.New(
		context.Background(),
		otlpmetricgrpc.WithInsecure(),
		otlpmetricgrpc.WithEndpoint(exporterEndpoint),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	metricsProvider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(metricExporter, metric.WithInterval(30*time.Second))),
	)
	otel.SetMeterProvider(metricsProvider)

	err = createCustomMeters(serviceName, serviceVersion, serviceEnvironment)
	if err != nil {
		_ = metricsProvider.Shutdown(context.Background())
		_ = metricExporter.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to create custom meters: %w", err)
	}

	// Trace exporter
	traceExporter, err := otlptracegrpc.New(
		context.Background(),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(exporterEndpoint),
	)
	if err != nil {
		_ = metricsProvider.Shutdown(context.Background())
		_ = metricExporter.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	traceProvider := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(traceProvider)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) {
		_ = metricsProvider.Shutdown(ctx)
		_ = metricExporter.Shutdown(ctx)
		_ = traceProvider.Shutdown(ctx)
		_ = traceExporter.Shutdown(ctx)
	}, nil
}

// TorrentSearchesTotalIncr increases in 1 a metric for tracking torrent index searches by result
// (ok, canceled, transport, status or malformed).
var TorrentSearchesTotalIncr = func(ctx context.Context, result string) {}

// ResolutionsTotalIncr increases in 1 a metric for tracking catalog and stream resolutions
// by resource and outcome (found, empty or unsupported).
var ResolutionsTotalIncr = func(ctx context.Context, resource, outcome string) {}

func createCustomMeters(serviceName, serviceVersion, serviceEnvironment string) error {
	meter := otel.Meter(serviceName)

	torrentSearchesTotal, err := meter.Int64Counter("torrent_searches_total")
	if err != nil {
		return fmt.Errorf("failed to create custom meter: %w", err)
	}
	TorrentSearchesTotalIncr = func(ctx context.Context, result string) {
		torrentSearchesTotal.Add(ctx, 1, metric2.WithAttributes(
			attribute.String(string(semconv.DeploymentEnvironmentNameKey), serviceEnvironment),
			attribute.String(string(semconv.ServiceVersionKey), serviceVersion),
			attribute.String("result", result),
		))
	}

	resolutionsTotal, err := meter.Int64Counter("resolutions_total")
	if err != nil {
		return fmt.Errorf("failed to create custom meter: %w", err)
	}
	ResolutionsTotalIncr = func(ctx context.Context, resource, outcome string) {
		resolutionsTotal.Add(ctx, 1, metric2.WithAttributes(
			attribute.String(string(semconv.DeploymentEnvironmentNameKey), serviceEnvironment),
			attribute.String(string(semconv.ServiceVersionKey), serviceVersion),
			attribute.String("resource", resource),
			attribute.String("outcome", outcome),
		))
	}

	return nil
}
