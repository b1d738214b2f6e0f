package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

var (
	// Log is the app global logger
	Log = slog.Default()
)

// InitLogger initializes the app global logger.
// Records are exported over OTLP when exporterEndpoint is set and written to
// stdout in local environments or when there is no exporter at all.
func InitLogger(serviceName, serviceVersion, serviceEnvironment, exporterEndpoint string) (func(ctx context.Context) error, error) {
	l, shutdown, err := newLogger(os.Stdout, serviceName, serviceVersion, serviceEnvironment, exporterEndpoint)
	if err != nil {
		return nil, err
	}
	SetLogger(l)
	return shutdown, nil
}

// SetLogger replaces the app global logger.
func SetLogger(l *slog.Logger) {
	Log = l
}

func newLogger(stdout io.Writer, serviceName, serviceVersion, serviceEnvironment, exporterEndpoint string) (*slog.Logger, func(ctx context.Context) error, error) {

	textHandler := slog.NewTextHandler(stdout, nil)

	if exporterEndpoint == "" {
		return slog.New(textHandler), func(context.Context) error { return nil }, nil
	}

	logExporter, err := otlploggrpc.New(context.Background(),
		otlploggrpc.WithEndpoint(exporterEndpoint),
		otlploggrpc.WithInsecure())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to otlploggrpc.New: %w", err)
	}

	lp := log.NewLoggerProvider(
		log.WithProcessor(
			log.NewBatchProcessor(logExporter),
		),
		log.WithResource(resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
			semconv.DeploymentEnvironmentNameKey.String(serviceEnvironment))),
	)

	var slogHandler slog.Handler = otelslog.NewHandler("github.com/ogero/stremio-speculative",
		otelslog.WithLoggerProvider(lp))

	if serviceEnvironment == "lcl" || serviceEnvironment == "dk" {
		slogHandler = slogmulti.Fanout(
			slogHandler,
			textHandler,
		)
	}

	return slog.New(slogHandler), lp.Shutdown, nil
}
