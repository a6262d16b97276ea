package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	exporterSetupTimeout = 10 * time.Second
	spanBatchTimeout     = 5 * time.Second
	metricExportInterval = 15 * time.Second
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	Environment    string
	Insecure       bool
	// SampleRatio is the fraction of root spans kept; values outside (0,1) mean always
	SampleRatio float64
}

// OTelProviders holds OpenTelemetry providers for shutdown
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *metric.MeterProvider
}

// InitOTel installs global trace and meter providers exporting over OTLP gRPC.
// It returns nil providers when cfg.Enabled is false.
func InitOTel(ctx context.Context, cfg OTelConfig, logger logrus.FieldLogger) (*OTelProviders, error) {
	if !cfg.Enabled {
		logger.Debug("OpenTelemetry is disabled")
		return nil, nil
	}

	log := logger.WithFields(logrus.Fields{
		"endpoint": cfg.Endpoint,
		"service":  cfg.ServiceName,
	})

	res, err := serviceResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	// Exporters connect on first export, so a missing collector does not block startup
	var dialOpts []grpc.DialOption
	if cfg.Insecure {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	setupCtx, cancel := context.WithTimeout(ctx, exporterSetupTimeout)
	defer cancel()

	spanExporter, err := otlptracegrpc.New(setupCtx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(dialOpts...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	metricExporter, err := otlpmetricgrpc.New(setupCtx,
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithDialOption(dialOpts...),
	)
	if err != nil {
		if shutdownErr := spanExporter.Shutdown(ctx); shutdownErr != nil {
			log.WithError(shutdownErr).Warn("failed to close trace exporter")
		}
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	providers := &OTelProviders{
		TracerProvider: sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(spanExporter, sdktrace.WithBatchTimeout(spanBatchTimeout)),
			sdktrace.WithSampler(sampler(cfg.SampleRatio)),
		),
		MeterProvider: metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(metricExporter,
				metric.WithInterval(metricExportInterval),
			)),
		),
	}

	otel.SetTracerProvider(providers.TracerProvider)
	otel.SetMeterProvider(providers.MeterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.WithField("sample_ratio", cfg.SampleRatio).Info("OpenTelemetry initialized")
	return providers, nil
}

func serviceResource(ctx context.Context, cfg OTelConfig) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
		),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironmentKey.String(cfg.Environment)))
	}
	attrs = append(attrs,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithHost(),
	)
	return resource.New(ctx, attrs...)
}

// sampler keeps a ratio of root spans and follows the parent decision otherwise
func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// ShutdownOTel flushes and stops both providers. Errors from each are joined.
func ShutdownOTel(ctx context.Context, providers *OTelProviders, logger logrus.FieldLogger) error {
	if providers == nil {
		return nil
	}

	var errs []error
	if providers.TracerProvider != nil {
		if err := providers.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if providers.MeterProvider != nil {
		if err := providers.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		logger.WithError(err).Error("OpenTelemetry shutdown incomplete")
		return err
	}
	logger.Info("OpenTelemetry shutdown complete")
	return nil
}

// UpdateLoggerWithTraceContext adds the trace and span ids of a recording span
func UpdateLoggerWithTraceContext(ctx context.Context, logger logrus.FieldLogger) logrus.FieldLogger {
	span := trace.SpanFromContext(ctx)
	if logger == nil || !span.IsRecording() {
		return logger
	}

	spanCtx := span.SpanContext()
	return logger.WithFields(logrus.Fields{
		"trace_id": spanCtx.TraceID().String(),
		"span_id":  spanCtx.SpanID().String(),
	})
}
