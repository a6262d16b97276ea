// Package observability provides structured logging, Prometheus metrics, OpenTelemetry
// tracing, health endpoints and graceful shutdown.
//
// # Structured Logging
//
// Loggers are logrus loggers with the JSON formatter:
//
//	logger := observability.NewLogger(observability.ParseLogLevel("info"), os.Stdout)
//	logger.WithField("report", "dashboard").Info("report computed")
//
// Request-scoped loggers travel in the context:
//
//	ctx = observability.WithLogger(ctx, logger)
//	observability.FromContext(ctx).Warn("cache write failed")
//
// # Prometheus Metrics
//
// Metrics satisfies the analytics recorder, so cache lookups and report computations are
// counted per report:
//
//	metrics := observability.NewMetrics(registry)
//	svc := analytics.NewService(db, cache, tracker, logger, cfg, analytics.WithRecorder(metrics))
//
// # Health Checks
//
// HealthChecker reads the connectivity tracker; it never dials the stores:
//
//	checker := observability.NewHealthChecker(tracker, version)
//	observability.RegisterHealthRoutes(router, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "billing-analytics",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/health: Connectivity tracker behind the health endpoints
package observability
