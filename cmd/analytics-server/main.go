package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shmadmin/billing-analytics/pkg/api"
	"github.com/shmadmin/billing-analytics/pkg/async"
	"github.com/shmadmin/billing-analytics/pkg/bootstrap"
	"github.com/shmadmin/billing-analytics/pkg/config"
	"github.com/shmadmin/billing-analytics/pkg/observability"
	"github.com/sirupsen/logrus"
)

var version = "dev"

func main() {
	printVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *printVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	async.Logger = logger
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("analytics server stopped with error")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelCfg := cfg.Observability.OTelConfig()
	if otelCfg.ServiceVersion == "" {
		otelCfg.ServiceVersion = version
	}
	providers, err := observability.InitOTel(ctx, otelCfg, logger)
	if err != nil {
		return err
	}

	var (
		registry *prometheus.Registry
		metrics  *observability.Metrics
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(registry)
	}

	stores, err := bootstrap.OpenStores(cfg, logger, metrics)
	if err != nil {
		return err
	}
	stores.Start(ctx)
	stores.PublishPoolStats(ctx, 0)

	reports := stores.ReportService(cfg.Analytics, logger)

	opts := []api.Option{
		api.WithHealthChecker(observability.NewHealthChecker(stores.Tracker, version)),
		api.WithCORSOrigins(cfg.Server.CORSOrigins),
	}
	if metrics != nil {
		opts = append(opts, api.WithMetrics(metrics, registry))
	}
	if otelCfg.Enabled {
		otelMetrics, err := observability.NewOTelMetrics()
		if err != nil {
			return err
		}
		opts = append(opts, api.WithOTel(otelMetrics, true))
	}
	server := api.NewServer(reports, stores.Redis, logger, opts...)

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("store clients", stores.Close)
	if providers != nil {
		shutdown.RegisterShutdownFunc("opentelemetry", func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, logger)
		})
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    httpServer.Addr,
			"version": version,
		}).Info("analytics server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	return shutdown.WaitForShutdown(ctx, serverErr)
}
