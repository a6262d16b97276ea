package main

import (
	"context"
	"flag"
	"os"

	"github.com/robfig/cron/v3"
	"github.com/shmadmin/billing-analytics/pkg/async"
	"github.com/shmadmin/billing-analytics/pkg/bootstrap"
	"github.com/shmadmin/billing-analytics/pkg/config"
	"github.com/shmadmin/billing-analytics/pkg/observability"
	"github.com/sirupsen/logrus"
)

var (
	runOnce  = flag.Bool("run-once", false, "Refresh the configured reports once and exit")
	schedule = flag.String("schedule", "", "Cron schedule overriding ANALYTICS_WARMER_SCHEDULE")
	workers  = flag.Int("workers", 2, "Reports refreshed concurrently")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	if *schedule != "" {
		cfg.Warmer.Schedule = *schedule
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	async.Logger = logger

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("cache warmer failed")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := bootstrap.OpenStores(cfg, logger, nil)
	if err != nil {
		return err
	}
	stores.Start(ctx)

	w := newWarmer(stores.ReportService(cfg.Analytics, logger), cfg.Warmer, *workers, cfg.Analytics.RequestTimeout, logger)

	if *runOnce {
		runErr := w.run(ctx)
		if err := stores.Close(context.Background()); err != nil {
			logger.WithError(err).Warn("failed to close store clients")
		}
		return runErr
	}

	cronLogger := cron.PrintfLogger(logger)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger)))
	_, err = c.AddFunc(cfg.Warmer.Schedule, func() {
		defer observability.RecoverPanic(logger, "cache warmer tick")
		// failures are logged by the warmer
		_ = w.run(ctx)
	})
	if err != nil {
		stores.Close(context.Background())
		return err
	}

	c.Start()
	logger.WithFields(logrus.Fields{
		"schedule":          cfg.Warmer.Schedule,
		"dashboard_periods": cfg.Warmer.DashboardPeriods,
		"detailed_periods":  cfg.Warmer.DetailedPeriods,
	}).Info("cache warmer started")

	shutdown := observability.NewShutdownManager(logger, nil, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("cron scheduler", func(ctx context.Context) error {
		cancel()
		select {
		case <-c.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	shutdown.RegisterShutdownFunc("store clients", stores.Close)

	return shutdown.WaitForShutdown(ctx, nil)
}
