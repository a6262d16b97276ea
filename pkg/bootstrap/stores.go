// Package bootstrap wires the store clients, connectivity tracking and the report
// service shared by the analytics binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shmadmin/billing-analytics/pkg/analytics"
	"github.com/shmadmin/billing-analytics/pkg/async"
	"github.com/shmadmin/billing-analytics/pkg/config"
	"github.com/shmadmin/billing-analytics/pkg/health"
	"github.com/shmadmin/billing-analytics/pkg/observability"
	"github.com/shmadmin/billing-analytics/pkg/storage/cache"
	"github.com/shmadmin/billing-analytics/pkg/storage/mysql"
	"github.com/sirupsen/logrus"
)

// Stores holds the relational and cache clients together with the tracker
// and monitor that follow their connectivity
type Stores struct {
	Tracker *health.Tracker
	MySQL   *mysql.ConnectionManager
	Redis   *cache.RedisClient
	Monitor *health.Monitor

	metrics *observability.Metrics
	logger  logrus.FieldLogger
}

// OpenStores creates the store clients without contacting either server.
// metrics may be nil.
func OpenStores(cfg *config.Config, logger logrus.FieldLogger, metrics *observability.Metrics) (*Stores, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	var opts []health.TrackerOption
	if metrics != nil {
		opts = append(opts, health.WithTransitionFunc(func(store health.Store, _, to health.State) {
			metrics.SetStoreReady(string(store), to == health.Ready)
		}))
	}
	tracker := health.NewTracker(logger, nil, opts...)

	cm, err := mysql.NewConnectionManager(cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("failed to configure mysql: %w", err)
	}
	logger.WithField("dsn", cfg.MySQL.Redacted()).Info("mysql pool configured")

	redisClient := cache.NewRedisClient(cfg.Redis, tracker, logger)

	monitor := health.NewMonitor(tracker, logger, cfg.Analytics.HealthInterval)
	monitor.Watch(health.StoreDatabase, cm.Ping, health.DatabaseRetryPolicy())
	monitor.Watch(health.StoreCache, redisClient.Ping, health.CacheRetryPolicy())

	return &Stores{
		Tracker: tracker,
		MySQL:   cm,
		Redis:   redisClient,
		Monitor: monitor,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Start probes both stores once, synchronously, then hands them to the monitor
func (s *Stores) Start(ctx context.Context) {
	s.Monitor.CheckNow(ctx)
	s.Monitor.Start(ctx)

	snap := s.Tracker.Snapshot()
	s.logger.WithFields(logrus.Fields{
		"mysql": snap.Ready(health.StoreDatabase),
		"redis": snap.Ready(health.StoreCache),
	}).Info("initial store connectivity")
}

// ReportService builds the report service over the stores
func (s *Stores) ReportService(cfg config.AnalyticsConfig, logger logrus.FieldLogger) *analytics.Service {
	reportCache := analytics.NewReportCache(s.Redis.Client(), s.Tracker, logger)

	var opts []analytics.Option
	if s.metrics != nil {
		reportCache.WithRecorder(s.metrics)
		opts = append(opts, analytics.WithRecorder(s.metrics))
	}
	return analytics.NewService(s.MySQL.DB(), reportCache, s.Tracker, logger, cfg.ServiceConfig(), opts...)
}

// PublishPoolStats copies pool statistics into the metrics every interval until ctx ends
func (s *Stores) PublishPoolStats(ctx context.Context, interval time.Duration) {
	if s.metrics == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}

	async.SafeGoNoError(ctx, 0, "pool stats publisher", func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			s.publishPoolStats()
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	})
}

func (s *Stores) publishPoolStats() {
	s.metrics.UpdateDBStats(s.MySQL.Stats())
	s.metrics.UpdateRedisStats(s.Redis.PoolStats())
}

// Close stops the monitor and closes both clients
func (s *Stores) Close(ctx context.Context) error {
	var errs []error
	if err := s.Monitor.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("health monitor: %w", err))
	}
	if err := s.Redis.Close(); err != nil {
		errs = append(errs, fmt.Errorf("redis: %w", err))
	}
	if err := s.MySQL.Close(); err != nil {
		errs = append(errs, fmt.Errorf("mysql: %w", err))
	}
	return errors.Join(errs...)
}
