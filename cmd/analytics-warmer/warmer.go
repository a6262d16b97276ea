package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shmadmin/billing-analytics/pkg/analytics"
	"github.com/shmadmin/billing-analytics/pkg/async"
	"github.com/shmadmin/billing-analytics/pkg/config"
	"github.com/sirupsen/logrus"
)

// refresher recomputes a report and overwrites its cache entry
type refresher interface {
	Refresh(ctx context.Context, report analytics.Report, rawPeriod string) (analytics.Result, error)
}

type warmJob struct {
	report analytics.Report
	period string
}

func (j warmJob) String() string {
	return fmt.Sprintf("%s/%s", j.report, j.period)
}

// warmer recomputes the configured reports so requests find them cached
type warmer struct {
	reports refresher
	jobs    []warmJob
	workers int
	timeout time.Duration
	logger  logrus.FieldLogger
}

func newWarmer(reports refresher, cfg config.WarmerConfig, workers int, timeout time.Duration, logger logrus.FieldLogger) *warmer {
	var jobs []warmJob
	for _, p := range cfg.DashboardPeriods {
		jobs = append(jobs, warmJob{report: analytics.ReportDashboard, period: p})
	}
	for _, p := range cfg.DetailedPeriods {
		jobs = append(jobs, warmJob{report: analytics.ReportDetailed, period: p})
	}
	if workers < 1 {
		workers = 1
	}
	return &warmer{
		reports: reports,
		jobs:    jobs,
		workers: workers,
		timeout: timeout,
		logger:  logger.WithField("component", "warmer"),
	}
}

// run refreshes every job once and returns the joined failures
func (w *warmer) run(ctx context.Context) error {
	start := time.Now()

	errs := async.Batch(ctx, w.jobs, w.workers, "cache warm", w.timeout, func(ctx context.Context, job warmJob) error {
		jobStart := time.Now()
		result, err := w.reports.Refresh(ctx, job.report, job.period)
		if err != nil {
			return fmt.Errorf("%s: %w", job, err)
		}
		w.logger.WithFields(logrus.Fields{
			"report":      job.report,
			"period":      result.Period.Label,
			"bytes":       len(result.Payload),
			"duration_ms": time.Since(jobStart).Milliseconds(),
		}).Debug("report refreshed")
		return nil
	})

	entry := w.logger.WithFields(logrus.Fields{
		"jobs":        len(w.jobs),
		"failed":      len(errs),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if len(errs) > 0 {
		err := errors.Join(errs...)
		entry.WithError(err).Warn("cache warm finished with failures")
		return err
	}
	entry.Info("cache warm finished")
	return nil
}
