package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics holds OpenTelemetry metric instruments
type OTelMetrics struct {
	reportRequests   metric.Int64Counter
	reportDuration   metric.Float64Histogram
	reportFailures   metric.Int64Counter
	cacheFlushedKeys metric.Int64Counter
}

// NewOTelMetrics creates the instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/shmadmin/billing-analytics")

	m := &OTelMetrics{}
	var err error

	m.reportRequests, err = meter.Int64Counter(
		"analytics.report.requests",
		metric.WithDescription("Report requests served, by report and cache outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create report_requests counter: %w", err)
	}

	m.reportDuration, err = meter.Float64Histogram(
		"analytics.report.duration",
		metric.WithDescription("Report request latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create report_duration histogram: %w", err)
	}

	m.reportFailures, err = meter.Int64Counter(
		"analytics.report.failures",
		metric.WithDescription("Report requests that failed, by reason"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create report_failures counter: %w", err)
	}

	m.cacheFlushedKeys, err = meter.Int64Counter(
		"analytics.cache.flushed_keys",
		metric.WithDescription("Keys removed from the generic cache namespace"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache_flushed_keys counter: %w", err)
	}

	return m, nil
}

// RecordReportRequest records one served report
func (m *OTelMetrics) RecordReportRequest(ctx context.Context, report, period string, cached bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("report", report),
		attribute.String("period", period),
		attribute.Bool("cached", cached),
	)

	m.reportRequests.Add(ctx, 1, attrs)
	m.reportDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordReportFailure records a failed report request
func (m *OTelMetrics) RecordReportFailure(ctx context.Context, report, reason string) {
	m.reportFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("report", report),
		attribute.String("reason", reason),
	))
}

// RecordCacheFlush records keys removed by a namespace flush
func (m *OTelMetrics) RecordCacheFlush(ctx context.Context, deleted int64) {
	if deleted > 0 {
		m.cacheFlushedKeys.Add(ctx, deleted)
	}
}
