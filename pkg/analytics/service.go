package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shmadmin/billing-analytics/pkg/health"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Config tunes report computation
type Config struct {
	// DashboardTTL is the cache lifetime of dashboard payloads
	DashboardTTL time.Duration
	// DetailedTTL is the cache lifetime of detailed payloads
	DetailedTTL time.Duration
	// RequestTimeout bounds one report computation; 0 disables the deadline
	RequestTimeout time.Duration
	// QueryParallelism is the number of battery queries in flight per report
	QueryParallelism int
	// CoalesceMisses shares one computation between concurrent misses of a key
	CoalesceMisses bool
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		DashboardTTL:     60 * time.Second,
		DetailedTTL:      60 * time.Second,
		RequestTimeout:   15 * time.Second,
		QueryParallelism: DefaultQueryParallelism,
	}
}

// TTL returns the cache lifetime of a report
func (c Config) TTL(report Report) time.Duration {
	if report == ReportDetailed {
		return c.DetailedTTL
	}
	return c.DashboardTTL
}

// Result is a serialized report
type Result struct {
	Payload []byte
	Cached  bool
	Period  Period
}

// Service computes billing reports with a cache-aside layer in front
type Service struct {
	planner *Planner
	cache   *ReportCache
	tracker *health.Tracker
	logger  logrus.FieldLogger
	metrics Recorder
	cfg     Config
	now     func() time.Time
	flight  singleflight.Group
}

// Option configures a Service
type Option func(*Service)

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithClock overrides the reference time used for windows and expiry checks
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a report service. cache may be nil to disable caching;
// tracker may be nil to skip the database readiness gate.
func NewService(db *sql.DB, cache *ReportCache, tracker *health.Tracker, logger logrus.FieldLogger, cfg Config, opts ...Option) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Service{
		planner: NewPlanner(db, cfg.QueryParallelism),
		cache:   cache,
		tracker: tracker,
		logger:  logger.WithField("component", "analytics"),
		metrics: nopRecorder{},
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dashboard returns the dashboard summary for a raw period parameter
func (s *Service) Dashboard(ctx context.Context, rawPeriod string) (Result, error) {
	return s.Report(ctx, ReportDashboard, rawPeriod)
}

// Detailed returns the detailed report for a raw period parameter
func (s *Service) Detailed(ctx context.Context, rawPeriod string) (Result, error) {
	return s.Report(ctx, ReportDetailed, rawPeriod)
}

// Report serves a report from the cache or computes and caches it.
// It returns ErrDatabaseUnavailable when the database is not ready or the
// request deadline expires, and a *QueryError when a query fails.
func (s *Service) Report(ctx context.Context, report Report, rawPeriod string) (Result, error) {
	p := ParsePeriod(report, rawPeriod)
	key := Key(report, p)

	if s.cache != nil {
		if data, ok := s.cache.Get(ctx, report, key); ok {
			return Result{Payload: data, Cached: true, Period: p}, nil
		}
	}

	var (
		payload []byte
		err     error
	)
	if s.cfg.CoalesceMisses {
		payload, err = s.computeShared(ctx, report, p, key)
	} else {
		payload, err = s.computeAndStore(ctx, report, p, key)
	}
	if err != nil {
		return Result{Period: p}, err
	}
	return Result{Payload: payload, Period: p}, nil
}

// Refresh recomputes a report and overwrites its cache entry without reading it
func (s *Service) Refresh(ctx context.Context, report Report, rawPeriod string) (Result, error) {
	p := ParsePeriod(report, rawPeriod)
	payload, err := s.computeAndStore(ctx, report, p, Key(report, p))
	if err != nil {
		return Result{Period: p}, err
	}
	return Result{Payload: payload, Period: p}, nil
}

// computeShared runs one computation per key for all concurrent callers. The
// shared computation is detached from the first caller's cancellation.
func (s *Service) computeShared(ctx context.Context, report Report, p Period, key string) ([]byte, error) {
	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		return s.computeAndStore(context.WithoutCancel(ctx), report, p, key)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (s *Service) computeAndStore(ctx context.Context, report Report, p Period, key string) ([]byte, error) {
	if s.tracker != nil && !s.tracker.Ready(health.StoreDatabase) {
		return nil, ErrDatabaseUnavailable
	}

	start := time.Now()
	payload, err := s.compute(ctx, report, p)
	s.metrics.ReportComputed(string(report), time.Since(start), err)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"report": report,
			"period": p.Label,
		}).WithError(err).Error("failed to compute report")
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(context.WithoutCancel(ctx), report, key, payload, s.cfg.TTL(report))
	}
	return payload, nil
}

func (s *Service) compute(ctx context.Context, report Report, p Period) ([]byte, error) {
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	at := s.now()
	w := NewWindow(at, p.Days)

	rs, err := s.planner.Run(ctx, report, w)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s report exceeded its deadline: %v", ErrDatabaseUnavailable, report, err)
		}
		return nil, err
	}

	m := Calculate(rs, at)

	var doc interface{}
	if report == ReportDetailed {
		doc = AssembleDetailed(rs, m, p, w)
	} else {
		doc = AssembleDashboard(rs, m)
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s report: %w", report, err)
	}
	return payload, nil
}
