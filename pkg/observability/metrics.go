package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Report cache metrics
	CacheLookupsTotal       *prometheus.CounterVec
	CacheWriteFailuresTotal *prometheus.CounterVec

	// Report computation metrics
	ReportComputationsTotal *prometheus.CounterVec
	ReportComputeDuration   *prometheus.HistogramVec

	// Store readiness, 1 when ready
	StoreReady *prometheus.GaugeVec

	// Database pool metrics
	DBConnectionsOpen         prometheus.Gauge
	DBConnectionsInUse        prometheus.Gauge
	DBConnectionsIdle         prometheus.Gauge
	DBConnectionsWaitCount    prometheus.Gauge
	DBConnectionsWaitDuration prometheus.Gauge

	// Redis pool metrics
	RedisConnectionsTotal prometheus.Gauge
	RedisConnectionsIdle  prometheus.Gauge
	RedisPoolTimeouts     prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_cache_lookups_total",
				Help: "Report cache lookups by outcome (hit, miss, bypass, error)",
			},
			[]string{"report", "outcome"},
		),
		CacheWriteFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_cache_write_failures_total",
				Help: "Report cache writes that failed and were skipped",
			},
			[]string{"report"},
		),

		ReportComputationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_report_computations_total",
				Help: "Total number of report computations against the database",
			},
			[]string{"report", "status"},
		),
		ReportComputeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "analytics_report_compute_duration_seconds",
				Help:    "Report computation duration in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 15},
			},
			[]string{"report"},
		),

		StoreReady: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "analytics_store_ready",
				Help: "Whether a backing store is ready (1) or not (0)",
			},
			[]string{"store"},
		),

		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "analytics_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "analytics_db_connections_in_use",
				Help: "Number of database connections in use",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "analytics_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "analytics_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
		DBConnectionsWaitDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "analytics_db_connections_wait_duration_seconds",
				Help: "Total time spent waiting for connections",
			},
		),

		RedisConnectionsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "analytics_redis_connections_total",
				Help: "Number of Redis connections in the pool",
			},
		),
		RedisConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "analytics_redis_connections_idle",
				Help: "Number of idle Redis connections",
			},
		),
		RedisPoolTimeouts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "analytics_redis_pool_timeouts",
				Help: "Times a Redis connection could not be acquired in time",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.CacheLookupsTotal,
		m.CacheWriteFailuresTotal,
		m.ReportComputationsTotal,
		m.ReportComputeDuration,
		m.StoreReady,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.DBConnectionsWaitDuration,
		m.RedisConnectionsTotal,
		m.RedisConnectionsIdle,
		m.RedisPoolTimeouts,
	)

	return m
}

// CacheLookup counts a report cache lookup outcome
func (m *Metrics) CacheLookup(report, outcome string) {
	m.CacheLookupsTotal.WithLabelValues(report, outcome).Inc()
}

// CacheWriteFailed counts a skipped cache write
func (m *Metrics) CacheWriteFailed(report string) {
	m.CacheWriteFailuresTotal.WithLabelValues(report).Inc()
}

// ReportComputed records one report computation
func (m *Metrics) ReportComputed(report string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ReportComputationsTotal.WithLabelValues(report, status).Inc()
	m.ReportComputeDuration.WithLabelValues(report).Observe(d.Seconds())
}

// SetStoreReady publishes a store's readiness
func (m *Metrics) SetStoreReady(store string, ready bool) {
	v := 0.0
	if ready {
		v = 1
	}
	m.StoreReady.WithLabelValues(store).Set(v)
}

// UpdateDBStats publishes database pool statistics
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
	m.DBConnectionsWaitDuration.Set(stats.WaitDuration.Seconds())
}

// UpdateRedisStats publishes Redis pool statistics
func (m *Metrics) UpdateRedisStats(stats *redis.PoolStats) {
	if stats == nil {
		return
	}
	m.RedisConnectionsTotal.Set(float64(stats.TotalConns))
	m.RedisConnectionsIdle.Set(float64(stats.IdleConns))
	m.RedisPoolTimeouts.Set(float64(stats.Timeouts))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel returns the matched route template so path parameters don't explode cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := routeLabel(r)
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, registry *prometheus.Registry) {
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}
