package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shmadmin/billing-analytics/pkg/analytics"
	"github.com/shmadmin/billing-analytics/pkg/httputil"
	"github.com/shmadmin/billing-analytics/pkg/observability"
	"github.com/shmadmin/billing-analytics/pkg/storage/cache"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultMaxBodyBytes bounds request bodies of the cache endpoints
const DefaultMaxBodyBytes = 1 << 20

// Server is the analytics HTTP API
type Server struct {
	router       *mux.Router
	handler      http.Handler
	reports      *analytics.Service
	cache        *cache.RedisClient
	checker      *observability.HealthChecker
	metrics      *observability.Metrics
	registry     *prometheus.Registry
	otelMetrics  *observability.OTelMetrics
	tracing      bool
	corsOrigins  []string
	maxBodyBytes int64
	logger       logrus.FieldLogger
}

// Option configures a Server
type Option func(*Server)

// WithHealthChecker serves the health endpoints from checker
func WithHealthChecker(checker *observability.HealthChecker) Option {
	return func(s *Server) {
		s.checker = checker
	}
}

// WithMetrics instruments routes and exposes registry at /metrics
func WithMetrics(metrics *observability.Metrics, registry *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = metrics
		s.registry = registry
	}
}

// WithOTel records report requests on the OTel instruments and wraps the
// handler with otelhttp when tracing is set
func WithOTel(metrics *observability.OTelMetrics, tracing bool) Option {
	return func(s *Server) {
		s.otelMetrics = metrics
		s.tracing = tracing
	}
}

// WithCORSOrigins restricts the allowed CORS origins
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// NewServer creates the API server. redisClient may be nil, in which case the
// cache endpoints behave as if the store were disconnected.
func NewServer(reports *analytics.Service, redisClient *cache.RedisClient, logger logrus.FieldLogger, opts ...Option) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		router:       mux.NewRouter(),
		reports:      reports,
		cache:        redisClient,
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       logger.WithField("component", "api"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	s.handler = s.buildHandler()
	return s
}

func (s *Server) setupRoutes() {
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}

	// Reports
	s.router.HandleFunc("/api/dashboard/analytics", s.getDashboard).Methods(http.MethodGet)
	s.router.HandleFunc("/api/analytics", s.getDetailed).Methods(http.MethodGet)

	// Generic cache namespace
	s.router.HandleFunc("/api/cache", s.flushCache).Methods(http.MethodDelete)
	s.router.HandleFunc("/api/cache/{key}", s.getCacheEntry).Methods(http.MethodGet)
	s.router.HandleFunc("/api/cache/{key}", s.setCacheEntry).Methods(http.MethodPost)
	s.router.HandleFunc("/api/cache/{key}", s.deleteCacheEntry).Methods(http.MethodDelete)

	if s.checker != nil {
		observability.RegisterHealthRoutes(s.router, s.checker)
	}
	if s.registry != nil {
		observability.RegisterMetricsEndpoint(s.router, s.registry)
	}
}

func (s *Server) buildHandler() http.Handler {
	var h http.Handler = httputil.Chain(
		httputil.RequestIDMiddleware(),
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
		httputil.CORSMiddleware(s.corsOrigins),
		httputil.MaxBytesMiddleware(s.maxBodyBytes),
	)(s.router)

	if s.tracing {
		h = otelhttp.NewHandler(h, "analytics-api",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
	return h
}

// Router returns the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
