package httputil

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shmadmin/billing-analytics/pkg/observability"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

// Middleware wraps an http.Handler
type Middleware func(http.Handler) http.Handler

// LoggingMiddleware logs one line per request and stores a request-scoped
// logger in the context. Place it after RequestIDMiddleware.
func LoggingMiddleware(logger logrus.FieldLogger) Middleware {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			var reqLogger logrus.FieldLogger = logger.WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			if id := observability.GetRequestID(r.Context()); id != "" {
				reqLogger = reqLogger.WithField("request_id", id)
			}
			reqLogger = observability.UpdateLoggerWithTraceContext(r.Context(), reqLogger)

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(observability.WithLogger(r.Context(), reqLogger)))

			entry := reqLogger.WithFields(logrus.Fields{
				"status":      wrapped.statusCode,
				"bytes":       wrapped.written,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			if wrapped.statusCode >= http.StatusInternalServerError {
				entry.Warn("request failed")
				return
			}
			entry.Info("request completed")
		})
	}
}

// responseWriter captures the status code and body size
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	written     int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

// RecoveryMiddleware turns a handler panic into a 500 response
func RecoveryMiddleware(logger logrus.FieldLogger) Middleware {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer observability.RecoverPanicWithCallback(logger, r.Method+" "+r.URL.Path, func() {
				WriteErrorMessage(w, http.StatusInternalServerError, "Internal server error")
			})
			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware adds CORS headers. An empty list or "*" allows any origin.
func CORSMiddleware(allowedOrigins []string) Middleware {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{"Content-Type", RequestIDHeader}, ", "))
			w.Header().Set("Access-Control-Max-Age", strconv.Itoa(3600))

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDMiddleware propagates the caller's request ID or assigns a new one
func RequestIDMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)
			next.ServeHTTP(w, r.WithContext(observability.WithRequestID(r.Context(), requestID)))
		})
	}
}

// MaxBytesMiddleware limits request body size
func MaxBytesMiddleware(maxBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// Chain applies middlewares so the first one listed is the outermost
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
