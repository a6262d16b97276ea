package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shmadmin/billing-analytics/pkg/observability"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.GetRequestID(r.Context())
	}))

	t.Run("generates uuid", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		_, err := uuid.Parse(seen)
		require.NoError(t, err)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	})

	t.Run("propagates caller id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		handler.ServeHTTP(w, req)

		assert.Equal(t, "req-42", seen)
		assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	})
}

func TestLoggingMiddleware(t *testing.T) {
	logger, hook := test.NewNullLogger()

	var scoped logrus.FieldLogger
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scoped = observability.GetLogger(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})
	handler := Chain(RequestIDMiddleware(), LoggingMiddleware(logger))(inner)

	req := httptest.NewRequest(http.MethodGet, "/api/analytics", nil)
	req.Header.Set(RequestIDHeader, "abc")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, scoped)
	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, "request completed", entry.Message)
	assert.Equal(t, "abc", entry.Data["request_id"])
	assert.Equal(t, "/api/analytics", entry.Data["path"])
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
}

func TestLoggingMiddleware_ServerErrorsWarn(t *testing.T) {
	logger, hook := test.NewNullLogger()
	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteServiceUnavailable(w, "Database not connected")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, http.StatusServiceUnavailable, hook.LastEntry().Data["status"])
}

func TestRecoveryMiddleware(t *testing.T) {
	logger, hook := test.NewNullLogger()
	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil pointer")
	}))

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dashboard/analytics", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "GET /api/dashboard/analytics", hook.LastEntry().Data["context"])
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		origin     string
		wantOrigin string
	}{
		{name: "no list allows all", allowed: nil, origin: "http://a.example", wantOrigin: "*"},
		{name: "wildcard", allowed: []string{"*"}, origin: "http://a.example", wantOrigin: "*"},
		{name: "listed origin echoed", allowed: []string{"http://admin.example"}, origin: "http://admin.example", wantOrigin: "http://admin.example"},
		{name: "unlisted origin omitted", allowed: []string{"http://admin.example"}, origin: "http://evil.example", wantOrigin: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Origin", tt.origin)

			CORSMiddleware(tt.allowed)(okHandler()).ServeHTTP(w, req)

			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	handler := CORSMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/cache/x", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestMaxBytesMiddleware(t *testing.T) {
	handler := MaxBytesMiddleware(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var dest map[string]interface{}
		ParseJSONOrError(w, r, &dest)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"data":"0123456789"}`)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	Chain(mark("outer"), mark("inner"))(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner"}, order)
}
