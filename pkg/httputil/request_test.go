package httputil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid", body: `{"name": "test"}`},
		{name: "trailing whitespace", body: "{\"name\": \"test\"}\n"},
		{name: "malformed", body: `{invalid}`, wantErr: "invalid JSON"},
		{name: "empty body", body: "", wantErr: "request body is required"},
		{name: "two values", body: `{"name":"a"} {"name":"b"}`, wantErr: "single JSON value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(tt.body))
			var dest map[string]string

			err := ParseJSON(req, &dest)

			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "test", dest["name"])
		})
	}
}

func TestParseJSON_BodyTooLarge(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"data":"`+strings.Repeat("x", 64)+`"}`))
	req.Body = http.MaxBytesReader(w, req.Body, 16)

	var dest map[string]string
	err := ParseJSON(req, &dest)

	require.Error(t, err)
	assert.Equal(t, "request body exceeds 16 bytes", err.Error())
}

func TestParseJSONOrError(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"ttl": 30}`))
		var dest struct {
			TTL int `json:"ttl"`
		}

		assert.True(t, ParseJSONOrError(w, req, &dest))
		assert.Equal(t, 30, dest.TTL)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("invalid", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"ttl":`))
		var dest map[string]interface{}

		assert.False(t, ParseJSONOrError(w, req, &dest))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Contains(t, body.Error, "invalid JSON")
	})
}

func TestParsePathString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/cache/users", nil)
	req = mux.SetURLVars(req, map[string]string{"key": "users"})

	val, err := ParsePathString(req, "key")
	require.NoError(t, err)
	assert.Equal(t, "users", val)

	_, err = ParsePathString(req, "missing")
	assert.EqualError(t, err, "missing path parameter: missing")

	req = mux.SetURLVars(req, map[string]string{"key": "  "})
	_, err = ParsePathString(req, "key")
	assert.Error(t, err)
}

func TestParsePathStringOrError(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/cache/", nil)

	val, ok := ParsePathStringOrError(w, req, "key")

	assert.False(t, ok)
	assert.Empty(t, val)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseQueryString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/analytics?period=month", nil)
	assert.Equal(t, "month", ParseQueryString(req, "period", "7"))

	req = httptest.NewRequest(http.MethodGet, "/api/analytics", nil)
	assert.Equal(t, "7", ParseQueryString(req, "period", "7"))

	req = httptest.NewRequest(http.MethodGet, "/api/analytics?period=+30+", nil)
	assert.Equal(t, "30", ParseQueryString(req, "period", "7"))
}

func BenchmarkParseJSON(b *testing.B) {
	body := []byte(`{"data":{"users":[1,2,3]},"ttl":120}`)
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/cache/users", bytes.NewReader(body))
		var dest map[string]interface{}
		_ = ParseJSON(req, &dest)
	}
}
