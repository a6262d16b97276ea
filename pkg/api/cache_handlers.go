package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shmadmin/billing-analytics/pkg/httputil"
	"github.com/shmadmin/billing-analytics/pkg/observability"
	"github.com/shmadmin/billing-analytics/pkg/storage/cache"
)

// CacheEntryResponse is returned by GET /api/cache/{key}
type CacheEntryResponse struct {
	Data   json.RawMessage `json:"data"`
	Cached bool            `json:"cached"`
}

// SetCacheEntryRequest is the body of POST /api/cache/{key}
type SetCacheEntryRequest struct {
	Data json.RawMessage `json:"data"`
	// TTL in seconds; non-positive values use the store default
	TTL int64 `json:"ttl"`
}

// CacheMutationResponse is returned by the cache write endpoints
type CacheMutationResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CacheFlushResponse is returned by DELETE /api/cache
type CacheFlushResponse struct {
	Success bool  `json:"success"`
	Deleted int64 `json:"deleted"`
}

var nullJSON = json.RawMessage("null")

func (s *Server) cacheReady() bool {
	return s.cache != nil && s.cache.Ready()
}

// getCacheEntry handles GET /api/cache/{key}
// Failures are reported as a miss.
func (s *Server) getCacheEntry(w http.ResponseWriter, r *http.Request) {
	key, ok := httputil.ParsePathStringOrError(w, r, "key")
	if !ok {
		return
	}

	miss := CacheEntryResponse{Data: nullJSON, Cached: false}
	if !s.cacheReady() {
		_ = httputil.WriteSuccess(w, miss)
		return
	}

	data, found, err := s.cache.Get(r.Context(), key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotReady) {
			observability.FromContext(r.Context()).WithError(err).WithField("key", key).Warn("cache read failed")
		}
		_ = httputil.WriteSuccess(w, miss)
		return
	}
	if !found {
		_ = httputil.WriteSuccess(w, miss)
		return
	}

	_ = httputil.WriteSuccess(w, CacheEntryResponse{Data: data, Cached: true})
}

// setCacheEntry handles POST /api/cache/{key}
func (s *Server) setCacheEntry(w http.ResponseWriter, r *http.Request) {
	key, ok := httputil.ParsePathStringOrError(w, r, "key")
	if !ok {
		return
	}

	if !s.cacheReady() {
		_ = httputil.WriteSuccess(w, CacheMutationResponse{Success: false, Error: "Redis not connected"})
		return
	}

	var req SetCacheEntryRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Data) == 0 {
		req.Data = nullJSON
	}

	err := s.cache.Set(r.Context(), key, req.Data, time.Duration(req.TTL)*time.Second)
	switch {
	case err == nil:
		_ = httputil.WriteSuccess(w, CacheMutationResponse{Success: true})
	case errors.Is(err, cache.ErrNotReady):
		_ = httputil.WriteSuccess(w, CacheMutationResponse{Success: false, Error: "Redis not connected"})
	default:
		observability.FromContext(r.Context()).WithError(err).WithField("key", key).Warn("cache write failed")
		_ = httputil.WriteJSON(w, http.StatusInternalServerError, CacheMutationResponse{Success: false, Error: "Failed to set cache"})
	}
}

// deleteCacheEntry handles DELETE /api/cache/{key}
// A disconnected store is a successful no-op.
func (s *Server) deleteCacheEntry(w http.ResponseWriter, r *http.Request) {
	key, ok := httputil.ParsePathStringOrError(w, r, "key")
	if !ok {
		return
	}

	if !s.cacheReady() {
		_ = httputil.WriteSuccess(w, CacheMutationResponse{Success: true})
		return
	}

	if err := s.cache.Delete(r.Context(), key); err != nil && !errors.Is(err, cache.ErrNotReady) {
		observability.FromContext(r.Context()).WithError(err).WithField("key", key).Warn("cache delete failed")
		_ = httputil.WriteJSON(w, http.StatusInternalServerError, CacheMutationResponse{Success: false, Error: "Failed to delete cache"})
		return
	}
	_ = httputil.WriteSuccess(w, CacheMutationResponse{Success: true})
}

// flushCache handles DELETE /api/cache
// Only the generic namespace is cleared; report entries are untouched.
func (s *Server) flushCache(w http.ResponseWriter, r *http.Request) {
	if !s.cacheReady() {
		_ = httputil.WriteSuccess(w, CacheFlushResponse{Success: true, Deleted: 0})
		return
	}

	deleted, err := s.cache.Flush(r.Context())
	if err != nil && !errors.Is(err, cache.ErrNotReady) {
		observability.FromContext(r.Context()).WithError(err).WithField("deleted", deleted).Warn("cache flush failed")
		_ = httputil.WriteJSON(w, http.StatusInternalServerError, CacheMutationResponse{Success: false, Error: "Failed to clear cache"})
		return
	}

	if s.otelMetrics != nil {
		s.otelMetrics.RecordCacheFlush(r.Context(), deleted)
	}
	_ = httputil.WriteSuccess(w, CacheFlushResponse{Success: true, Deleted: deleted})
}
