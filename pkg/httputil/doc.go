// Package httputil provides the JSON response helpers and HTTP middleware shared by the
// analytics API.
//
// # Responses
//
//	httputil.WriteJSON(w, http.StatusOK, body)
//	httputil.WriteRawJSON(w, http.StatusOK, cachedPayload)
//	httputil.WriteServiceUnavailable(w, "Database not connected")
//	httputil.WriteDetailedError(w, http.StatusInternalServerError, "Failed to fetch analytics", err)
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(),
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.CORSMiddleware(origins),
//	)(router)
//
// LoggingMiddleware stores a request-scoped logrus entry in the context; handlers read it
// with observability.FromContext.
package httputil
