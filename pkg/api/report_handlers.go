package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/shmadmin/billing-analytics/pkg/analytics"
	"github.com/shmadmin/billing-analytics/pkg/httputil"
	"github.com/shmadmin/billing-analytics/pkg/observability"
)

const (
	msgDatabaseUnavailable = "Database not connected"
	msgFetchFailed         = "Failed to fetch analytics"
)

// getDashboard handles GET /api/dashboard/analytics
// Query params:
//   - period: window length in days, default 7
func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
	s.serveReport(w, r, analytics.ReportDashboard)
}

// getDetailed handles GET /api/analytics
// Query params:
//   - period: "month" or a window length in days, default month
func (s *Server) getDetailed(w http.ResponseWriter, r *http.Request) {
	s.serveReport(w, r, analytics.ReportDetailed)
}

func (s *Server) serveReport(w http.ResponseWriter, r *http.Request, report analytics.Report) {
	ctx := r.Context()
	start := time.Now()

	result, err := s.reports.Report(ctx, report, httputil.ParseQueryString(r, "period", ""))
	if err != nil {
		s.writeReportError(w, r, report, err)
		return
	}

	if s.otelMetrics != nil {
		s.otelMetrics.RecordReportRequest(ctx, string(report), result.Period.Label, result.Cached, time.Since(start))
	}
	if err := httputil.WriteRawJSON(w, http.StatusOK, result.Payload); err != nil {
		observability.FromContext(ctx).WithError(err).Debug("client went away while writing report")
	}
}

// writeReportError maps service errors onto the report error contract.
// The service has already logged the failure.
func (s *Server) writeReportError(w http.ResponseWriter, r *http.Request, report analytics.Report, err error) {
	var (
		queryErr *analytics.QueryError
		reason   string
	)

	switch {
	case errors.Is(err, analytics.ErrDatabaseUnavailable):
		reason = "database_unavailable"
		httputil.WriteServiceUnavailable(w, msgDatabaseUnavailable)
	case errors.As(err, &queryErr):
		reason = "query_failed"
		httputil.WriteDetailedError(w, http.StatusInternalServerError, msgFetchFailed, queryErr.Err)
	default:
		reason = "internal"
		httputil.WriteDetailedError(w, http.StatusInternalServerError, msgFetchFailed, err)
	}

	if s.otelMetrics != nil {
		s.otelMetrics.RecordReportFailure(r.Context(), string(report), reason)
	}
}
