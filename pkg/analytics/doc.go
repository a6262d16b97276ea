// Package analytics computes the billing dashboard reports served by the
// admin API.
//
// # Overview
//
// A report request flows through five stages:
//
//	Health gate -> ReportCache.Get -> Planner.Run -> Calculate -> Assemble -> ReportCache.Set
//
// A cached payload is returned as-is. On a miss the Planner runs a fixed
// battery of parameterized aggregate queries over the billing schema
// (users, pays_history, withdraw_history, user_services, services, servers,
// spool), the calculator derives financial metrics from the raw rowsets,
// and the assembler shapes everything into the JSON document the dashboard
// charts consume.
//
// # Reports
//
// Dashboard (GET /api/dashboard/analytics):
//   - Scalar counts, payment totals and timelines
//   - New-user and withdrawal timelines
//   - Subscription breakdown and top services
//   - Server groups, MRR, recent payments and tasks
//
// Detailed (GET /api/analytics):
//   - Everything above plus the full payment-system breakdown
//   - Subscription timeline, task breakdown, top customers
//   - LTV, churn and per-payment averages
//
// # Degraded modes
//
// When the cache store is not ready every request is recomputed. When the
// database is not ready a request that misses the cache fails with
// ErrDatabaseUnavailable without issuing any query. A failed query aborts
// the whole report with a *QueryError; partial reports are never returned.
//
// # Usage Example
//
//	cache := analytics.NewReportCache(redisClient, tracker, logger)
//	svc := analytics.NewService(db, cache, tracker, logger, analytics.DefaultConfig())
//
//	payload, err := svc.Dashboard(ctx, r.URL.Query().Get("period"))
//	if errors.Is(err, analytics.ErrDatabaseUnavailable) {
//		// 503
//	}
package analytics
