// Package api provides the HTTP server of the billing analytics service.
//
// # Endpoints
//
//	GET    /api/dashboard/analytics?period=<days>   dashboard summary, default 7 days
//	GET    /api/analytics?period=<month|days>       detailed report, default month
//	GET    /api/cache/{key}                         read a generic cache entry
//	POST   /api/cache/{key}                         write {"data":..., "ttl":seconds}
//	DELETE /api/cache/{key}                         delete one entry
//	DELETE /api/cache                               clear the generic namespace
//	GET    /api/health, /health/live, /health/ready
//	GET    /metrics
//
// Reports are served from the cache when present, even while the database is
// down. Otherwise a disconnected database yields 503 {"error":"Database not connected"}
// and a failed query yields 500 {"error":"Failed to fetch analytics","details":...}.
// The cache endpoints never fail because the cache store is disconnected.
//
// # Usage
//
//	server := api.NewServer(reports, redisClient, logger,
//		api.WithHealthChecker(checker),
//		api.WithMetrics(metrics, registry),
//	)
//	http.ListenAndServe(":3001", server)
package api
