// Package config loads application configuration from the environment.
//
// # Sources
//
// Settings are read in increasing order of precedence:
//
//  1. built-in defaults
//  2. an optional YAML file named by ANALYTICS_CONFIG_FILE (report tuning and warmer only)
//  3. environment variables, including those loaded from .env (ANALYTICS_ENV_FILE)
//
// # Environment
//
// Server and stores use the same variables as the admin backend:
//
//	BACKEND_PORT="3001"
//	MYSQL_HOST="localhost"  MYSQL_PORT="3306"  MYSQL_USER="root"  MYSQL_PASS=""
//	MYSQL_DATABASE="shm"    # DB_NAME is accepted as a fallback
//	REDIS_HOST="localhost"  REDIS_PORT="6379"  REDIS_PASSWORD=""
//
// Report tuning:
//
//	ANALYTICS_DASHBOARD_TTL="60s"
//	ANALYTICS_DETAILED_TTL="60s"
//	ANALYTICS_REQUEST_TIMEOUT="15s"
//	ANALYTICS_QUERY_PARALLELISM="4"
//	ANALYTICS_COALESCE_MISSES="false"
//	ANALYTICS_WARMER_SCHEDULE="@every 45s"
//
// Observability:
//
//	LOG_LEVEL="info"  # debug, info, warn, error
//	METRICS_ENABLED="true"
//	OTEL_ENABLED="false"
//	OTEL_ENDPOINT="otel-collector:4317"
//
// # YAML overlay
//
//	analytics:
//	  dashboard_ttl: 2m
//	  coalesce_misses: true
//	warmer:
//	  schedule: "*/5 * * * *"
//	  dashboard_periods: ["7", "30"]
//	  detailed_periods: ["month"]
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	svcCfg := cfg.Analytics.ServiceConfig()
package config
