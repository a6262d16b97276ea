//go:build integration

package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shmadmin/billing-analytics/pkg/analytics"
	"github.com/shmadmin/billing-analytics/pkg/health"
	"github.com/shmadmin/billing-analytics/pkg/observability"
	"github.com/shmadmin/billing-analytics/pkg/storage/cache"
	"github.com/shmadmin/billing-analytics/pkg/storage/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/wait"
)

// splitEndpoint turns a container endpoint into host and numeric port
func splitEndpoint(t *testing.T, endpoint string) (string, int) {
	t.Helper()
	host, port, err := net.SplitHostPort(endpoint)
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)
	return host, portNum
}

// setupMySQLContainer starts MySQL seeded with testdata/schema.sql
func setupMySQLContainer(t *testing.T, ctx context.Context) mysql.ConnectionConfig {
	t.Helper()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker not available, skipping integration tests")
	}
	provider.Close()

	schema, err := filepath.Abs(filepath.Join("testdata", "schema.sql"))
	require.NoError(t, err)

	container, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("shm"),
		tcmysql.WithUsername("shm"),
		tcmysql.WithPassword("shm_test_password"),
		tcmysql.WithScripts(schema),
	)
	if err != nil {
		t.Skipf("Failed to start MySQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Errorf("Failed to terminate MySQL container: %v", err)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, "3306/tcp", "")
	require.NoError(t, err)
	host, port := splitEndpoint(t, endpoint)

	cfg := mysql.DefaultConnectionConfig()
	cfg.Host = host
	cfg.Port = port
	cfg.User = "shm"
	cfg.Password = "shm_test_password"
	cfg.Database = "shm"
	return cfg
}

// setupRedisContainer starts a plain Redis server
func setupRedisContainer(t *testing.T, ctx context.Context) cache.Config {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Errorf("Failed to terminate Redis container: %v", err)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err)
	host, port := splitEndpoint(t, endpoint)

	cfg := cache.DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	return cfg
}

func TestIntegration_ReportsAgainstRealStores(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	logger := quietLogger()

	mysqlCfg := setupMySQLContainer(t, ctx)
	redisCfg := setupRedisContainer(t, ctx)

	tracker := health.NewTracker(logger, nil)

	cm, err := mysql.NewConnectionManager(mysqlCfg)
	require.NoError(t, err)
	t.Cleanup(func() { cm.Close() })

	redisClient := cache.NewRedisClient(redisCfg, tracker, logger)
	t.Cleanup(func() { redisClient.Close() })

	monitor := health.NewMonitor(tracker, logger, time.Second)
	monitor.Watch(health.StoreDatabase, cm.Ping, health.DatabaseRetryPolicy())
	monitor.Watch(health.StoreCache, redisClient.Ping, health.CacheRetryPolicy())
	monitor.CheckNow(ctx)
	require.True(t, tracker.Ready(health.StoreDatabase))
	require.True(t, tracker.Ready(health.StoreCache))

	reportCache := analytics.NewReportCache(redisClient.Client(), tracker, logger)
	svc := analytics.NewService(cm.DB(), reportCache, tracker, logger, analytics.DefaultConfig())
	server := NewServer(svc, redisClient, logger,
		WithHealthChecker(observability.NewHealthChecker(tracker, "integration")),
	)

	t.Run("dashboard excludes manual payments", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dashboard/analytics?period=7", nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var report analytics.DashboardReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.Equal(t, 300.0, report.Payments.Total)
		assert.Equal(t, int64(2), report.Payments.Count)
		assert.Equal(t, int64(3), report.Counts.TotalUsers)
		assert.Equal(t, int64(1), report.Counts.PendingTasks)

		cached, err := redisClient.Client().Exists(ctx, "analytics:dashboard:7").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), cached)
	})

	t.Run("detailed report echoes window", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/analytics?period=month", nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var report analytics.DetailedReport
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.Equal(t, "month", report.Period.Type)
		assert.Equal(t, 30, report.Period.Days)
	})

	t.Run("cache namespace round trip", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/cache/plans", strings.NewReader(`{"data":{"count":3},"ttl":60}`)))
		require.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cache/plans", nil))
		assert.JSONEq(t, `{"data":{"count":3},"cached":true}`, w.Body.String())

		w = httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/cache", nil))
		assert.JSONEq(t, `{"success":true,"deleted":1}`, w.Body.String())
	})

	t.Run("health summary", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		assert.Contains(t, w.Body.String(), `"mysql":true`)
		assert.Contains(t, w.Body.String(), `"redis":true`)
	})
}
