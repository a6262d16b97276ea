package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shmadmin/billing-analytics/pkg/analytics"
	"github.com/shmadmin/billing-analytics/pkg/observability"
	"github.com/shmadmin/billing-analytics/pkg/storage/cache"
	"github.com/shmadmin/billing-analytics/pkg/storage/mysql"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Relational store
	MySQL mysql.ConnectionConfig

	// Cache store
	Redis cache.Config

	// Report tuning
	Analytics AnalyticsConfig

	// Cache warmer schedule
	Warmer WarmerConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// AnalyticsConfig holds report computation and caching settings
type AnalyticsConfig struct {
	DashboardTTL     time.Duration `yaml:"dashboard_ttl"`
	DetailedTTL      time.Duration `yaml:"detailed_ttl"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	QueryParallelism int           `yaml:"query_parallelism"`
	CoalesceMisses   bool          `yaml:"coalesce_misses"`
	HealthInterval   time.Duration `yaml:"health_interval"`
}

// WarmerConfig controls which reports the warmer refreshes and how often
type WarmerConfig struct {
	Schedule         string   `yaml:"schedule"`
	DashboardPeriods []string `yaml:"dashboard_periods"`
	DetailedPeriods  []string `yaml:"detailed_periods"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel logrus.Level

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelEnvironment    string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// fileConfig is the optional YAML overlay for report tuning
type fileConfig struct {
	Analytics *AnalyticsConfig `yaml:"analytics"`
	Warmer    *WarmerConfig    `yaml:"warmer"`
}

// ServiceConfig converts the settings for analytics.NewService
func (c AnalyticsConfig) ServiceConfig() analytics.Config {
	return analytics.Config{
		DashboardTTL:     c.DashboardTTL,
		DetailedTTL:      c.DetailedTTL,
		RequestTimeout:   c.RequestTimeout,
		QueryParallelism: c.QueryParallelism,
		CoalesceMisses:   c.CoalesceMisses,
	}
}

// OTelConfig converts the settings for observability.InitOTel
func (c ObservabilityConfig) OTelConfig() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.OTelEnabled,
		Endpoint:       c.OTelEndpoint,
		ServiceName:    c.OTelServiceName,
		ServiceVersion: c.OTelServiceVersion,
		Environment:    c.OTelEnvironment,
		Insecure:       c.OTelInsecure,
		SampleRatio:    c.OTelSampleRatio,
	}
}

// LoadConfig loads configuration from an optional .env file, an optional YAML overlay
// and environment variables, in increasing order of precedence
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(getEnv("ANALYTICS_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	analyticsCfg := defaultAnalyticsConfig()
	warmerCfg := defaultWarmerConfig()
	if path := getEnv("ANALYTICS_CONFIG_FILE", ""); path != "" {
		if err := applyFile(path, &analyticsCfg, &warmerCfg); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Server:        loadServerConfig(),
		MySQL:         loadMySQLConfig(),
		Redis:         loadRedisConfig(),
		Analytics:     loadAnalyticsConfig(analyticsCfg),
		Warmer:        loadWarmerConfig(warmerCfg),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads a .env file without overriding variables already set.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// applyFile overlays the YAML file onto the given defaults
func applyFile(path string, a *AnalyticsConfig, w *WarmerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	fc := fileConfig{Analytics: a, Warmer: w}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func defaultAnalyticsConfig() AnalyticsConfig {
	d := analytics.DefaultConfig()
	return AnalyticsConfig{
		DashboardTTL:     d.DashboardTTL,
		DetailedTTL:      d.DetailedTTL,
		RequestTimeout:   d.RequestTimeout,
		QueryParallelism: d.QueryParallelism,
		CoalesceMisses:   d.CoalesceMisses,
		HealthInterval:   5 * time.Second,
	}
}

func defaultWarmerConfig() WarmerConfig {
	return WarmerConfig{
		Schedule:         "@every 45s",
		DashboardPeriods: []string{analytics.DefaultDashboardPeriod.Label},
		DetailedPeriods:  []string{analytics.DefaultDetailedPeriod.Label},
	}
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("BACKEND_HOST", "0.0.0.0"),
		Port:            getEnv("BACKEND_PORT", "3001"),
		ReadTimeout:     getEnvDuration("BACKEND_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("BACKEND_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("BACKEND_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("BACKEND_SHUTDOWN_TIMEOUT", 30*time.Second),
		CORSOrigins:     getEnvList("CORS_ORIGINS", []string{"*"}),
	}
}

// loadMySQLConfig loads relational store configuration from environment
func loadMySQLConfig() mysql.ConnectionConfig {
	cfg := mysql.DefaultConnectionConfig()

	cfg.Host = getEnv("MYSQL_HOST", cfg.Host)
	cfg.Port = getEnvInt("MYSQL_PORT", cfg.Port)
	cfg.User = getEnv("MYSQL_USER", "root")
	cfg.Password = getEnv("MYSQL_PASS", "")
	cfg.Database = getEnv("MYSQL_DATABASE", getEnv("DB_NAME", "shm"))
	cfg.MaxConns = getEnvInt("MYSQL_POOL_SIZE", cfg.MaxConns)
	cfg.Timeout = getEnvDuration("MYSQL_CONNECT_TIMEOUT", cfg.Timeout)
	cfg.ReadTimeout = getEnvDuration("MYSQL_READ_TIMEOUT", cfg.ReadTimeout)

	return cfg
}

// loadRedisConfig loads cache store configuration from environment
func loadRedisConfig() cache.Config {
	cfg := cache.DefaultConfig()

	cfg.Host = getEnv("REDIS_HOST", cfg.Host)
	cfg.Port = getEnvInt("REDIS_PORT", cfg.Port)
	cfg.Password = getEnv("REDIS_PASSWORD", "")
	cfg.DB = getEnvInt("REDIS_DB", 0)
	cfg.MaxRetries = getEnvInt("REDIS_MAX_RETRIES", cfg.MaxRetries)
	cfg.PoolSize = getEnvInt("REDIS_POOL_SIZE", cfg.PoolSize)
	cfg.DefaultTTL = getEnvDuration("REDIS_DEFAULT_TTL", cfg.DefaultTTL)

	return cfg
}

// loadAnalyticsConfig applies ANALYTICS_* overrides on top of base
func loadAnalyticsConfig(base AnalyticsConfig) AnalyticsConfig {
	return AnalyticsConfig{
		DashboardTTL:     getEnvDuration("ANALYTICS_DASHBOARD_TTL", base.DashboardTTL),
		DetailedTTL:      getEnvDuration("ANALYTICS_DETAILED_TTL", base.DetailedTTL),
		RequestTimeout:   getEnvDuration("ANALYTICS_REQUEST_TIMEOUT", base.RequestTimeout),
		QueryParallelism: getEnvInt("ANALYTICS_QUERY_PARALLELISM", base.QueryParallelism),
		CoalesceMisses:   getEnvBool("ANALYTICS_COALESCE_MISSES", base.CoalesceMisses),
		HealthInterval:   getEnvDuration("ANALYTICS_HEALTH_INTERVAL", base.HealthInterval),
	}
}

// loadWarmerConfig applies ANALYTICS_WARMER_* overrides on top of base
func loadWarmerConfig(base WarmerConfig) WarmerConfig {
	return WarmerConfig{
		Schedule:         getEnv("ANALYTICS_WARMER_SCHEDULE", base.Schedule),
		DashboardPeriods: getEnvList("ANALYTICS_WARMER_DASHBOARD_PERIODS", base.DashboardPeriods),
		DetailedPeriods:  getEnvList("ANALYTICS_WARMER_DETAILED_PERIODS", base.DetailedPeriods),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("OTEL_SERVICE_NAME", "billing-analytics"),
		OTelServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
		OTelEnvironment:    getEnv("OTEL_ENVIRONMENT", ""),
		OTelInsecure:       getEnvBool("OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("OTEL_SAMPLE_RATIO", 1),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}

	if c.MySQL.Host == "" {
		return fmt.Errorf("mysql host is required")
	}
	if c.MySQL.Database == "" {
		return fmt.Errorf("mysql database is required")
	}
	if c.MySQL.MaxConns <= 0 {
		return fmt.Errorf("mysql pool size must be positive")
	}
	if c.Redis.Host == "" {
		return fmt.Errorf("redis host is required")
	}
	if c.Redis.PoolSize <= 0 {
		return fmt.Errorf("redis pool size must be positive")
	}

	a := c.Analytics
	if a.DashboardTTL <= 0 || a.DetailedTTL <= 0 {
		return fmt.Errorf("report cache TTLs must be positive")
	}
	if a.RequestTimeout <= 0 {
		return fmt.Errorf("report request timeout must be positive")
	}
	if a.QueryParallelism <= 0 {
		return fmt.Errorf("query parallelism must be positive")
	}
	if a.HealthInterval <= 0 {
		return fmt.Errorf("health interval must be positive")
	}

	if _, err := cron.ParseStandard(c.Warmer.Schedule); err != nil {
		return fmt.Errorf("invalid warmer schedule %q: %w", c.Warmer.Schedule, err)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
// Bare integers are read as seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
