package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"
)

// ConnectionConfig holds MySQL connection configuration
type ConnectionConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	ReadTimeout time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// DefaultConnectionConfig returns the pool settings used by the analytics service
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		Host:        "localhost",
		Port:        3306,
		MaxConns:    10,
		MinConns:    2,
		Timeout:     10 * time.Second,
		ReadTimeout: 30 * time.Second,
		MaxLifetime: 30 * time.Minute,
		MaxIdleTime: 5 * time.Minute,
	}
}

// DSN renders the driver connection string.
// Timestamps are parsed into time.Time in UTC.
func (c ConnectionConfig) DSN() string {
	cfg := driver.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Timeout = c.Timeout
	cfg.ReadTimeout = c.ReadTimeout
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Redacted returns the address and schema without credentials, for logging
func (c ConnectionConfig) Redacted() string {
	return fmt.Sprintf("%s@%s/%s", c.User, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)), c.Database)
}

// ConnectionManager owns the MySQL connection pool.
// Opening the pool never dials; connectivity is established by Ping.
type ConnectionManager struct {
	db     *sql.DB
	config ConnectionConfig
}

// NewConnectionManager creates the pool without contacting the server
func NewConnectionManager(config ConnectionConfig) (*ConnectionManager, error) {
	if strings.TrimSpace(config.Host) == "" {
		return nil, fmt.Errorf("mysql host is required")
	}
	if config.Database == "" {
		return nil, fmt.Errorf("mysql database is required")
	}

	db, err := sql.Open("mysql", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql pool: %w", err)
	}

	configurePool(db, config)

	return &ConnectionManager{db: db, config: config}, nil
}

func configurePool(db *sql.DB, config ConnectionConfig) {
	if config.MaxConns > 0 {
		db.SetMaxOpenConns(config.MaxConns)
	}
	if config.MinConns > 0 {
		db.SetMaxIdleConns(config.MinConns)
	}
	if config.MaxLifetime > 0 {
		db.SetConnMaxLifetime(config.MaxLifetime)
	}
	if config.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(config.MaxIdleTime)
	}
}

// DB returns the pool for read queries
func (cm *ConnectionManager) DB() *sql.DB {
	return cm.db
}

// Config returns the configuration the pool was opened with
func (cm *ConnectionManager) Config() ConnectionConfig {
	return cm.config
}

// Ping acquires a connection and checks the server responds
func (cm *ConnectionManager) Ping(ctx context.Context) error {
	if err := cm.db.PingContext(ctx); err != nil {
		return fmt.Errorf("mysql ping failed: %w", err)
	}
	return nil
}

// Stats returns connection pool statistics
func (cm *ConnectionManager) Stats() sql.DBStats {
	return cm.db.Stats()
}

// Close closes the pool
func (cm *ConnectionManager) Close() error {
	if err := cm.db.Close(); err != nil {
		return fmt.Errorf("failed to close mysql pool: %w", err)
	}
	return nil
}
