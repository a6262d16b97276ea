package mysql

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	driver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionConfig_DSN(t *testing.T) {
	cfg := DefaultConnectionConfig()
	cfg.Host = "db.internal"
	cfg.User = "shm"
	cfg.Password = "p@ss:word"
	cfg.Database = "billing"

	dsn := cfg.DSN()

	parsed, err := driver.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "shm", parsed.User)
	assert.Equal(t, "p@ss:word", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "db.internal:3306", parsed.Addr)
	assert.Equal(t, "billing", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, time.UTC, parsed.Loc)
	assert.Equal(t, 10*time.Second, parsed.Timeout)
}

func TestConnectionConfig_Redacted(t *testing.T) {
	cfg := DefaultConnectionConfig()
	cfg.User = "shm"
	cfg.Password = "secret"
	cfg.Database = "billing"

	assert.Equal(t, "shm@localhost:3306/billing", cfg.Redacted())
	assert.False(t, strings.Contains(cfg.Redacted(), "secret"))
}

func TestNewConnectionManager(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ConnectionConfig)
		wantErr string
	}{
		{
			name:   "valid config opens lazily",
			mutate: func(c *ConnectionConfig) { c.Database = "billing" },
		},
		{
			name:    "missing host",
			mutate:  func(c *ConnectionConfig) { c.Host = " "; c.Database = "billing" },
			wantErr: "host is required",
		},
		{
			name:    "missing database",
			mutate:  func(c *ConnectionConfig) {},
			wantErr: "database is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConnectionConfig()
			tt.mutate(&cfg)

			cm, err := NewConnectionManager(cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			defer cm.Close()
			assert.Equal(t, 10, cm.Stats().MaxOpenConnections)
			assert.Equal(t, 0, cm.Stats().OpenConnections)
		})
	}
}

func TestConnectionManager_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	cm := &ConnectionManager{db: db, config: DefaultConnectionConfig()}
	defer cm.Close()

	mock.ExpectPing()
	assert.NoError(t, cm.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	err = cm.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mysql ping failed")

	require.NoError(t, mock.ExpectationsWereMet())
}
