package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shmadmin/billing-analytics/pkg/health"
	"github.com/sirupsen/logrus"
)

// Namespace prefixes every key written through the generic cache API.
// Analytics report keys live outside it.
const Namespace = "shm-admin:cache:"

// ErrNotReady is returned when the cache store is not connected
var ErrNotReady = errors.New("redis not connected")

// Config holds Redis connection settings
type Config struct {
	Host       string
	Port       int
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
	DefaultTTL time.Duration
}

// DefaultConfig returns the client settings used by the analytics service
func DefaultConfig() Config {
	return Config{
		Host:       "localhost",
		Port:       6379,
		MaxRetries: 3,
		PoolSize:   10,
		DefaultTTL: 300 * time.Second,
	}
}

// Addr returns host:port
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RedisClient handles the shared cache connection and the generic key namespace
type RedisClient struct {
	client  *redis.Client
	config  Config
	tracker *health.Tracker
	logger  logrus.FieldLogger
}

// NewRedisClient creates a client without contacting the server.
// Connection and command failures are reported to the tracker.
func NewRedisClient(config Config, tracker *health.Tracker, logger logrus.FieldLogger) *RedisClient {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = DefaultConfig().DefaultTTL
	}

	opts := &redis.Options{
		Addr:            config.Addr(),
		Password:        config.Password,
		DB:              config.DB,
		MaxRetries:      config.MaxRetries,
		MinRetryBackoff: 100 * time.Millisecond,
		MaxRetryBackoff: 3 * time.Second,
		PoolSize:        config.PoolSize,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolTimeout:     4 * time.Second,
		OnConnect: func(ctx context.Context, _ *redis.Conn) error {
			tracker.Observe(health.StoreCache, health.EventReady)
			return nil
		},
	}

	client := redis.NewClient(opts)
	client.AddHook(trackerHook{tracker: tracker})

	return &RedisClient{
		client:  client,
		config:  config,
		tracker: tracker,
		logger:  logger.WithField("component", "cache"),
	}
}

// Client returns the underlying client, shared with the report cache
func (c *RedisClient) Client() *redis.Client {
	return c.client
}

// Ready reports whether the tracker considers the store usable
func (c *RedisClient) Ready() bool {
	return c.tracker.Ready(health.StoreCache)
}

// Get retrieves a JSON document from the generic namespace.
// A missing key yields (nil, false, nil).
func (c *RedisClient) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if !c.Ready() {
		return nil, false, ErrNotReady
	}

	data, err := c.client.Get(ctx, Namespace+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	if !json.Valid(data) {
		// Corrupt entries are dropped
		c.client.Del(ctx, Namespace+key)
		return nil, false, nil
	}

	return json.RawMessage(data), true, nil
}

// Set stores a JSON document. A non-positive ttl uses the configured default.
func (c *RedisClient) Set(ctx context.Context, key string, data json.RawMessage, ttl time.Duration) error {
	if !c.Ready() {
		return ErrNotReady
	}
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}
	if !json.Valid(data) {
		return fmt.Errorf("cache value for %s is not valid JSON", key)
	}

	if err := c.client.Set(ctx, Namespace+key, []byte(data), ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete removes one key from the namespace
func (c *RedisClient) Delete(ctx context.Context, key string) error {
	if !c.Ready() {
		return ErrNotReady
	}
	if err := c.client.Del(ctx, Namespace+key).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}

// Flush removes every key in the namespace and returns how many were deleted
func (c *RedisClient) Flush(ctx context.Context) (int64, error) {
	if !c.Ready() {
		return 0, ErrNotReady
	}

	var deleted int64
	iter := c.client.Scan(ctx, 0, Namespace+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := c.client.Del(ctx, iter.Val()).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to delete key %s: %w", iter.Val(), err)
		}
		deleted += n
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scan failed for namespace %s: %w", Namespace, err)
	}

	c.logger.WithField("deleted", deleted).Info("flushed cache namespace")
	return deleted, nil
}

// Ping checks Redis connectivity
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// PoolStats returns connection pool statistics
func (c *RedisClient) PoolStats() *redis.PoolStats {
	return c.client.PoolStats()
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	return c.client.Close()
}

// trackerHook marks the cache store disconnected when a command fails at the transport level
type trackerHook struct {
	tracker *health.Tracker
}

func (h trackerHook) BeforeProcess(ctx context.Context, _ redis.Cmder) (context.Context, error) {
	return ctx, nil
}

func (h trackerHook) AfterProcess(_ context.Context, cmd redis.Cmder) error {
	h.observe(cmd.Err())
	return nil
}

func (h trackerHook) BeforeProcessPipeline(ctx context.Context, _ []redis.Cmder) (context.Context, error) {
	return ctx, nil
}

func (h trackerHook) AfterProcessPipeline(_ context.Context, cmds []redis.Cmder) error {
	for _, cmd := range cmds {
		if isConnectionError(cmd.Err()) {
			h.observe(cmd.Err())
			break
		}
	}
	return nil
}

func (h trackerHook) observe(err error) {
	if isConnectionError(err) {
		h.tracker.Observe(health.StoreCache, health.EventError)
	}
}

// isConnectionError distinguishes transport failures from misses and server replies
func isConnectionError(err error) bool {
	if err == nil || err == redis.Nil {
		return false
	}
	if errors.Is(err, redis.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
