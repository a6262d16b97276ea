package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shmadmin/billing-analytics/pkg/health"
	"github.com/sirupsen/logrus"
)

// KeyPrefix namespaces analytics entries in the cache store
const KeyPrefix = "analytics:"

// Key returns the cache key of a report for a normalized period
func Key(report Report, p Period) string {
	return fmt.Sprintf("%s%s:%s", KeyPrefix, report, p.Label)
}

// ReportCache is a read-through cache of serialized report payloads. It never
// returns errors: an unavailable or failing cache store behaves as a miss.
type ReportCache struct {
	client  redis.Cmdable
	tracker *health.Tracker
	logger  logrus.FieldLogger
	metrics Recorder
}

// NewReportCache creates a cache backed by client whose availability is read from tracker
func NewReportCache(client redis.Cmdable, tracker *health.Tracker, logger logrus.FieldLogger) *ReportCache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ReportCache{
		client:  client,
		tracker: tracker,
		logger:  logger.WithField("component", "report_cache"),
		metrics: nopRecorder{},
	}
}

// WithRecorder sets the metrics recorder
func (c *ReportCache) WithRecorder(r Recorder) *ReportCache {
	if r != nil {
		c.metrics = r
	}
	return c
}

func (c *ReportCache) available() bool {
	return c.client != nil && (c.tracker == nil || c.tracker.Ready(health.StoreCache))
}

// Get returns the cached payload for key. The second return is false on a
// miss, when the cache store is not ready, or when the lookup fails.
func (c *ReportCache) Get(ctx context.Context, report Report, key string) ([]byte, bool) {
	if !c.available() {
		c.metrics.CacheLookup(string(report), CacheBypass)
		return nil, false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.metrics.CacheLookup(string(report), CacheMiss)
		return nil, false
	} else if err != nil {
		c.metrics.CacheLookup(string(report), CacheError)
		c.logger.WithError(err).WithField("key", key).Warn("cache read failed, recomputing")
		return nil, false
	}

	c.metrics.CacheLookup(string(report), CacheHit)
	return data, true
}

// Set stores payload under key for ttl. Failures are logged and dropped.
func (c *ReportCache) Set(ctx context.Context, report Report, key string, payload []byte, ttl time.Duration) {
	if !c.available() {
		return
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.metrics.CacheWriteFailed(string(report))
		c.logger.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}
