package analytics

import "time"

// Cache lookup outcomes reported to a Recorder
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheBypass = "bypass"
	CacheError  = "error"
)

// Recorder receives report and cache measurements. Report names are passed
// as plain strings so metrics backends need not import this package.
type Recorder interface {
	CacheLookup(report, outcome string)
	CacheWriteFailed(report string)
	ReportComputed(report string, duration time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) CacheLookup(string, string)                  {}
func (nopRecorder) CacheWriteFailed(string)                     {}
func (nopRecorder) ReportComputed(string, time.Duration, error) {}
