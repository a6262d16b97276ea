package main

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shmadmin/billing-analytics/pkg/analytics"
	"github.com/shmadmin/billing-analytics/pkg/config"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
	panic string
}

func (f *fakeRefresher) Refresh(ctx context.Context, report analytics.Report, rawPeriod string) (analytics.Result, error) {
	key := string(report) + "/" + rawPeriod
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()

	if key == f.panic {
		panic("refresh exploded")
	}
	if err := f.fail[key]; err != nil {
		return analytics.Result{}, err
	}
	p := analytics.ParsePeriod(report, rawPeriod)
	return analytics.Result{Payload: []byte(`{}`), Period: p}, nil
}

func (f *fakeRefresher) sortedCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.calls...)
	sort.Strings(out)
	return out
}

func warmerConfig() config.WarmerConfig {
	return config.WarmerConfig{
		Schedule:         "@every 45s",
		DashboardPeriods: []string{"7", "30"},
		DetailedPeriods:  []string{"month"},
	}
}

func TestWarmer_RefreshesEveryConfiguredPeriod(t *testing.T) {
	logger, hook := test.NewNullLogger()
	reports := &fakeRefresher{}

	w := newWarmer(reports, warmerConfig(), 2, time.Second, logger)
	require.NoError(t, w.run(context.Background()))

	assert.Equal(t, []string{"dashboard/30", "dashboard/7", "detailed/month"}, reports.sortedCalls())
	assert.Equal(t, "cache warm finished", hook.LastEntry().Message)
}

func TestWarmer_ContinuesPastFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	reports := &fakeRefresher{fail: map[string]error{
		"dashboard/7": analytics.ErrDatabaseUnavailable,
	}}

	w := newWarmer(reports, warmerConfig(), 1, time.Second, logger)
	err := w.run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, analytics.ErrDatabaseUnavailable))
	assert.Contains(t, err.Error(), "dashboard/7")
	assert.Len(t, reports.sortedCalls(), 3)
	assert.Equal(t, 1, hook.LastEntry().Data["failed"])
}

func TestWarmer_RecoversPanickingJob(t *testing.T) {
	logger, _ := test.NewNullLogger()
	reports := &fakeRefresher{panic: "detailed/month"}

	w := newWarmer(reports, warmerConfig(), 2, time.Second, logger)

	var err error
	assert.NotPanics(t, func() { err = w.run(context.Background()) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in cache warm")
}

func TestNewWarmer_NoPeriods(t *testing.T) {
	logger, _ := test.NewNullLogger()
	reports := &fakeRefresher{}

	w := newWarmer(reports, config.WarmerConfig{}, 0, 0, logger)

	assert.Equal(t, 1, w.workers)
	assert.NoError(t, w.run(context.Background()))
	assert.Empty(t, reports.sortedCalls())
}
