package health

import (
	"context"
	"sync"
	"time"

	"github.com/shmadmin/billing-analytics/pkg/async"
	"github.com/sirupsen/logrus"
)

// Prober checks a store and returns nil when it is usable
type Prober func(ctx context.Context) error

type probeTarget struct {
	store  Store
	probe  Prober
	policy RetryPolicy
}

// Monitor drives the tracker from periodic probes and applies the
// reconnect policy of each store
type Monitor struct {
	tracker      *Tracker
	logger       logrus.FieldLogger
	interval     time.Duration
	probeTimeout time.Duration
	targets      []probeTarget

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a monitor that probes healthy stores every interval
func NewMonitor(tracker *Tracker, logger logrus.FieldLogger, interval time.Duration) *Monitor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		tracker:      tracker,
		logger:       logger.WithField("component", "health_monitor"),
		interval:     interval,
		probeTimeout: 2 * time.Second,
	}
}

// Watch registers a store probe. Must be called before Start.
func (m *Monitor) Watch(store Store, probe Prober, policy RetryPolicy) {
	m.targets = append(m.targets, probeTarget{store: store, probe: probe, policy: policy})
}

// Start launches one probe loop per watched store
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	for _, target := range m.targets {
		m.wg.Add(1)
		async.SafeGoNoError(ctx, 0, "health probe "+string(target.store), func(ctx context.Context) {
			defer m.wg.Done()
			m.loop(ctx, target)
		})
	}
}

// Stop cancels all probe loops and waits for them to exit
func (m *Monitor) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CheckNow probes every watched store once, synchronously
func (m *Monitor) CheckNow(ctx context.Context) {
	for _, target := range m.targets {
		m.probeOnce(ctx, target)
	}
}

func (m *Monitor) loop(ctx context.Context, target probeTarget) {
	attempt := 0
	for {
		wait := m.interval
		if m.probeOnce(ctx, target) {
			attempt = 0
		} else {
			attempt++
			delay, ok := target.policy.Delay(attempt)
			if !ok {
				m.tracker.Abandon(target.store)
				return
			}
			m.logger.WithFields(logrus.Fields{
				"store":   target.store,
				"attempt": attempt,
				"delay":   delay.String(),
			}).Debug("scheduling reconnect probe")
			wait = delay
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (m *Monitor) probeOnce(ctx context.Context, target probeTarget) bool {
	if m.tracker.Abandoned(target.store) {
		return false
	}

	m.tracker.Observe(target.store, EventConnect)

	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	if err := target.probe(probeCtx); err != nil {
		if ctx.Err() != nil {
			return false
		}
		if m.tracker.Ready(target.store) {
			m.logger.WithField("store", target.store).WithError(err).Warn("store probe failed")
		}
		m.tracker.Observe(target.store, EventError)
		return false
	}

	m.tracker.Observe(target.store, EventReady)
	return true
}
