package health

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestTracker_StartsDisconnected(t *testing.T) {
	tr := NewTracker(quietLogger(), nil)

	assert.False(t, tr.Ready(StoreDatabase))
	assert.False(t, tr.Ready(StoreCache))
	assert.Equal(t, Disconnected, tr.State(StoreDatabase))
}

func TestTracker_StateMachine(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   State
	}{
		{"connect moves to connecting", []Event{EventConnect}, Connecting},
		{"connect then ready", []Event{EventConnect, EventReady}, Ready},
		{"ready directly", []Event{EventReady}, Ready},
		{"connect while ready keeps ready", []Event{EventReady, EventConnect}, Ready},
		{"error drops ready", []Event{EventReady, EventError}, Disconnected},
		{"close drops ready", []Event{EventReady, EventClose}, Disconnected},
		{"error while connecting", []Event{EventConnect, EventError}, Disconnected},
		{"recovers after error", []Event{EventReady, EventError, EventConnect, EventReady}, Ready},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker(quietLogger(), nil)
			for _, ev := range tt.events {
				tr.Observe(StoreCache, ev)
			}
			assert.Equal(t, tt.want, tr.State(StoreCache))
			assert.Equal(t, tt.want == Ready, tr.Ready(StoreCache))
		})
	}
}

func TestTracker_StoresAreIndependent(t *testing.T) {
	tr := NewTracker(quietLogger(), nil)

	tr.Observe(StoreDatabase, EventReady)

	assert.True(t, tr.Ready(StoreDatabase))
	assert.False(t, tr.Ready(StoreCache))
}

func TestTracker_UnknownStore(t *testing.T) {
	tr := NewTracker(quietLogger(), []Store{StoreDatabase})

	assert.NotPanics(t, func() {
		tr.Observe(StoreCache, EventReady)
		tr.Abandon(StoreCache)
	})
	assert.False(t, tr.Ready(StoreCache))
}

func TestTracker_AbandonIsPermanent(t *testing.T) {
	tr := NewTracker(quietLogger(), nil)
	tr.Observe(StoreCache, EventReady)

	tr.Abandon(StoreCache)
	tr.Observe(StoreCache, EventReady)

	assert.False(t, tr.Ready(StoreCache))
	assert.True(t, tr.Abandoned(StoreCache))
	assert.True(t, tr.Snapshot().Stores[StoreCache].Abandoned)
}

func TestTracker_LogsOncePerTransition(t *testing.T) {
	logger, hook := test.NewNullLogger()
	tr := NewTracker(logger, nil)

	tr.Observe(StoreDatabase, EventReady)
	tr.Observe(StoreDatabase, EventReady)
	tr.Observe(StoreDatabase, EventReady)
	tr.Observe(StoreDatabase, EventError)
	tr.Observe(StoreDatabase, EventError)

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, logrus.InfoLevel, entries[0].Level)
	assert.Equal(t, logrus.WarnLevel, entries[1].Level)
	assert.Equal(t, StoreDatabase, entries[1].Data["store"])
}

func TestTracker_TransitionCallback(t *testing.T) {
	var mu sync.Mutex
	var seen []State

	tr := NewTracker(quietLogger(), nil, WithTransitionFunc(func(store Store, from, to State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, to)
	}))

	tr.Observe(StoreCache, EventConnect)
	tr.Observe(StoreCache, EventReady)
	tr.Observe(StoreCache, EventClose)

	assert.Equal(t, []State{Connecting, Ready, Disconnected}, seen)
}

func TestTracker_SnapshotIsImmutableCopy(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker(quietLogger(), nil, WithClock(func() time.Time { return fixed }))
	tr.Observe(StoreDatabase, EventReady)

	snap := tr.Snapshot()
	tr.Observe(StoreDatabase, EventError)

	assert.True(t, snap.Ready(StoreDatabase))
	assert.False(t, tr.Ready(StoreDatabase))
	assert.Equal(t, fixed, snap.TakenAt)
}

func TestTracker_ConcurrentReadsAndWrites(t *testing.T) {
	tr := NewTracker(quietLogger(), nil)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if (i+j)%2 == 0 {
					tr.Observe(StoreCache, EventReady)
				} else {
					tr.Observe(StoreCache, EventError)
				}
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = tr.Ready(StoreCache)
				_ = tr.Snapshot()
			}
		}()
	}
	wg.Wait()
}
