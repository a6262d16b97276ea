package health

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Store identifies a backing store whose connectivity is tracked
type Store string

const (
	// StoreDatabase is the relational billing store (MySQL)
	StoreDatabase Store = "mysql"
	// StoreCache is the key/value cache store (Redis)
	StoreCache Store = "redis"
)

// State is the connectivity state of a single store
type State int32

const (
	Disconnected State = iota
	Connecting
	Ready
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Ready:
		return "READY"
	default:
		return "DISCONNECTED"
	}
}

// Event is a connection lifecycle event emitted by a store client
type Event int

const (
	EventConnect Event = iota
	EventReady
	EventError
	EventClose
)

func (e Event) String() string {
	return [...]string{"connect", "ready", "error", "close"}[e]
}

// TransitionFunc is called after a store changes state
type TransitionFunc func(store Store, from, to State)

// storeState holds the mutable flags for one store. Writers are lifecycle
// callbacks and the monitor; readers are request handlers.
type storeState struct {
	state     atomic.Int32
	abandoned atomic.Bool
	changedAt atomic.Int64
}

// Tracker owns the readiness state of the backing stores
type Tracker struct {
	stores       map[Store]*storeState
	logger       logrus.FieldLogger
	onTransition TransitionFunc
	now          func() time.Time
}

// TrackerOption configures a Tracker
type TrackerOption func(*Tracker)

// WithTransitionFunc registers a callback invoked on every state change
func WithTransitionFunc(fn TransitionFunc) TrackerOption {
	return func(t *Tracker) {
		t.onTransition = fn
	}
}

// WithClock overrides the time source used for snapshot timestamps
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a tracker for the given stores, all starting DISCONNECTED.
// With no stores it tracks the database and the cache.
func NewTracker(logger logrus.FieldLogger, stores []Store, opts ...TrackerOption) *Tracker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if len(stores) == 0 {
		stores = []Store{StoreDatabase, StoreCache}
	}

	t := &Tracker{
		stores: make(map[Store]*storeState, len(stores)),
		logger: logger.WithField("component", "health"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	// The map is never written after construction
	for _, s := range stores {
		st := &storeState{}
		st.changedAt.Store(t.now().UnixNano())
		t.stores[s] = st
	}
	return t
}

// Observe applies a lifecycle event to the store's state machine
func (t *Tracker) Observe(store Store, ev Event) {
	st, ok := t.stores[store]
	if !ok || st.abandoned.Load() {
		return
	}

	for {
		from := State(st.state.Load())
		to := next(from, ev)
		if from == to {
			return
		}
		if st.state.CompareAndSwap(int32(from), int32(to)) {
			st.changedAt.Store(t.now().UnixNano())
			t.logTransition(store, ev, from, to)
			if t.onTransition != nil {
				t.onTransition(store, from, to)
			}
			return
		}
	}
}

// next returns the state reached from s on event ev
func next(s State, ev Event) State {
	switch ev {
	case EventConnect:
		if s == Disconnected {
			return Connecting
		}
		return s
	case EventReady:
		return Ready
	default:
		return Disconnected
	}
}

func (t *Tracker) logTransition(store Store, ev Event, from, to State) {
	entry := t.logger.WithFields(logrus.Fields{
		"store": store,
		"event": ev.String(),
		"from":  from.String(),
		"to":    to.String(),
	})
	switch {
	case to == Disconnected && from == Ready:
		entry.Warn("store became unavailable")
	case to == Ready:
		entry.Info("store ready")
	default:
		// Reconnect attempts flap between these two states
		entry.Debug("store state changed")
	}
}

// Abandon marks the store permanently unavailable until the process restarts
func (t *Tracker) Abandon(store Store) {
	st, ok := t.stores[store]
	if !ok || st.abandoned.Swap(true) {
		return
	}

	from := State(st.state.Swap(int32(Disconnected)))
	st.changedAt.Store(t.now().UnixNano())
	t.logger.WithField("store", store).Error("giving up on store after repeated reconnect failures")
	if from != Disconnected && t.onTransition != nil {
		t.onTransition(store, from, Disconnected)
	}
}

// Ready reports whether the store is currently usable. Unknown stores are never ready.
func (t *Tracker) Ready(store Store) bool {
	st, ok := t.stores[store]
	if !ok {
		return false
	}
	return !st.abandoned.Load() && State(st.state.Load()) == Ready
}

// State returns the latest known state of the store
func (t *Tracker) State(store Store) State {
	st, ok := t.stores[store]
	if !ok {
		return Disconnected
	}
	return State(st.state.Load())
}

// Abandoned reports whether reconnection to the store was given up
func (t *Tracker) Abandoned(store Store) bool {
	st, ok := t.stores[store]
	return ok && st.abandoned.Load()
}

// StoreStatus is a point-in-time view of one store
type StoreStatus struct {
	State     State     `json:"-"`
	Ready     bool      `json:"ready"`
	Abandoned bool      `json:"abandoned,omitempty"`
	Since     time.Time `json:"since"`
}

// Snapshot is an immutable copy of all tracked store states
type Snapshot struct {
	Stores  map[Store]StoreStatus `json:"stores"`
	TakenAt time.Time             `json:"taken_at"`
}

// Ready reports whether the store was ready when the snapshot was taken
func (s Snapshot) Ready(store Store) bool {
	return s.Stores[store].Ready
}

// Snapshot copies the current state of every tracked store
func (t *Tracker) Snapshot() Snapshot {
	snap := Snapshot{
		Stores:  make(map[Store]StoreStatus, len(t.stores)),
		TakenAt: t.now(),
	}
	for name, st := range t.stores {
		state := State(st.state.Load())
		abandoned := st.abandoned.Load()
		snap.Stores[name] = StoreStatus{
			State:     state,
			Ready:     state == Ready && !abandoned,
			Abandoned: abandoned,
			Since:     time.Unix(0, st.changedAt.Load()),
		}
	}
	return snap
}
