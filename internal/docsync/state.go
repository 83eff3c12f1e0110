package docsync

import (
	"sync"
	"time"
)

type SyncStatus string

const (
	StatusIdle     SyncStatus = "idle"
	StatusSyncing  SyncStatus = "syncing"
	StatusSynced   SyncStatus = "synced"
	StatusOffline  SyncStatus = "offline"
	StatusError    SyncStatus = "error"
	StatusConflict SyncStatus = "conflict"
)

type SyncState struct {
	Status         SyncStatus `json:"status"`
	LastSyncedAt   *time.Time `json:"lastSyncedAt,omitempty"`
	PendingChanges bool       `json:"pendingChanges"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	RetryCount     int        `json:"retryCount"`
}

type StateListener func(SyncState)

var allowedTransitions = map[SyncStatus][]SyncStatus{
	StatusIdle:     {StatusSyncing, StatusOffline, StatusConflict},
	StatusSyncing:  {StatusSynced, StatusError, StatusSyncing},
	StatusSynced:   {StatusSyncing, StatusOffline, StatusConflict},
	StatusOffline:  {StatusIdle, StatusSynced, StatusSyncing},
	StatusError:    {StatusSyncing},
	StatusConflict: {StatusSyncing, StatusSynced},
}

// canTransition reports whether moving from one status to another is legal.
// Identity transitions are always allowed so state refreshes (for example a
// pending flag flip) do not need special casing.
func canTransition(from, to SyncStatus) bool {
	if from == to {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// stateHub holds the current SyncState and fans transitions out to
// subscribers. Notifications run synchronously under the caller's event so
// observers see transitions in the order they happened.
type stateHub struct {
	mu        sync.Mutex
	state     SyncState
	nextID    int
	listeners map[int]StateListener
}

func newStateHub() *stateHub {
	return &stateHub{
		state:     SyncState{Status: StatusIdle},
		listeners: make(map[int]StateListener),
	}
}

func (h *stateHub) State() SyncState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Subscribe registers a listener and returns its unsubscribe function. The
// listener immediately receives the current state.
func (h *stateHub) Subscribe(fn StateListener) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	current := h.state
	h.mu.Unlock()

	fn(current)
	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// set applies mutate to a copy of the state and publishes it. Illegal status
// transitions are dropped; the mutation must route through a legal edge.
func (h *stateHub) set(mutate func(*SyncState)) SyncState {
	h.mu.Lock()
	next := h.state
	mutate(&next)
	if !canTransition(h.state.Status, next.Status) {
		h.mu.Unlock()
		return h.state
	}
	h.state = next
	listeners := make([]StateListener, 0, len(h.listeners))
	for _, fn := range h.listeners {
		listeners = append(listeners, fn)
	}
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return next
}
