package docsync

import (
	"testing"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to SyncStatus }{
		{StatusIdle, StatusSyncing},
		{StatusIdle, StatusOffline},
		{StatusIdle, StatusConflict},
		{StatusSyncing, StatusSynced},
		{StatusSyncing, StatusError},
		{StatusSynced, StatusSyncing},
		{StatusSynced, StatusOffline},
		{StatusSynced, StatusConflict},
		{StatusOffline, StatusIdle},
		{StatusOffline, StatusSynced},
		{StatusOffline, StatusSyncing},
		{StatusError, StatusSyncing},
		{StatusConflict, StatusSyncing},
		{StatusConflict, StatusSynced},
		{StatusSynced, StatusSynced},
	}
	for _, tc := range allowed {
		if !canTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	forbidden := []struct{ from, to SyncStatus }{
		{StatusIdle, StatusSynced},
		{StatusIdle, StatusError},
		{StatusSyncing, StatusConflict},
		{StatusSyncing, StatusOffline},
		{StatusError, StatusSynced},
		{StatusError, StatusIdle},
		{StatusError, StatusConflict},
		{StatusConflict, StatusIdle},
		{StatusConflict, StatusError},
		{StatusOffline, StatusConflict},
	}
	for _, tc := range forbidden {
		if canTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestStateHubRejectsIllegalTransition(t *testing.T) {
	hub := newStateHub()
	state := hub.set(func(st *SyncState) { st.Status = StatusSynced })
	if state.Status != StatusIdle {
		t.Fatalf("idle -> synced must be rejected, got %s", state.Status)
	}
	state = hub.set(func(st *SyncState) { st.Status = StatusSyncing })
	if state.Status != StatusSyncing {
		t.Fatalf("idle -> syncing must be allowed, got %s", state.Status)
	}
}

func TestStateHubNotifiesSubscribersInOrder(t *testing.T) {
	hub := newStateHub()
	var seen []SyncStatus
	unsubscribe := hub.Subscribe(func(state SyncState) {
		seen = append(seen, state.Status)
	})

	hub.set(func(st *SyncState) { st.Status = StatusSyncing })
	hub.set(func(st *SyncState) { st.Status = StatusSynced })

	want := []SyncStatus{StatusIdle, StatusSyncing, StatusSynced}
	if len(seen) != len(want) {
		t.Fatalf("expected %d notifications, got %d", len(want), len(seen))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("notification %d: expected %s, got %s", i, want[i], seen[i])
		}
	}

	unsubscribe()
	hub.set(func(st *SyncState) { st.Status = StatusSyncing })
	if len(seen) != len(want) {
		t.Fatalf("unsubscribed listener must not be notified")
	}
}
