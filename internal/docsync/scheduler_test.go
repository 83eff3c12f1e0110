package docsync

import (
	"sync"
	"testing"
	"time"
)

type fireRecorder struct {
	mu       sync.Mutex
	contents []string
	block    chan struct{}
}

func (r *fireRecorder) fire(content string) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.contents = append(r.contents, content)
	r.mu.Unlock()
}

func (r *fireRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.contents...)
}

func waitForFires(t *testing.T, r *fireRecorder, want int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := r.snapshot(); len(got) >= want {
			return got
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d fires, got %d", want, len(r.snapshot()))
	return nil
}

func TestSchedulerCoalescesBurst(t *testing.T) {
	recorder := &fireRecorder{}
	sched := newWriteScheduler(20*time.Millisecond, recorder.fire)
	defer sched.Close()

	sched.Edit("a")
	sched.Edit("ab")
	sched.Edit("abc")

	fires := waitForFires(t, recorder, 1)
	time.Sleep(50 * time.Millisecond)
	fires = recorder.snapshot()
	if len(fires) != 1 {
		t.Fatalf("expected one fire for the burst, got %d", len(fires))
	}
	if fires[0] != "abc" {
		t.Fatalf("expected the last snapshot, got %q", fires[0])
	}
}

func TestSchedulerSeparateBurstsFireSeparately(t *testing.T) {
	recorder := &fireRecorder{}
	sched := newWriteScheduler(10*time.Millisecond, func(content string) {
		recorder.fire(content)
	})
	defer sched.Close()

	sched.Edit("first")
	waitForFires(t, recorder, 1)
	sched.WriteDone()

	sched.Edit("second")
	fires := waitForFires(t, recorder, 2)
	if fires[0] != "first" || fires[1] != "second" {
		t.Fatalf("expected two bursts in order, got %v", fires)
	}
}

func TestSchedulerRearmsWhileInFlight(t *testing.T) {
	recorder := &fireRecorder{block: make(chan struct{})}
	sched := newWriteScheduler(10*time.Millisecond, recorder.fire)
	defer sched.Close()

	sched.Edit("slow write")
	time.Sleep(30 * time.Millisecond) // the fire is now blocked in flight

	sched.Edit("newer content")
	time.Sleep(30 * time.Millisecond) // its timer fires and must re-arm
	if got := len(recorder.snapshot()); got != 0 {
		t.Fatalf("expected no concurrent fire while one is in flight, got %d", got)
	}

	close(recorder.block)
	waitForFires(t, recorder, 1)
	sched.WriteDone()

	fires := waitForFires(t, recorder, 2)
	sched.WriteDone()
	if fires[1] != "newer content" {
		t.Fatalf("expected the re-armed fire to carry the newest snapshot, got %q", fires[1])
	}
}

func TestSchedulerFlushBypassesQuietInterval(t *testing.T) {
	recorder := &fireRecorder{}
	sched := newWriteScheduler(time.Hour, recorder.fire)
	defer sched.Close()

	sched.Edit("forced")
	sched.Flush()
	fires := recorder.snapshot()
	if len(fires) != 1 || fires[0] != "forced" {
		t.Fatalf("expected an immediate fire on flush, got %v", fires)
	}
}

func TestSchedulerCloseDropsPendingWrite(t *testing.T) {
	recorder := &fireRecorder{}
	sched := newWriteScheduler(10*time.Millisecond, recorder.fire)

	sched.Edit("doomed")
	sched.Close()
	time.Sleep(40 * time.Millisecond)
	if got := len(recorder.snapshot()); got != 0 {
		t.Fatalf("close must not issue a trailing write, got %d fires", got)
	}
}

func TestSchedulerCancelKeepsSchedulerUsable(t *testing.T) {
	recorder := &fireRecorder{}
	sched := newWriteScheduler(10*time.Millisecond, recorder.fire)
	defer sched.Close()

	sched.Edit("dropped")
	sched.Cancel()
	time.Sleep(40 * time.Millisecond)
	if got := len(recorder.snapshot()); got != 0 {
		t.Fatalf("cancel must drop the armed write, got %d fires", got)
	}

	sched.Edit("kept")
	fires := waitForFires(t, recorder, 1)
	if fires[0] != "kept" {
		t.Fatalf("expected the scheduler to keep working after cancel, got %v", fires)
	}
}
