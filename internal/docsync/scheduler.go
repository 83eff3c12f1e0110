package docsync

import (
	"sync"
	"time"
)

const defaultQuietInterval = 1200 * time.Millisecond

// writeScheduler coalesces full-content snapshots over a quiet interval and
// fires at most one write at a time. A timer that fires while a write is
// outstanding re-arms instead of issuing a concurrent write, carrying the
// newest snapshot forward.
type writeScheduler struct {
	mu         sync.Mutex
	quiet      time.Duration
	timer      *time.Timer
	pending    string
	hasPending bool
	inFlight   bool
	rearm      bool
	fire       func(content string)
	closed     bool
}

func newWriteScheduler(quiet time.Duration, fire func(content string)) *writeScheduler {
	if quiet <= 0 {
		quiet = defaultQuietInterval
	}
	return &writeScheduler{quiet: quiet, fire: fire}
}

// Edit records the newest snapshot and restarts the quiet-interval timer.
func (s *writeScheduler) Edit(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = content
	s.hasPending = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.quiet, s.onTimer)
}

// Flush fires immediately with whatever snapshot is pending, bypassing the
// quiet interval. Used for explicit saves.
func (s *writeScheduler) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.onTimer()
}

func (s *writeScheduler) onTimer() {
	s.mu.Lock()
	if s.closed || !s.hasPending {
		s.mu.Unlock()
		return
	}
	if s.inFlight {
		s.rearm = true
		s.mu.Unlock()
		return
	}
	content := s.pending
	s.hasPending = false
	s.inFlight = true
	fire := s.fire
	s.mu.Unlock()

	fire(content)
}

// WriteDone clears the in-flight slot. If a timer fired during the write and
// newer content is pending, the next write is issued right away on a fresh
// timer goroutine so completion handlers never nest.
func (s *writeScheduler) WriteDone() {
	s.mu.Lock()
	s.inFlight = false
	fireAgain := s.rearm && s.hasPending && !s.closed
	s.rearm = false
	s.mu.Unlock()
	if fireAgain {
		time.AfterFunc(0, s.onTimer)
	}
}

// Pending reports whether a newer snapshot is waiting for the next fire.
func (s *writeScheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasPending
}

// Cancel drops any armed timer and pending snapshot without closing the
// scheduler. Used when a conflict is detected: nothing may be written until
// the conflict is explicitly resolved.
func (s *writeScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.hasPending = false
	s.rearm = false
}

// Close cancels any pending timer without a trailing write. Unsaved content
// stays in the draft store.
func (s *writeScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.hasPending = false
	s.rearm = false
}
