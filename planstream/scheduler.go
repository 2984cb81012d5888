package planstream

import (
	"sync"
	"time"
)

// flushScheduler coalesces snapshot publications: any number of
// schedule calls within one interval collapse into a single fire. A
// non-positive interval fires synchronously, which keeps tests
// deterministic.
type flushScheduler struct {
	interval time.Duration
	fn       func()

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	stopped bool
}

func newFlushScheduler(interval time.Duration, fn func()) *flushScheduler {
	return &flushScheduler{interval: interval, fn: fn}
}

// schedule requests a flush. If one is already pending the call is a
// no-op, so a burst of deltas costs one publication.
func (s *flushScheduler) schedule() {
	if s.interval <= 0 {
		s.fn()
		return
	}

	s.mu.Lock()
	if s.stopped || s.pending {
		s.mu.Unlock()
		return
	}
	s.pending = true
	s.timer = time.AfterFunc(s.interval, s.fire)
	s.mu.Unlock()
}

func (s *flushScheduler) fire() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.pending = false
	s.mu.Unlock()
	s.fn()
}

// cancel drops any pending flush without firing it. Callers flush
// immediately themselves when they need the latest state out.
func (s *flushScheduler) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = false
}

// stop cancels and prevents any future fire. Used during teardown so a
// racing timer cannot publish after buffers are cleared.
func (s *flushScheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = false
}

// resume re-arms a stopped scheduler for a new connection.
func (s *flushScheduler) resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = false
}
