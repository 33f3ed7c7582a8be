// Package actiontimer provides one-shot timers keyed by action category.
// Arming a category that already has a pending timer cancels the pending
// one first, so two competing timers for the same category can never both
// fire.
package actiontimer

import (
	"sync"
	"time"
)

type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func New() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

// Arm schedules fn to run after d, replacing any pending timer for the
// same category.
func (s *Scheduler) Arm(category string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pending, ok := s.timers[category]; ok {
		pending.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		// a replacement may have been armed between fire and lock; the
		// stale callback must not run its fn
		if s.timers[category] != timer {
			s.mu.Unlock()
			return
		}
		delete(s.timers, category)
		s.mu.Unlock()

		fn()
	})
	s.timers[category] = timer
}

// Cancel stops the pending timer for a category. Returns false if nothing
// was pending.
func (s *Scheduler) Cancel(category string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[category]
	if !ok {
		return false
	}

	timer.Stop()
	delete(s.timers, category)

	return true
}

// CancelAll stops every pending timer.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for category, timer := range s.timers {
		timer.Stop()
		delete(s.timers, category)
	}
}

// Pending reports whether a timer is armed for the category.
func (s *Scheduler) Pending(category string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.timers[category]
	return ok
}
