// Package ratelimit implements the "at most N events per window W
// seconds" limiter used to throttle anonymous and discovery requests
// (spec.md §2 component C6, §4.4, §8).
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a fixed-window rate limiter queried by wall-clock time.
//
// spec.md §9's Open Question leaves fixed-vs-sliding unspecified and
// says to "test the fixed-window interpretation first"; this
// implementation is fixed-window: a window starts at the first Allow
// call, and a new one starts at the first call made after the current
// window has elapsed.
type Limiter struct {
	mu          sync.Mutex
	maxEvents   int
	window      time.Duration
	windowStart time.Time
	count       int
	started     bool
}

// New returns a Limiter allowing at most maxEvents per window
// (spec.md §4.4).
func New(maxEvents int, window time.Duration) *Limiter {
	return &Limiter{maxEvents: maxEvents, window: window}
}

// Allow reports whether another event is permitted at wall-clock time
// now, incrementing the window's count if so (spec.md §4.4: "allow(now_
// wall_time) -> bool"; §8: "after N allows returning true within W
// seconds, the next call in the same window returns false, and at least
// one call returning true exists once time has advanced by W").
func (l *Limiter) Allow(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started || now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 0
		l.started = true
	}

	if l.count >= l.maxEvents {
		return false
	}
	l.count++
	return true
}

// Reset clears the limiter's state, as if no events had ever occurred.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = false
	l.count = 0
}
