// Package ratelimit tracks outbound GitHub calls in a trailing one minute window.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultMax is the number of outbound calls allowed per window.
	DefaultMax = 600

	// Window is the length of the trailing window.
	Window = 60 * time.Second
)

// Tracker is an in-memory sliding-window counter. It is safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	max   int
	calls []time.Time
	now   func() time.Time
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithClock replaces time.Now, which lets tests move time forward.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker returns a tracker allowing max calls per window. max <= 0 selects DefaultMax.
func NewTracker(max int, opts ...TrackerOption) *Tracker {
	if max <= 0 {
		max = DefaultMax
	}
	t := &Tracker{max: max, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CanMakeRequest drops timestamps older than the window and reports whether another call fits.
func (t *Tracker) CanMakeRequest() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked(t.now())
	return len(t.calls) < t.max
}

// RecordRequest records a call at the current time.
func (t *Tracker) RecordRequest() {
	t.mu.Lock()
	t.calls = append(t.calls, t.now())
	t.mu.Unlock()
}

// Allow checks and records under a single lock. It returns false without
// recording when the window is full.
func (t *Tracker) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.pruneLocked(now)
	if len(t.calls) >= t.max {
		return false
	}
	t.calls = append(t.calls, now)
	return true
}

// SetMax changes the limit. Calls already recorded stay in the window.
func (t *Tracker) SetMax(max int) {
	if max <= 0 {
		max = DefaultMax
	}
	t.mu.Lock()
	t.max = max
	t.mu.Unlock()
}

// Max returns the current limit.
func (t *Tracker) Max() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.max
}

// InWindow returns how many calls the current window holds.
func (t *Tracker) InWindow() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked(t.now())
	return len(t.calls)
}

func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-Window)
	idx := 0
	for idx < len(t.calls) && !t.calls[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		t.calls = append(t.calls[:0], t.calls[idx:]...)
	}
}
