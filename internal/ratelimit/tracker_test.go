package ratelimit

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTrackerDeniesAfterMaxAndRecovers(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	tracker := NewTracker(3, WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		if !tracker.CanMakeRequest() {
			t.Fatalf("call %d denied, want allowed", i+1)
		}
		tracker.RecordRequest()
		clock.Advance(time.Second)
	}
	if tracker.CanMakeRequest() {
		t.Fatal("4th call allowed, want denied")
	}

	clock.Advance(Window)
	if !tracker.CanMakeRequest() {
		t.Fatal("call after the window denied, want allowed")
	}
	if got := tracker.InWindow(); got != 0 {
		t.Fatalf("InWindow = %d, want 0", got)
	}
}

func TestTrackerAllow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	tracker := NewTracker(2, WithClock(clock.Now))

	if !tracker.Allow() || !tracker.Allow() {
		t.Fatal("first two calls should be allowed")
	}
	if tracker.Allow() {
		t.Fatal("third call should be denied")
	}
	if got := tracker.InWindow(); got != 2 {
		t.Fatalf("denied call must not be recorded, InWindow = %d", got)
	}

	tracker.SetMax(3)
	if !tracker.Allow() {
		t.Fatal("call should be allowed after raising the limit")
	}
}

func TestTrackerDefaults(t *testing.T) {
	tracker := NewTracker(0)
	if tracker.Max() != DefaultMax {
		t.Fatalf("Max = %d, want %d", tracker.Max(), DefaultMax)
	}
}

func TestTrackerConcurrentAllow(t *testing.T) {
	tracker := NewTracker(50)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tracker.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 50 {
		t.Fatalf("allowed = %d, want 50", allowed)
	}
}
