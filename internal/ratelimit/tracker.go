package ratelimit

import (
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

// Tracker counts submissions per caller in fixed windows.
type Tracker struct {
	mu      sync.Mutex
	windows map[string]*window
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{windows: make(map[string]*window)}
}

// Snapshot returns the caller's count in the current window. An expired
// window is reset first.
func (t *Tracker) Snapshot(caller string, size time.Duration, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current(caller, size, now).count
}

// Increment records one submission for caller.
func (t *Tracker) Increment(caller string, size time.Duration, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current(caller, size, now).count++
}

func (t *Tracker) current(caller string, size time.Duration, now time.Time) *window {
	w := t.windows[caller]
	if w == nil || now.Sub(w.start) >= size {
		w = &window{start: now}
		t.windows[caller] = w
	}
	return w
}
