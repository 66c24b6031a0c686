// Package ratelimit caps how fast a caller may submit transfers.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// CheckResult is the outcome of a rate limit check.
type CheckResult struct {
	Exceeded bool
	Current  int
	Limit    int
	Reason   string
}

// Check compares the current count against the limit.
func Check(count int, limit *Limit) CheckResult {
	if !limit.Active() {
		return CheckResult{}
	}
	if count >= limit.MaxTransfers {
		return CheckResult{
			Exceeded: true,
			Current:  count,
			Limit:    limit.MaxTransfers,
			Reason: fmt.Sprintf("rate limit exceeded: %d/%d transfers in %s window",
				count, limit.MaxTransfers, limit.Window),
		}
	}
	return CheckResult{Current: count, Limit: limit.MaxTransfers}
}

// Enforcer applies a Config to incoming submissions.
type Enforcer struct {
	cfg     Config
	tracker *Tracker
	now     func() time.Time
	mu      sync.Mutex
}

// NewEnforcer returns nil when cfg has no active limits. A nil Enforcer
// allows everything.
func NewEnforcer(cfg Config) *Enforcer {
	if !cfg.HasLimits() {
		return nil
	}
	return &Enforcer{cfg: cfg, tracker: NewTracker(), now: time.Now}
}

// Allow checks caller against its limit and counts the submission when it
// passes. Lookup order: cfg[caller], then cfg["*"], else unlimited.
func (e *Enforcer) Allow(caller string) CheckResult {
	if e == nil {
		return CheckResult{}
	}
	limit := e.cfg[caller]
	if limit == nil {
		limit = e.cfg["*"]
	}
	if !limit.Active() {
		return CheckResult{}
	}

	// Snapshot and increment must not interleave for one caller.
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	result := Check(e.tracker.Snapshot(caller, limit.Window, now), limit)
	if !result.Exceeded {
		e.tracker.Increment(caller, limit.Window, now)
	}
	return result
}
