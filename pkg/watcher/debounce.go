package watcher

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into a single callback once the
// quiet period elapses.
type Debouncer struct {
	mu    sync.Mutex
	d     time.Duration
	timer *time.Timer
}

// NewDebouncer creates a debouncer with the given quiet period.
// Non-positive durations fall back to DefaultDebounceDuration.
func NewDebouncer(d time.Duration) *Debouncer {
	if d <= 0 {
		d = DefaultDebounceDuration
	}
	return &Debouncer{d: d}
}

// Duration returns the quiet period.
func (db *Debouncer) Duration() time.Duration {
	return db.d
}

// Trigger schedules fn after the quiet period, resetting any pending
// schedule. Only the fn from the latest Trigger runs.
func (db *Debouncer) Trigger(fn func()) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.timer != nil {
		db.timer.Stop()
	}
	db.timer = time.AfterFunc(db.d, fn)
}

// Cancel drops any pending trigger.
func (db *Debouncer) Cancel() {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.timer != nil {
		db.timer.Stop()
		db.timer = nil
	}
}
