package watcher

import (
	"sync"
	"time"
)

const (
	// dedupWindow suppresses duplicate join events for the same member.
	dedupWindow = 30 * time.Second

	// sweepAge is when a stale dedup entry becomes eligible for cleanup.
	sweepAge = 5 * time.Minute
)

// Deduper tracks recently processed member joins so gateway redeliveries and
// rapid rejoin loops produce a single welcome. Entries older than sweepAge are
// dropped opportunistically on the next join, so the map never grows without
// bound even on busy guilds.
type Deduper struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewDeduper creates an empty dedup window using the wall clock.
func NewDeduper() *Deduper {
	return &Deduper{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// ShouldProcess records the join and reports whether it should be handled.
// A second call for the same member within the 30s window returns false.
func (d *Deduper) ShouldProcess(memberID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.sweepLocked(now)

	if seen, ok := d.entries[memberID]; ok && now.Sub(seen) < dedupWindow {
		return false
	}
	d.entries[memberID] = now
	return true
}

// Forget removes a member from the window, letting an immediate rejoin be
// processed again.
func (d *Deduper) Forget(memberID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, memberID)
}

// Len reports the number of tracked entries.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

func (d *Deduper) sweepLocked(now time.Time) {
	for id, seen := range d.entries {
		if now.Sub(seen) > sweepAge {
			delete(d.entries, id)
		}
	}
}
