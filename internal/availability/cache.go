package availability

import (
	"sync"
	"time"
)

// Cache is the in-memory slot cache. Reads serve whatever snapshot the
// last refresh produced; staleness follows the same policy as the
// client cache's sync-state check: never refreshed means stale, and so
// does exceeding the TTL.
type Cache struct {
	mu          sync.RWMutex
	slots       []Slot
	refreshedAt time.Time

	ttl time.Duration
	now func() time.Time
}

// NewCache creates a slot cache with the given time-to-live. A zero or
// negative ttl defaults to 15 minutes.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{ttl: ttl, now: now}
}

// Replace swaps in a freshly computed slot set and stamps the refresh
// time.
func (c *Cache) Replace(slots []Slot) {
	copied := make([]Slot, len(slots))
	copy(copied, slots)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots = copied
	c.refreshedAt = c.now()
}

// Snapshot returns a copy of the cached slots, optionally filtered to
// one consultant, plus whether the snapshot is still fresh.
func (c *Cache) Snapshot(consultantID string) ([]Slot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Slot, 0, len(c.slots))
	for _, slot := range c.slots {
		if consultantID != "" && slot.ConsultantID != consultantID {
			continue
		}
		out = append(out, slot)
	}
	return out, !c.staleLocked()
}

// Stale reports whether the cache needs a refresh.
func (c *Cache) Stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.staleLocked()
}

// RefreshedAt returns when the cache was last replaced; zero if never.
func (c *Cache) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}

func (c *Cache) staleLocked() bool {
	if c.refreshedAt.IsZero() {
		return true
	}
	return c.now().Sub(c.refreshedAt) > c.ttl
}
