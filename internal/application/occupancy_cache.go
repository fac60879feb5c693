package application

import (
	"sync"
	"time"
)

// occupancyCache stores recently loaded appointment ranges so repeated availability
// queries skip storage while the schedule remains unchanged.
type occupancyCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	generation uint64
	entries    map[string]occupancyCacheEntry
}

type occupancyCacheEntry struct {
	appointments []Appointment
	expiresAt    time.Time
}

func newOccupancyCache(ttl time.Duration, maxEntries int, now func() time.Time) *occupancyCache {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &occupancyCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]occupancyCacheEntry),
	}
}

func (c *occupancyCache) Get(key string) ([]Appointment, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return cloneAppointments(entry.appointments), true
}

// Generation identifies the current cache epoch. Loads started before an
// invalidation carry a stale generation and are not stored.
func (c *occupancyCache) Generation() uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Store caches appointments under key when no invalidation happened since generation.
func (c *occupancyCache) Store(key string, generation uint64, appointments []Appointment) {
	if c == nil {
		return
	}
	cloned := cloneAppointments(appointments)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return
	}
	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = occupancyCacheEntry{appointments: cloned, expiresAt: expiry}
}

func (c *occupancyCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.generation++
	c.entries = make(map[string]occupancyCacheEntry)
	c.mu.Unlock()
}

func (c *occupancyCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *occupancyCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func cloneAppointments(appointments []Appointment) []Appointment {
	if len(appointments) == 0 {
		return nil
	}
	out := make([]Appointment, len(appointments))
	copy(out, appointments)
	return out
}

func occupancyCacheKey(filter AppointmentFilter) string {
	return filter.From.UTC().Format(time.RFC3339) + "|" + filter.To.UTC().Format(time.RFC3339)
}
