package application

import (
	"testing"
	"time"
)

func TestOccupancyCacheStoresAndReturnsCopies(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	current := fixed
	cache := newOccupancyCache(time.Minute, 4, func() time.Time { return current })

	original := []Appointment{{ID: "appt-1", ClinicID: "clinic-1"}}
	cache.Store("key", cache.Generation(), original)

	// Mutating the original slice should not affect the cached copy.
	original[0].ID = "mutated"

	cached, ok := cache.Get("key")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if cached[0].ID != "appt-1" {
		t.Fatalf("expected cached appointment id to remain unchanged, got %s", cached[0].ID)
	}

	cached[0].ID = "changed"
	cachedAgain, ok := cache.Get("key")
	if !ok {
		t.Fatalf("expected cache hit on second read")
	}
	if cachedAgain[0].ID != "appt-1" {
		t.Fatalf("expected cache to return independent copy, got %s", cachedAgain[0].ID)
	}
}

func TestOccupancyCacheExpiresEntries(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	current := fixed
	cache := newOccupancyCache(time.Second, 4, func() time.Time { return current })

	cache.Store("key", cache.Generation(), []Appointment{{ID: "appt-1"}})
	if _, ok := cache.Get("key"); !ok {
		t.Fatalf("expected cache hit before expiry")
	}

	current = current.Add(2 * time.Second)
	if _, ok := cache.Get("key"); ok {
		t.Fatalf("expected cache entry to expire")
	}
}

func TestOccupancyCacheInvalidate(t *testing.T) {
	cache := newOccupancyCache(time.Minute, 4, time.Now)
	cache.Store("key", cache.Generation(), []Appointment{{ID: "appt-1"}})
	cache.Invalidate()
	if _, ok := cache.Get("key"); ok {
		t.Fatalf("expected cache to be empty after invalidation")
	}
}

func TestOccupancyCacheDropsStaleGeneration(t *testing.T) {
	cache := newOccupancyCache(time.Minute, 4, time.Now)
	generation := cache.Generation()
	cache.Invalidate()

	cache.Store("key", generation, []Appointment{{ID: "appt-1"}})
	if _, ok := cache.Get("key"); ok {
		t.Fatalf("expected load started before invalidation to be discarded")
	}
}

func TestOccupancyCacheEvictsWhenFull(t *testing.T) {
	cache := newOccupancyCache(time.Minute, 2, time.Now)
	generation := cache.Generation()
	cache.Store("a", generation, []Appointment{{ID: "a"}})
	cache.Store("b", generation, []Appointment{{ID: "b"}})
	cache.Store("c", generation, []Appointment{{ID: "c"}})

	if len(cache.entries) != 2 {
		t.Fatalf("expected cache to hold 2 entries, got %d", len(cache.entries))
	}
	if _, ok := cache.Get("c"); !ok {
		t.Fatalf("expected most recent entry to be cached")
	}
}
