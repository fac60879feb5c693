package scheduler

import (
	"context"
	"time"
)

// DefaultMaxAttempts bounds the next-available search to ten hours ahead.
const DefaultMaxAttempts = 20

// ConflictCheck reports whether a booking of duration at candidate would conflict.
type ConflictCheck func(ctx context.Context, candidate time.Time, duration time.Duration) (bool, error)

// FindNextAvailable steps forward from start in SlotStep increments, checking each
// candidate after advancing, and returns the first one without a conflict. The
// search ignores weekends and business hours. When every attempt conflicts the
// second return value is false.
func FindNextAvailable(ctx context.Context, check ConflictCheck, start time.Time, duration time.Duration, maxAttempts int) (time.Time, bool, error) {
	if check == nil {
		return time.Time{}, false, nil
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	candidate := start
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return time.Time{}, false, err
		}
		candidate = candidate.Add(SlotStep)
		conflict, err := check(ctx, candidate, duration)
		if err != nil {
			return time.Time{}, false, err
		}
		if !conflict {
			return candidate, true, nil
		}
	}
	return time.Time{}, false, nil
}

// InMemoryCheck adapts a booking snapshot into a ConflictCheck using policy.
func InMemoryCheck(policy ConflictPolicy, existing []Booking, excludeID string) ConflictCheck {
	return func(_ context.Context, candidate time.Time, duration time.Duration) (bool, error) {
		_, found := policy.FindConflict(existing, candidate, duration, excludeID)
		return found, nil
	}
}
