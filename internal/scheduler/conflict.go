package scheduler

import "time"

const (
	// DefaultDuration is applied when a booking does not state its length.
	DefaultDuration = 30 * time.Minute
	// DefaultLookback is how far before a requested instant an existing booking is
	// still treated as possibly running.
	DefaultLookback = 60 * time.Minute
)

// Booking is the subset of a stored appointment needed to evaluate conflicts.
type Booking struct {
	ID        string
	ClinicID  string
	Start     time.Time
	Duration  time.Duration
	Cancelled bool
}

// Window is a half-open range [From, To) of anchor instants.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t lies inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// ConflictPolicy configures the creation-time window check.
//
// A booking conflicts with a request for instant I and duration D when its anchor
// lies in [I-Lookback, I+D). This is a heuristic rather than an interval overlap
// test: an earlier booking longer than Lookback is not detected.
type ConflictPolicy struct {
	Lookback time.Duration
}

// DefaultConflictPolicy returns the 60 minute lookback policy.
func DefaultConflictPolicy() ConflictPolicy {
	return ConflictPolicy{Lookback: DefaultLookback}
}

// Window returns the range of anchors that conflict with a request at instant.
func (p ConflictPolicy) Window(instant time.Time, duration time.Duration) Window {
	if duration <= 0 {
		duration = DefaultDuration
	}
	lookback := p.Lookback
	if lookback < 0 {
		lookback = 0
	}
	return Window{From: instant.Add(-lookback), To: instant.Add(duration)}
}

// FindConflict returns the first active booking, other than excludeID, whose anchor
// falls inside the policy window for the request.
func (p ConflictPolicy) FindConflict(existing []Booking, instant time.Time, duration time.Duration, excludeID string) (Booking, bool) {
	window := p.Window(instant, duration)
	for _, booking := range existing {
		if booking.Cancelled {
			continue
		}
		if excludeID != "" && booking.ID == excludeID {
			continue
		}
		if window.Contains(booking.Start) {
			return booking, true
		}
	}
	return Booking{}, false
}

// FindExact returns the active booking anchored at exactly instant, if any.
func FindExact(existing []Booking, instant time.Time) (Booking, bool) {
	for _, booking := range existing {
		if booking.Cancelled {
			continue
		}
		if booking.Start.Equal(instant) {
			return booking, true
		}
	}
	return Booking{}, false
}

// IndexByStart maps each active booking to its anchor instant in UTC.
func IndexByStart(existing []Booking) map[time.Time]Booking {
	index := make(map[time.Time]Booking, len(existing))
	for _, booking := range existing {
		if booking.Cancelled {
			continue
		}
		key := booking.Start.UTC()
		if _, ok := index[key]; ok {
			continue
		}
		index[key] = booking
	}
	return index
}
