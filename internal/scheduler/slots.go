package scheduler

import "time"

const (
	// DefaultOpenHour is the first bookable hour of a business day.
	DefaultOpenHour = 8
	// DefaultCloseHour is the hour at which the last slot has already ended.
	DefaultCloseHour = 18
	// SlotStep is the spacing between consecutive bookable instants.
	SlotStep = 30 * time.Minute
)

// Grid describes the business-hour rules used to derive bookable slots.
type Grid struct {
	OpenHour  int
	CloseHour int
	Step      time.Duration
}

// DefaultGrid returns the weekday 08:00-18:00 grid with 30 minute slots.
func DefaultGrid() Grid {
	return Grid{OpenHour: DefaultOpenHour, CloseHour: DefaultCloseHour, Step: SlotStep}
}

// GenerateSlots lists the bookable instants between the calendar dates of start and
// end (both inclusive) using the default grid.
func GenerateSlots(start, end time.Time, loc *time.Location) []time.Time {
	return DefaultGrid().Slots(start, end, loc)
}

// SlotsPerDay reports how many slots a single weekday yields.
func (g Grid) SlotsPerDay() int {
	g = g.normalized()
	span := time.Duration(g.CloseHour-g.OpenHour) * time.Hour
	if span <= 0 {
		return 0
	}
	return int(span / g.Step)
}

// Slots lists the bookable instants for every weekday between the calendar dates of
// start and end, inclusive, in ascending order. Weekends yield nothing and a start
// date after the end date yields an empty result.
func (g Grid) Slots(start, end time.Time, loc *time.Location) []time.Time {
	g = g.normalized()
	if loc == nil {
		loc = time.UTC
	}

	first := calendarDate(start, loc)
	last := calendarDate(end, loc)
	if first.After(last) {
		return []time.Time{}
	}

	days := 0
	for day := first; !day.After(last); day = nextDay(day) {
		days++
	}

	perDay := g.SlotsPerDay()
	out := make([]time.Time, 0, days*perDay)
	for day := first; !day.After(last); day = nextDay(day) {
		if !IsBusinessDay(day) {
			continue
		}
		open := time.Date(day.Year(), day.Month(), day.Day(), g.OpenHour, 0, 0, 0, loc)
		for i := 0; i < perDay; i++ {
			out = append(out, open.Add(time.Duration(i)*g.Step))
		}
	}
	return out
}

// IsBusinessDay reports whether t falls on Monday through Friday.
func IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

// normalized replaces an unset or invalid hour pair with the default business hours.
func (g Grid) normalized() Grid {
	if g.Step <= 0 {
		g.Step = SlotStep
	}
	if (g.OpenHour == 0 && g.CloseHour == 0) ||
		g.OpenHour < 0 || g.OpenHour > 23 ||
		g.CloseHour <= g.OpenHour || g.CloseHour > 24 {
		g.OpenHour = DefaultOpenHour
		g.CloseHour = DefaultCloseHour
	}
	return g
}

// calendarDate keeps the year, month and day fields of t as written and anchors
// them at midnight in loc.
func calendarDate(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// nextDay advances by calendar day so DST transitions do not skew midnight.
func nextDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, day.Location())
}
