// Package pickup maps order timestamps to the weekly pickup slot.
package pickup

import "time"

// Scheduler implements the weekly cutoff rule: orders placed before the
// cutoff fall into this week's pickup slot, later orders roll into next
// week's. Deterministic for a given timestamp; the computation stays in the
// timestamp's own location.
type Scheduler struct {
	pickupWeekday time.Weekday
	cutoffWeekday time.Weekday
	cutoffHour    int
}

// NewScheduler creates a scheduler for the given pickup weekday and cutoff.
// The cutoff weekday is interpreted relative to the pickup day within the
// same week (Wednesday 18:00 before a Friday pickup, by default).
func NewScheduler(pickupWeekday, cutoffWeekday time.Weekday, cutoffHour int) *Scheduler {
	return &Scheduler{
		pickupWeekday: pickupWeekday,
		cutoffWeekday: cutoffWeekday,
		cutoffHour:    cutoffHour,
	}
}

// PickupDate returns the pickup day for an order placed at t, normalized to
// midnight in t's location.
func (s *Scheduler) PickupDate(t time.Time) time.Time {
	candidate := nextWeekday(t, s.pickupWeekday)

	// Cutoff for the candidate's week sits a fixed number of days before the
	// pickup day.
	daysBefore := int(s.pickupWeekday-s.cutoffWeekday+7) % 7
	cutoff := candidate.AddDate(0, 0, -daysBefore).Add(time.Duration(s.cutoffHour) * time.Hour)

	if !t.Before(cutoff) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

// PickupWeek formats the pickup day as YYYY-MM-DD.
func (s *Scheduler) PickupWeek(t time.Time) string {
	return s.PickupDate(t).Format("2006-01-02")
}

// nextWeekday returns the next occurrence of w on or after t, at midnight.
func nextWeekday(t time.Time, w time.Weekday) time.Time {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	offset := int(w-day.Weekday()+7) % 7
	return day.AddDate(0, 0, offset)
}
