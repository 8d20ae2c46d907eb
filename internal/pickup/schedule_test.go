package pickup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Friday pickup with a Wednesday 18:00 cutoff, the canonical rule.
func newTestScheduler() *Scheduler {
	return NewScheduler(time.Friday, time.Wednesday, 18)
}

func TestScheduler_PickupWeek(t *testing.T) {
	s := newTestScheduler()

	// 2025-06-04 is a Wednesday; 2025-06-06 the Friday after.
	tests := []struct {
		name  string
		order time.Time
		want  string
	}{
		{
			name:  "monday maps to this friday",
			order: time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC),
			want:  "2025-06-06",
		},
		{
			name:  "one second before cutoff maps to this friday",
			order: time.Date(2025, 6, 4, 17, 59, 59, 0, time.UTC),
			want:  "2025-06-06",
		},
		{
			name:  "exactly at cutoff rolls to next friday",
			order: time.Date(2025, 6, 4, 18, 0, 0, 0, time.UTC),
			want:  "2025-06-13",
		},
		{
			name:  "thursday rolls to next friday",
			order: time.Date(2025, 6, 5, 8, 0, 0, 0, time.UTC),
			want:  "2025-06-13",
		},
		{
			name:  "pickup day itself rolls to next friday",
			order: time.Date(2025, 6, 6, 7, 0, 0, 0, time.UTC),
			want:  "2025-06-13",
		},
		{
			name:  "saturday maps to the coming friday",
			order: time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC),
			want:  "2025-06-13",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.PickupWeek(tt.order))
		})
	}
}

func TestScheduler_CutoffBoundarySevenDaysApart(t *testing.T) {
	s := newTestScheduler()

	before := time.Date(2025, 6, 4, 17, 59, 59, 0, time.UTC)
	at := time.Date(2025, 6, 4, 18, 0, 0, 0, time.UTC)

	gap := s.PickupDate(at).Sub(s.PickupDate(before))
	assert.Equal(t, 7*24*time.Hour, gap)
}

func TestScheduler_Deterministic(t *testing.T) {
	s := newTestScheduler()
	order := time.Date(2025, 6, 3, 14, 0, 0, 0, time.UTC)

	first := s.PickupDate(order)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, s.PickupDate(order))
	}
}

func TestScheduler_NormalizesToMidnight(t *testing.T) {
	s := newTestScheduler()
	d := s.PickupDate(time.Date(2025, 6, 2, 23, 45, 12, 999, time.UTC))

	assert.Equal(t, 0, d.Hour())
	assert.Equal(t, 0, d.Minute())
	assert.Equal(t, 0, d.Second())
	assert.Equal(t, time.Friday, d.Weekday())
}

func TestScheduler_UsesTimestampLocation(t *testing.T) {
	s := newTestScheduler()

	loc := time.FixedZone("UTC+10", 10*3600)
	// 17:30 local on Wednesday is before the local cutoff even though it is
	// already past 18:00 UTC of the previous day.
	order := time.Date(2025, 6, 4, 17, 30, 0, 0, loc)

	assert.Equal(t, "2025-06-06", s.PickupWeek(order))
}
