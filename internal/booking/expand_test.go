package booking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-booking/internal/booking"
)

func pendingAt(t time.Time, typ booking.BookingType) *booking.Booking {
	return &booking.Booking{
		SlotStart:   t,
		SlotEnd:     t.Add(15 * time.Minute),
		BookingType: typ,
		Status:      booking.StatusPending,
	}
}

func TestExpand(t *testing.T) {
	b := pendingAt(at("10:00 AM"), booking.BookingWalkIn)

	rng, err := booking.Expand(b, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, booking.Range{Start: at("10:00 AM"), End: at("10:15 AM")}, rng)

	start := at("09:15 AM")
	rng, err = booking.Expand(b, &start, 4)
	require.NoError(t, err)
	assert.Equal(t, at("10:15 AM"), rng.End)

	_, err = booking.Expand(b, nil, -1)
	assert.ErrorIs(t, err, booking.ErrValidation)

	odd := at("09:20 AM")
	_, err = booking.Expand(b, &odd, 1)
	assert.ErrorIs(t, err, booking.ErrValidation)
}

func TestExpandStopsAtMidnight(t *testing.T) {
	b := pendingAt(at("11:45 PM"), booking.BookingWalkIn)

	rng, err := booking.Expand(b, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC), rng.End)

	_, err = booking.Expand(b, nil, 2)
	assert.ErrorIs(t, err, booking.ErrValidation)
}

func TestExpandHomeVisit(t *testing.T) {
	b := pendingAt(at("02:00 PM"), booking.BookingHomeVisit)

	_, err := booking.Expand(b, nil, 1)
	assert.ErrorIs(t, err, booking.ErrHomeVisitTooShort)

	rng, err := booking.Expand(b, nil, booking.MinHomeVisitBlocks)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, rng.End.Sub(rng.Start))
}

func TestExpandSlots(t *testing.T) {
	b := pendingAt(at("10:00 AM"), booking.BookingWalkIn)

	rng, err := booking.ExpandSlots(b, []string{"10:30 AM", "10:00 AM", "10:15 AM"})
	require.NoError(t, err)
	assert.Equal(t, at("10:00 AM"), rng.Start)
	assert.Equal(t, at("10:45 AM"), rng.End)

	_, err = booking.ExpandSlots(b, []string{"10:00 AM", "10:00 AM"})
	assert.ErrorIs(t, err, booking.ErrValidation)

	_, err = booking.ExpandSlots(b, []string{"ten"})
	assert.ErrorIs(t, err, booking.ErrValidation)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name           string
		s1, e1, s2, e2 string
		want           bool
	}{
		{"identical", "10:00 AM", "10:15 AM", "10:00 AM", "10:15 AM", true},
		{"contained", "10:00 AM", "11:00 AM", "10:15 AM", "10:30 AM", true},
		{"partial", "10:00 AM", "10:30 AM", "10:15 AM", "10:45 AM", true},
		{"touching", "10:00 AM", "10:30 AM", "10:30 AM", "10:45 AM", false},
		{"disjoint", "09:00 AM", "09:15 AM", "10:30 AM", "10:45 AM", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, booking.Overlaps(at(tt.s1), at(tt.e1), at(tt.s2), at(tt.e2)))
			assert.Equal(t, tt.want, booking.Overlaps(at(tt.s2), at(tt.e2), at(tt.s1), at(tt.e1)))
		})
	}
}
