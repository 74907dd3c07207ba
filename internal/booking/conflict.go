package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Overlaps reports whether the half-open ranges [s1,e1) and [s2,e2) intersect.
// Ranges that only touch do not overlap.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// HasConflict reports whether a booked appointment of the doctor overlaps [start, end).
// Pending, rejected and cancelled records never conflict. excludeID lets the booking
// being mutated ignore itself.
func (s *Service) HasConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	existing, err := s.repo.ListOverlapping(ctx, OverlapQuery{
		DoctorID:  doctorID,
		Start:     start,
		End:       end,
		Statuses:  []Status{StatusBooked},
		ExcludeID: excludeID,
	})
	if err != nil {
		return false, fmt.Errorf("list overlapping bookings: %w", err)
	}

	for _, b := range existing {
		if excludeID != nil && b.ID == *excludeID {
			continue
		}
		if b.Status == StatusBooked && Overlaps(start, end, b.SlotStart, b.SlotEnd) {
			return true, nil
		}
	}
	return false, nil
}
