package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-booking/internal/auth"
	"github.com/hackgods/doctor-booking/internal/availability"
)

// MaxListLimit caps every booking listing.
const MaxListLimit = 200

// DayAvailability is the resolved view of one doctor's day.
type DayAvailability struct {
	Available bool                `json:"available"`
	TimeSlots []availability.Slot `json:"timeSlots"`
}

// Availability resolves the bookable slots of doctorID on date. Booked appointments always
// block their slots; pending requests only block when blockPending is set, which the patient
// view does and the doctor's planner does not.
func (s *Service) Availability(ctx context.Context, doctorID uuid.UUID, date string, blockPending bool) (*DayAvailability, error) {
	day, err := s.ParseDate(date)
	if err != nil {
		return nil, err
	}

	doctor, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	statuses := []Status{StatusBooked}
	if blockPending {
		statuses = append(statuses, StatusPending)
	}

	existing, err := s.repo.ListOverlapping(ctx, OverlapQuery{
		DoctorID: doctorID,
		Start:    day,
		End:      day.AddDate(0, 0, 1),
		Statuses: statuses,
	})
	if err != nil {
		return nil, fmt.Errorf("list bookings for %s: %w", date, err)
	}

	occupied := make([]availability.Interval, 0, len(existing))
	for _, b := range existing {
		occupied = append(occupied, b.Interval())
	}

	slots := availability.Resolve(doctor.WeeklyAvailability, day, occupied)
	return &DayAvailability{
		Available: availability.AnyAvailable(slots),
		TimeSlots: slots,
	}, nil
}

// ListBookings returns bookings ordered by slot start. A doctor listing without a doctor
// filter sees their own calendar; patients only ever see their own bookings.
func (s *Service) ListBookings(ctx context.Context, actor auth.Identity, f ListFilter) ([]BookingDetail, error) {
	id := actor.ID
	switch {
	case actor.Is(auth.RolePatient):
		f.PatientID = &id
	case f.DoctorID == nil && actor.Is(auth.RoleDoctor):
		f.DoctorID = &id
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, validationf("unknown status %q", *f.Status)
	}
	if f.Limit <= 0 || f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}

	bookings, err := s.repo.ListBookings(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// GetBooking retrieves a fully hydrated booking; only its doctor and patient may read it.
func (s *Service) GetBooking(ctx context.Context, actor auth.Identity, id uuid.UUID) (*BookingDetail, error) {
	detail, err := s.repo.GetBookingDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if actor.ID != detail.DoctorID && actor.ID != detail.PatientID {
		return nil, ErrForbidden
	}
	return detail, nil
}
