package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-booking/internal/auth"
	"github.com/hackgods/doctor-booking/internal/availability"
	"github.com/hackgods/doctor-booking/internal/notify"
	"github.com/hackgods/doctor-booking/internal/slot"
)

type CreateBookingInput struct {
	DoctorID         uuid.UUID
	Date             string // YYYY-MM-DD
	Time             string // h:mm AM/PM
	BookingType      BookingType
	VisitType        VisitType
	Notes            string
	BookingFor       BookingFor
	GuestPatient     *GuestPatient
	HomeVisitAddress *Address
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrValidation}, args...)...)
}

func (in CreateBookingInput) validate() error {
	if in.DoctorID == uuid.Nil {
		return validationf("doctorId is required")
	}
	if !in.BookingType.Valid() {
		return validationf("bookingType must be walk-in or home-visit")
	}
	if !in.VisitType.Valid() {
		return validationf("visitType must be first-time or follow-up")
	}
	if !in.BookingFor.Valid() {
		return validationf("bookingFor must be myself or someone-else")
	}

	if in.BookingFor == ForSomeoneElse {
		if in.GuestPatient == nil || strings.TrimSpace(in.GuestPatient.FullName) == "" {
			return validationf("patientDetails.fullName is required when booking for someone else")
		}
	}

	if in.BookingType == BookingHomeVisit {
		addr := in.HomeVisitAddress
		if addr == nil || strings.TrimSpace(addr.FullText) == "" || strings.TrimSpace(addr.City) == "" {
			return validationf("homeVisitAddress.fullText and homeVisitAddress.city are required for home visits")
		}
	}
	return nil
}

// ParseDate reads a YYYY-MM-DD calendar day in the service's zone.
func (s *Service) ParseDate(date string) (time.Time, error) {
	d, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(date), s.cfg.Loc())
	if err != nil {
		return time.Time{}, validationf("date must be YYYY-MM-DD")
	}
	return d, nil
}

// requestedSlot resolves the date and clock time of a request and enforces the booking horizon.
func (s *Service) requestedSlot(date, clock string) (time.Time, error) {
	day, err := s.ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}

	offset, err := slot.ParseClock(clock)
	if err != nil {
		return time.Time{}, validationf("time must look like h:mm AM/PM")
	}
	if offset%slot.Step != 0 {
		return time.Time{}, validationf("time must fall on a %d-minute slot", slot.Step)
	}

	now := s.clock()
	today := availability.Midnight(now)
	horizon := s.cfg.HorizonDays()
	if day.Before(today) || day.After(today.AddDate(0, 0, horizon)) {
		return time.Time{}, validationf("date must be within the next %d days", horizon)
	}

	start := availability.At(day, offset)
	if start.Before(now) {
		return time.Time{}, validationf("requested time is in the past")
	}
	return start, nil
}

func coversRange(d *Doctor, r Range) bool {
	return availability.CoversRange(d.WeeklyAvailability, r.Start, r.End)
}

// CreateBooking records a patient's request for one 15-minute slot. The request stays
// pending until the doctor acts on it.
func (s *Service) CreateBooking(ctx context.Context, actor auth.Identity, in CreateBookingInput) (*Booking, error) {
	if !actor.Is(auth.RolePatient) {
		return nil, ErrForbidden
	}

	start, err := s.requestedSlot(in.Date, in.Time)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	rng := Range{Start: start, End: start.Add(slot.Step * time.Minute)}

	doctor, err := s.repo.GetDoctorByID(ctx, in.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	patient, err := s.repo.GetPatientByID(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}

	if !coversRange(doctor, rng) {
		return nil, validationf("requested time is outside the doctor's hours")
	}

	conflict, err := s.HasConflict(ctx, doctor.ID, rng.Start, rng.End, nil)
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, ErrSlotConflict
	}

	b := &Booking{
		ID:          uuid.New(),
		DoctorID:    doctor.ID,
		PatientID:   patient.ID,
		Date:        availability.Midnight(rng.Start),
		SlotStart:   rng.Start,
		SlotEnd:     rng.End,
		BookingType: in.BookingType,
		VisitType:   in.VisitType,
		Status:      StatusPending,
		BookingFor:  in.BookingFor,
		Notes:       strings.TrimSpace(in.Notes),
		NotifyEmail: notifyEmail(patient, in),
		CreatedBy:   actor.ID,
	}
	if in.BookingFor == ForSomeoneElse {
		b.GuestPatient = in.GuestPatient
	}
	if in.BookingType == BookingHomeVisit {
		b.HomeVisitAddress = in.HomeVisitAddress
	}

	created, err := s.repo.CreateBooking(ctx, b)
	if err != nil {
		if errors.Is(err, ErrSlotAlreadyRequested) {
			return nil, err
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.logEvent(ctx, created.ID, EventBookingRequested, map[string]any{
		"doctor_id":    created.DoctorID.String(),
		"patient_id":   created.PatientID.String(),
		"slot_start":   created.SlotStart,
		"booking_type": created.BookingType,
	})
	s.notify(ctx, notify.BookingRequested, created, doctor.Email, created.NotifyEmail)

	return created, nil
}

// notifyEmail routes patient-side notifications to the guest when one supplied an address.
func notifyEmail(p *Patient, in CreateBookingInput) string {
	if in.BookingFor == ForSomeoneElse && in.GuestPatient != nil && in.GuestPatient.Email != "" {
		return strings.TrimSpace(in.GuestPatient.Email)
	}
	if p.Email != nil {
		return *p.Email
	}
	return ""
}
