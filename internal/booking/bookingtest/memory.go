// Package bookingtest provides an in-memory booking.Repository for tests and local runs.
package bookingtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-booking/internal/availability"
	"github.com/hackgods/doctor-booking/internal/booking"
)

// MemoryRepository mirrors the Postgres repository, including the unique index that allows
// only one pending or booked record per doctor and slot start.
type MemoryRepository struct {
	mu       sync.Mutex
	doctors  map[uuid.UUID]booking.Doctor
	patients map[uuid.UUID]booking.Patient
	bookings map[uuid.UUID]booking.Booking
	events   []booking.EventLog

	// FailEvents makes InsertEvent return an error.
	FailEvents error
}

var _ booking.Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		doctors:  make(map[uuid.UUID]booking.Doctor),
		patients: make(map[uuid.UUID]booking.Patient),
		bookings: make(map[uuid.UUID]booking.Booking),
	}
}

func (r *MemoryRepository) AddDoctor(d booking.Doctor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.doctors[d.ID] = d
}

func (r *MemoryRepository) AddPatient(p booking.Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
}

// PutBooking stores b as is, bypassing the slot index.
func (r *MemoryRepository) PutBooking(b booking.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[b.ID] = b
}

// Events returns a copy of the recorded event log.
func (r *MemoryRepository) Events() []booking.EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]booking.EventLog(nil), r.events...)
}

// Bookings returns every stored booking ordered by slot start.
func (r *MemoryRepository) Bookings() []booking.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]booking.Booking, 0, len(r.bookings))
	for _, b := range r.bookings {
		out = append(out, b)
	}
	sortBookings(out)
	return out
}

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*booking.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, booking.ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetDoctorByID(_ context.Context, id uuid.UUID) (*booking.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, booking.ErrDoctorNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) GetBookingByID(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	return &b, nil
}

func (r *MemoryRepository) GetBookingDetail(_ context.Context, id uuid.UUID) (*booking.BookingDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	d := r.detail(b)
	return &d, nil
}

func (r *MemoryRepository) detail(b booking.Booking) booking.BookingDetail {
	d := booking.BookingDetail{Booking: b}
	if doc, ok := r.doctors[b.DoctorID]; ok {
		d.Doctor = booking.Party{ID: doc.ID, Name: doc.Name, Email: doc.Email}
	}
	if p, ok := r.patients[b.PatientID]; ok {
		d.Patient = booking.Party{ID: p.ID, Name: p.Name, Email: p.Email}
	}
	return d
}

func (r *MemoryRepository) ListBookings(_ context.Context, f booking.ListFilter) ([]booking.BookingDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []booking.Booking
	for _, b := range r.bookings {
		if f.DoctorID != nil && b.DoctorID != *f.DoctorID {
			continue
		}
		if f.PatientID != nil && b.PatientID != *f.PatientID {
			continue
		}
		if f.Status != nil && b.Status != *f.Status {
			continue
		}
		if f.Date != nil && !availability.Midnight(b.SlotStart).Equal(availability.Midnight(*f.Date)) {
			continue
		}
		matched = append(matched, b)
	}
	sortBookings(matched)
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}

	out := make([]booking.BookingDetail, 0, len(matched))
	for _, b := range matched {
		out = append(out, r.detail(b))
	}
	return out, nil
}

func (r *MemoryRepository) ListOverlapping(_ context.Context, q booking.OverlapQuery) ([]booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []booking.Booking
	for _, b := range r.bookings {
		if b.DoctorID != q.DoctorID || !hasStatus(q.Statuses, b.Status) {
			continue
		}
		if q.ExcludeID != nil && b.ID == *q.ExcludeID {
			continue
		}
		if booking.Overlaps(q.Start, q.End, b.SlotStart, b.SlotEnd) {
			out = append(out, b)
		}
	}
	sortBookings(out)
	return out, nil
}

func (r *MemoryRepository) CreateBooking(_ context.Context, b *booking.Booking) (*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slotTaken(b.DoctorID, b.SlotStart, b.ID) {
		return nil, booking.ErrSlotAlreadyRequested
	}
	stored := *b
	now := time.Now()
	stored.CreatedAt, stored.UpdatedAt = now, now
	r.bookings[stored.ID] = stored
	return &stored, nil
}

func (r *MemoryRepository) AcceptBooking(_ context.Context, id uuid.UUID, start, end time.Time) (*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok || b.Status != booking.StatusPending {
		return nil, booking.ErrBookingNotFound
	}
	if r.slotTaken(b.DoctorID, start, id) {
		return nil, booking.ErrSlotAlreadyRequested
	}
	b.Status = booking.StatusBooked
	b.SlotStart, b.SlotEnd = start, end
	b.Date = availability.Midnight(start)
	b.UpdatedAt = time.Now()
	r.bookings[id] = b
	return &b, nil
}

func (r *MemoryRepository) UpdateBookingStatus(_ context.Context, id uuid.UUID, from, to booking.Status) (*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok || b.Status != from {
		return nil, booking.ErrBookingNotFound
	}
	b.Status = to
	b.UpdatedAt = time.Now()
	r.bookings[id] = b
	return &b, nil
}

func (r *MemoryRepository) FindStalePending(_ context.Context, before time.Time) ([]booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []booking.Booking
	for _, b := range r.bookings {
		if b.Status == booking.StatusPending && b.SlotStart.Before(before) {
			out = append(out, b)
		}
	}
	sortBookings(out)
	return out, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev booking.EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailEvents != nil {
		return r.FailEvents
	}
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}

// slotTaken reports whether another active booking holds the doctor's slot start.
func (r *MemoryRepository) slotTaken(doctorID uuid.UUID, start time.Time, self uuid.UUID) bool {
	for _, other := range r.bookings {
		if other.ID == self || other.DoctorID != doctorID {
			continue
		}
		if (other.Status == booking.StatusPending || other.Status == booking.StatusBooked) && other.SlotStart.Equal(start) {
			return true
		}
	}
	return false
}

func hasStatus(statuses []booking.Status, s booking.Status) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func sortBookings(bs []booking.Booking) {
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].SlotStart.Equal(bs[j].SlotStart) {
			return bs[i].ID.String() < bs[j].ID.String()
		}
		return bs[i].SlotStart.Before(bs[j].SlotStart)
	})
}
