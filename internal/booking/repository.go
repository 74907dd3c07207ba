package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrBookingNotFound = errors.New("booking not found")

	// ErrSlotAlreadyRequested is returned when an active booking already holds the exact slot start.
	ErrSlotAlreadyRequested = errors.New("this slot has already been requested")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)

	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetBookingDetail(ctx context.Context, id uuid.UUID) (*BookingDetail, error)
	ListBookings(ctx context.Context, f ListFilter) ([]BookingDetail, error)

	// For conflict checks and availability
	ListOverlapping(ctx context.Context, q OverlapQuery) ([]Booking, error)

	// Creation and transitions. Transitions only apply when the stored status still equals from.
	CreateBooking(ctx context.Context, b *Booking) (*Booking, error)
	AcceptBooking(ctx context.Context, id uuid.UUID, start, end time.Time) (*Booking, error)
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Booking, error)

	// Expiry worker
	FindStalePending(ctx context.Context, before time.Time) ([]Booking, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
