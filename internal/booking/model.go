package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-booking/internal/availability"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusBooked    Status = "booked"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusBooked, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCancelled
}

type BookingType string

const (
	BookingWalkIn    BookingType = "walk-in"
	BookingHomeVisit BookingType = "home-visit"
)

func (t BookingType) Valid() bool {
	return t == BookingWalkIn || t == BookingHomeVisit
}

type VisitType string

const (
	VisitFirstTime VisitType = "first-time"
	VisitFollowUp  VisitType = "follow-up"
)

func (t VisitType) Valid() bool {
	return t == VisitFirstTime || t == VisitFollowUp
}

type BookingFor string

const (
	ForMyself      BookingFor = "myself"
	ForSomeoneElse BookingFor = "someone-else"
)

func (f BookingFor) Valid() bool {
	return f == ForMyself || f == ForSomeoneElse
}

type Doctor struct {
	ID                 uuid.UUID
	Name               string
	Email              *string
	WeeklyAvailability availability.WeeklyAvailability
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GuestPatient identifies the person being seen when a patient books for someone else.
type GuestPatient struct {
	FullName     string `json:"fullName"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	Gender       string `json:"gender,omitempty"`
	Age          int    `json:"age,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}

type Address struct {
	FullText   string   `json:"fullText"`
	City       string   `json:"city"`
	Area       string   `json:"area,omitempty"`
	PostalCode string   `json:"postalCode,omitempty"`
	Landmark   string   `json:"landmark,omitempty"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
}

type Booking struct {
	ID               uuid.UUID
	DoctorID         uuid.UUID
	PatientID        uuid.UUID
	Date             time.Time
	SlotStart        time.Time
	SlotEnd          time.Time
	BookingType      BookingType
	VisitType        VisitType
	Status           Status
	BookingFor       BookingFor
	GuestPatient     *GuestPatient
	HomeVisitAddress *Address
	Notes            string
	NotifyEmail      string
	CreatedBy        uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Interval returns the reserved range of the booking.
func (b *Booking) Interval() availability.Interval {
	return availability.Interval{Start: b.SlotStart, End: b.SlotEnd}
}

// Party is the display view of a doctor or patient referenced by a booking.
type Party struct {
	ID    uuid.UUID
	Name  string
	Email *string
}

type BookingDetail struct {
	Booking
	Doctor  Party
	Patient Party
}

type EventLog struct {
	ID        int64
	EventType string
	BookingID *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}

// ListFilter narrows a booking listing; nil fields do not filter.
type ListFilter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Date      *time.Time
	Status    *Status
	Limit     int
}

// OverlapQuery selects a doctor's bookings intersecting [Start, End).
type OverlapQuery struct {
	DoctorID  uuid.UUID
	Start     time.Time
	End       time.Time
	Statuses  []Status
	ExcludeID *uuid.UUID
}
