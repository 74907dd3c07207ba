package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-booking/internal/booking"
)

type CreateBookingRequest struct {
	DoctorID         string                `json:"doctorId"`
	Date             string                `json:"date"`
	Time             string                `json:"time"`
	BookingType      string                `json:"bookingType"`
	VisitType        string                `json:"visitType"`
	Notes            string                `json:"notes,omitempty"`
	BookingFor       string                `json:"bookingFor"`
	PatientDetails   *booking.GuestPatient `json:"patientDetails,omitempty"`
	HomeVisitAddress *booking.Address      `json:"homeVisitAddress,omitempty"`
}

type CreateBookingResponse struct {
	BookingID uuid.UUID `json:"bookingId"`
	Status    string    `json:"status"`
	SlotStart time.Time `json:"slotStart"`
	SlotEnd   time.Time `json:"slotEnd"`
}

// UpdateBookingRequest is the PATCH /bookings body. The accept fields are ignored for
// reject and cancel.
type UpdateBookingRequest struct {
	BookingID    string   `json:"bookingId"`
	Action       string   `json:"action"`
	AcceptStart  string   `json:"acceptStart,omitempty"`
	AcceptBlocks int      `json:"acceptBlocks,omitempty"`
	AcceptSlots  []string `json:"acceptSlots,omitempty"`
}

type UpdateBookingResponse struct {
	BookingID uuid.UUID `json:"bookingId"`
	Status    string    `json:"status"`
	SlotStart time.Time `json:"slotStart"`
	SlotEnd   time.Time `json:"slotEnd"`
}

type PartyResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email *string   `json:"email,omitempty"`
}

type BookingResponse struct {
	ID               uuid.UUID             `json:"id"`
	Doctor           PartyResponse         `json:"doctor"`
	Patient          PartyResponse         `json:"patient"`
	Date             string                `json:"date"`
	SlotStart        time.Time             `json:"slotStart"`
	SlotEnd          time.Time             `json:"slotEnd"`
	BookingType      string                `json:"bookingType"`
	VisitType        string                `json:"visitType"`
	Status           string                `json:"status"`
	BookingFor       string                `json:"bookingFor"`
	PatientDetails   *booking.GuestPatient `json:"patientDetails,omitempty"`
	HomeVisitAddress *booking.Address      `json:"homeVisitAddress,omitempty"`
	Notes            string                `json:"notes,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func toParty(p booking.Party) PartyResponse {
	return PartyResponse{ID: p.ID, Name: p.Name, Email: p.Email}
}

func toBookingResponse(d booking.BookingDetail) BookingResponse {
	return BookingResponse{
		ID:               d.ID,
		Doctor:           toParty(d.Doctor),
		Patient:          toParty(d.Patient),
		Date:             d.SlotStart.Format(time.DateOnly),
		SlotStart:        d.SlotStart,
		SlotEnd:          d.SlotEnd,
		BookingType:      string(d.BookingType),
		VisitType:        string(d.VisitType),
		Status:           string(d.Status),
		BookingFor:       string(d.BookingFor),
		PatientDetails:   d.GuestPatient,
		HomeVisitAddress: d.HomeVisitAddress,
		Notes:            d.Notes,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}
