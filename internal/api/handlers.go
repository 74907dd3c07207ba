package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-booking/internal/auth"
	"github.com/hackgods/doctor-booking/internal/booking"
)

func createBookingHandler(svc BookingService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorId must be a valid UUID")
			return
		}

		actor, _ := auth.FromContext(r.Context())
		b, err := svc.CreateBooking(r.Context(), actor, booking.CreateBookingInput{
			DoctorID:         doctorID,
			Date:             req.Date,
			Time:             req.Time,
			BookingType:      booking.BookingType(req.BookingType),
			VisitType:        booking.VisitType(req.VisitType),
			Notes:            req.Notes,
			BookingFor:       booking.BookingFor(req.BookingFor),
			GuestPatient:     req.PatientDetails,
			HomeVisitAddress: req.HomeVisitAddress,
		})
		if err != nil {
			handleBookingError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, CreateBookingResponse{
			BookingID: b.ID,
			Status:    string(b.Status),
			SlotStart: b.SlotStart,
			SlotEnd:   b.SlotEnd,
		})
	}
}

func listBookingsHandler(svc BookingService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f booking.ListFilter

		if raw := q.Get("doctorId"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorId must be a valid UUID")
				return
			}
			f.DoctorID = &id
		}
		if raw := q.Get("patientId"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patientId must be a valid UUID")
				return
			}
			f.PatientID = &id
		}
		if raw := q.Get("date"); raw != "" {
			day, err := svc.ParseDate(raw)
			if err != nil {
				handleBookingError(w, r, log, err)
				return
			}
			f.Date = &day
		}
		if raw := q.Get("status"); raw != "" {
			status := booking.Status(raw)
			f.Status = &status
		}
		if raw := q.Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
				return
			}
			f.Limit = limit
		}

		actor, _ := auth.FromContext(r.Context())
		bookings, err := svc.ListBookings(r.Context(), actor, f)
		if err != nil {
			handleBookingError(w, r, log, err)
			return
		}

		resp := make([]BookingResponse, 0, len(bookings))
		for _, b := range bookings {
			resp = append(resp, toBookingResponse(b))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getBookingHandler(svc BookingService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		actor, _ := auth.FromContext(r.Context())
		detail, err := svc.GetBooking(r.Context(), actor, id)
		if err != nil {
			handleBookingError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponse(*detail))
	}
}

func updateBookingHandler(svc BookingService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		id, err := uuid.Parse(req.BookingID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "bookingId must be a valid UUID")
			return
		}

		actor, _ := auth.FromContext(r.Context())

		var b *booking.Booking
		switch req.Action {
		case "accept":
			b, err = svc.AcceptBooking(r.Context(), actor, id, booking.AcceptInput{
				Start:  req.AcceptStart,
				Blocks: req.AcceptBlocks,
				Slots:  req.AcceptSlots,
			})
		case "reject":
			b, err = svc.RejectBooking(r.Context(), actor, id)
		case "cancel":
			b, err = svc.CancelBooking(r.Context(), actor, id)
		default:
			writeError(w, http.StatusBadRequest, "invalid_action", "action must be accept, reject or cancel")
			return
		}
		if err != nil {
			handleBookingError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, UpdateBookingResponse{
			BookingID: b.ID,
			Status:    string(b.Status),
			SlotStart: b.SlotStart,
			SlotEnd:   b.SlotEnd,
		})
	}
}

func availabilityHandler(svc BookingService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		blockPending := true
		if raw := r.URL.Query().Get("blockPending"); raw != "" {
			blockPending, err = strconv.ParseBool(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_block_pending", "blockPending must be true or false")
				return
			}
		}

		day, err := svc.Availability(r.Context(), doctorID, r.URL.Query().Get("date"), blockPending)
		if err != nil {
			handleBookingError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, day)
	}
}

func handleBookingError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, booking.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, "invalid_status_transition", err.Error())
	case errors.Is(err, booking.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, booking.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", booking.ErrDoctorNotFound.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", booking.ErrPatientNotFound.Error())
	case errors.Is(err, booking.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", booking.ErrBookingNotFound.Error())
	case errors.Is(err, booking.ErrSlotAlreadyRequested):
		writeError(w, http.StatusConflict, "slot_already_requested", err.Error())
	case errors.Is(err, booking.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, booking.ErrDoctorBusy):
		writeError(w, http.StatusConflict, "doctor_busy", err.Error())
	default:
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
