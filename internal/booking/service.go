package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-booking/internal/auth"
	"github.com/hackgods/doctor-booking/internal/config"
	"github.com/hackgods/doctor-booking/internal/notify"
	redisclient "github.com/hackgods/doctor-booking/internal/redis"
)

const (
	EventBookingRequested = "BOOKING_REQUESTED"
	EventBookingAccepted  = "BOOKING_ACCEPTED"
	EventBookingRejected  = "BOOKING_REJECTED"
	EventBookingCancelled = "BOOKING_CANCELLED"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrForbidden         = errors.New("not permitted to act on this booking")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSlotConflict      = errors.New("requested time overlaps a booked appointment")
	ErrDoctorBusy        = errors.New("doctor calendar is being updated, please retry")
	ErrHomeVisitTooShort = fmt.Errorf("%w: home visits need at least %d consecutive slots", ErrValidation, MinHomeVisitBlocks)
)

// transitions lists the statuses reachable from each status. Absent keys are terminal.
var transitions = map[Status][]Status{
	StatusPending: {StatusBooked, StatusRejected, StatusCancelled},
	StatusBooked:  {StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	notifier notify.Notifier
	log      *zap.Logger
	cfg      config.Config
	now      func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, notifier notify.Notifier, log *zap.Logger, cfg config.Config, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		log:      log,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().In(s.cfg.Loc())
}

// authorized decides who may move b to status to: the owning doctor always,
// the owning patient only to cancel.
func authorized(actor auth.Identity, b *Booking, to Status) bool {
	doctorOwns := actor.Is(auth.RoleDoctor) && actor.ID == b.DoctorID
	if to == StatusCancelled {
		return doctorOwns || (actor.Is(auth.RolePatient) && actor.ID == b.PatientID)
	}
	return doctorOwns
}

// RejectBooking lets the owning doctor decline a pending request.
func (s *Service) RejectBooking(ctx context.Context, actor auth.Identity, id uuid.UUID) (*Booking, error) {
	return s.transition(ctx, actor, id, StatusRejected, EventBookingRejected, notify.BookingRejected)
}

// CancelBooking lets either party withdraw a pending or booked appointment.
func (s *Service) CancelBooking(ctx context.Context, actor auth.Identity, id uuid.UUID) (*Booking, error) {
	return s.transition(ctx, actor, id, StatusCancelled, EventBookingCancelled, notify.BookingCancelled)
}

func (s *Service) transition(ctx context.Context, actor auth.Identity, id uuid.UUID, to Status, eventType string, notifyType notify.EventType) (*Booking, error) {
	detail, err := s.repo.GetBookingDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	b := &detail.Booking

	if !authorized(actor, b, to) {
		return nil, ErrForbidden
	}
	if !CanTransition(b.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
	}

	updated, err := s.repo.UpdateBookingStatus(ctx, b.ID, b.Status, to)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			// the status moved underneath us
			return nil, fmt.Errorf("%w: booking is no longer %s", ErrInvalidTransition, b.Status)
		}
		return nil, fmt.Errorf("update booking status: %w", err)
	}

	s.logEvent(ctx, updated.ID, eventType, map[string]any{
		"from":     b.Status,
		"to":       to,
		"actor_id": actor.ID.String(),
		"role":     actor.Role,
	})
	s.notify(ctx, notifyType, updated, detail.Doctor.Email, updated.NotifyEmail)

	return updated, nil
}

// AcceptBooking confirms a pending request at the range the doctor picked. The conflict
// check and the write happen under the doctor's calendar lock; a range overlapping
// another booked appointment is refused with ErrSlotConflict.
func (s *Service) AcceptBooking(ctx context.Context, actor auth.Identity, id uuid.UUID, in AcceptInput) (*Booking, error) {
	detail, err := s.repo.GetBookingDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	b := &detail.Booking

	if !authorized(actor, b, StatusBooked) {
		return nil, ErrForbidden
	}
	if !CanTransition(b.Status, StatusBooked) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, StatusBooked)
	}

	rng, err := in.resolve(b)
	if err != nil {
		return nil, err
	}
	if !rng.Start.Equal(b.SlotStart) && rng.Start.Before(s.clock()) {
		return nil, fmt.Errorf("%w: accepted range cannot start in the past", ErrValidation)
	}

	if s.cfg.StrictAcceptWindows {
		doctor, err := s.repo.GetDoctorByID(ctx, b.DoctorID)
		if err != nil {
			return nil, fmt.Errorf("load doctor: %w", err)
		}
		if !coversRange(doctor, rng) {
			return nil, fmt.Errorf("%w: accepted range lies outside the doctor's declared hours", ErrValidation)
		}
	}

	var accepted *Booking

	err = s.locker.WithDoctorLock(ctx, b.DoctorID, func(lockCtx context.Context) error {
		// Inside the critical section re-check against booked appointments
		conflict, err := s.HasConflict(lockCtx, b.DoctorID, rng.Start, rng.End, &b.ID)
		if err != nil {
			return err
		}
		if conflict {
			return ErrSlotConflict
		}

		updated, err := s.repo.AcceptBooking(lockCtx, b.ID, rng.Start, rng.End)
		if err != nil {
			if errors.Is(err, ErrBookingNotFound) {
				return fmt.Errorf("%w: booking is no longer pending", ErrInvalidTransition)
			}
			if errors.Is(err, ErrSlotAlreadyRequested) {
				return err
			}
			return fmt.Errorf("accept booking: %w", err)
		}
		accepted = updated
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrDoctorBusy
		}
		return nil, err
	}

	s.logEvent(ctx, accepted.ID, EventBookingAccepted, map[string]any{
		"requested_start": b.SlotStart,
		"slot_start":      accepted.SlotStart,
		"slot_end":        accepted.SlotEnd,
		"actor_id":        actor.ID.String(),
	})
	s.notify(ctx, notify.BookingAccepted, accepted, detail.Doctor.Email, accepted.NotifyEmail)

	return accepted, nil
}

// ExpireStalePending cancels pending requests whose slot started more than
// PendingStaleAfter ago. Only the expiry worker calls it.
func (s *Service) ExpireStalePending(ctx context.Context) (int, error) {
	cutoff := s.clock().Add(-s.cfg.PendingStaleAfter)
	stale, err := s.repo.FindStalePending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find stale pending bookings: %w", err)
	}

	expired := 0
	for _, b := range stale {
		updated, err := s.repo.UpdateBookingStatus(ctx, b.ID, StatusPending, StatusCancelled)
		if err != nil {
			if !errors.Is(err, ErrBookingNotFound) {
				s.log.Error("failed to expire booking", zap.String("booking_id", b.ID.String()), zap.Error(err))
			}
			continue
		}
		expired++

		s.logEvent(ctx, updated.ID, EventBookingCancelled, map[string]any{
			"from":   StatusPending,
			"to":     StatusCancelled,
			"reason": "stale_pending",
		})
		s.notify(ctx, notify.BookingCancelled, updated, s.doctorEmail(ctx, updated.DoctorID), updated.NotifyEmail)
	}

	return expired, nil
}

func (s *Service) logEvent(ctx context.Context, bookingID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	id := bookingID

	ev := EventLog{
		EventType: eventType,
		BookingID: &id,
		Payload:   data,
		CreatedAt: s.clock(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("failed to insert event log",
			zap.String("event_type", eventType),
			zap.String("booking_id", bookingID.String()),
			zap.Error(err),
		)
	}
}

// notify is fire-and-forget: a failed delivery is logged and never undoes the booking change.
func (s *Service) notify(ctx context.Context, typ notify.EventType, b *Booking, doctorEmail *string, notifyEmail string) {
	ev := notify.Event{
		Type:       typ,
		BookingID:  b.ID,
		DoctorID:   b.DoctorID,
		PatientID:  b.PatientID,
		Recipients: recipients(doctorEmail, notifyEmail),
		SlotStart:  b.SlotStart,
		SlotEnd:    b.SlotEnd,
		Status:     string(b.Status),
		OccurredAt: s.clock(),
	}

	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.Warn("notification delivery failed",
			zap.String("type", string(typ)),
			zap.String("booking_id", b.ID.String()),
			zap.Error(err),
		)
	}
}

// doctorEmail looks up where a doctor is notified. A failed lookup only drops the doctor
// from the recipients.
func (s *Service) doctorEmail(ctx context.Context, doctorID uuid.UUID) *string {
	d, err := s.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		s.log.Warn("failed to load doctor for notification", zap.String("doctor_id", doctorID.String()), zap.Error(err))
		return nil
	}
	return d.Email
}

func recipients(doctorEmail *string, notifyEmail string) []string {
	var out []string
	if doctorEmail != nil && *doctorEmail != "" {
		out = append(out, *doctorEmail)
	}
	if notifyEmail != "" && (len(out) == 0 || out[0] != notifyEmail) {
		out = append(out, notifyEmail)
	}
	return out
}
