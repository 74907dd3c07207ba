package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/doctor-booking/internal/availability"
)

const uniqueViolation = "23505"

const bookingColumns = `b.id, b.doctor_id, b.patient_id, b.slot_start, b.slot_end, b.booking_type, b.visit_type,
	b.status, b.booking_for, b.guest_patient, b.home_visit_address, b.notes, b.notify_email, b.created_by,
	b.created_at, b.updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

// NewPgRepository returns a repository whose timestamps are reported in loc.
func NewPgRepository(pool *pgxpool.Pool, loc *time.Location) *PgRepository {
	if loc == nil {
		loc = time.Local
	}
	return &PgRepository{pool: pool, loc: loc}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var weekly []byte

	err := row.Scan(&d.ID, &d.Name, &d.Email, &weekly, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.WeeklyAvailability, err = availability.Decode(weekly)
	if err != nil {
		return nil, fmt.Errorf("decode weekly availability of doctor %s: %w", d.ID, err)
	}
	return &d, nil
}

// bookingDest lists scan targets in bookingColumns order; finish decodes the JSON blocks.
func (r *PgRepository) bookingDest(b *Booking) ([]any, func() error) {
	var guest, address []byte
	dest := []any{
		&b.ID, &b.DoctorID, &b.PatientID, &b.SlotStart, &b.SlotEnd, &b.BookingType, &b.VisitType,
		&b.Status, &b.BookingFor, &guest, &address, &b.Notes, &b.NotifyEmail, &b.CreatedBy,
		&b.CreatedAt, &b.UpdatedAt,
	}

	finish := func() error {
		b.SlotStart = b.SlotStart.In(r.loc)
		b.SlotEnd = b.SlotEnd.In(r.loc)
		b.Date = availability.Midnight(b.SlotStart)

		if len(guest) > 0 {
			b.GuestPatient = &GuestPatient{}
			if err := json.Unmarshal(guest, b.GuestPatient); err != nil {
				return fmt.Errorf("decode guest patient: %w", err)
			}
		}
		if len(address) > 0 {
			b.HomeVisitAddress = &Address{}
			if err := json.Unmarshal(address, b.HomeVisitAddress); err != nil {
				return fmt.Errorf("decode home visit address: %w", err)
			}
		}
		return nil
	}
	return dest, finish
}

func (r *PgRepository) scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	dest, finish := r.bookingDest(&b)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if err := finish(); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PgRepository) scanBookingDetail(row pgx.Row) (*BookingDetail, error) {
	var d BookingDetail
	dest, finish := r.bookingDest(&d.Booking)
	dest = append(dest, &d.Doctor.Name, &d.Doctor.Email, &d.Patient.Name, &d.Patient.Email)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if err := finish(); err != nil {
		return nil, err
	}
	d.Doctor.ID = d.DoctorID
	d.Patient.ID = d.PatientID
	return &d, nil
}

func (r *PgRepository) collectBookings(rows pgx.Rows) ([]Booking, error) {
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := r.scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullableJSON(v any) ([]byte, error) {
	switch t := v.(type) {
	case *GuestPatient:
		if t == nil {
			return nil, nil
		}
	case *Address:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, weekly_availability, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings b
		WHERE b.id = $1
	`, id)
	return r.scanBooking(row)
}

func (r *PgRepository) GetBookingDetail(ctx context.Context, id uuid.UUID) (*BookingDetail, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`, d.name, d.email, p.name, p.email
		FROM bookings b
		JOIN doctors d ON d.id = b.doctor_id
		JOIN patients p ON p.id = b.patient_id
		WHERE b.id = $1
	`, id)
	return r.scanBookingDetail(row)
}

func (r *PgRepository) ListBookings(ctx context.Context, f ListFilter) ([]BookingDetail, error) {
	var date, status *string
	if f.Date != nil {
		s := f.Date.Format(time.DateOnly)
		date = &s
	}
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`, d.name, d.email, p.name, p.email
		FROM bookings b
		JOIN doctors d ON d.id = b.doctor_id
		JOIN patients p ON p.id = b.patient_id
		WHERE ($1::uuid IS NULL OR b.doctor_id = $1)
		  AND ($2::uuid IS NULL OR b.patient_id = $2)
		  AND ($3::date IS NULL OR b.date = $3::date)
		  AND ($4::text IS NULL OR b.status = $4)
		ORDER BY b.slot_start ASC
		LIMIT $5
	`, f.DoctorID, f.PatientID, date, status, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BookingDetail
	for rows.Next() {
		d, err := r.scanBookingDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) ListOverlapping(ctx context.Context, q OverlapQuery) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings b
		WHERE b.doctor_id = $1
		  AND b.status = ANY($2)
		  AND b.slot_start < $4
		  AND $3 < b.slot_end
		  AND ($5::uuid IS NULL OR b.id <> $5)
		ORDER BY b.slot_start ASC
	`, q.DoctorID, statusStrings(q.Statuses), q.Start, q.End, q.ExcludeID)
	if err != nil {
		return nil, err
	}
	return r.collectBookings(rows)
}

func (r *PgRepository) CreateBooking(ctx context.Context, b *Booking) (*Booking, error) {
	guest, err := nullableJSON(b.GuestPatient)
	if err != nil {
		return nil, fmt.Errorf("encode guest patient: %w", err)
	}
	address, err := nullableJSON(b.HomeVisitAddress)
	if err != nil {
		return nil, fmt.Errorf("encode home visit address: %w", err)
	}

	id := b.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		WITH b AS (
			INSERT INTO bookings (id, doctor_id, patient_id, date, slot_start, slot_end, booking_type, visit_type,
				status, booking_for, guest_patient, home_visit_address, notes, notify_email, created_by,
				created_at, updated_at)
			VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now(), now())
			RETURNING *
		)
		SELECT `+bookingColumns+` FROM b
	`, id, b.DoctorID, b.PatientID, b.Date.Format(time.DateOnly), b.SlotStart, b.SlotEnd, b.BookingType,
		b.VisitType, b.Status, b.BookingFor, guest, address, b.Notes, b.NotifyEmail, b.CreatedBy)

	created, err := r.scanBooking(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrSlotAlreadyRequested
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) AcceptBooking(ctx context.Context, id uuid.UUID, start, end time.Time) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		WITH b AS (
			UPDATE bookings
			SET status = 'booked',
			    slot_start = $2,
			    slot_end = $3,
			    date = $4::date,
			    updated_at = now()
			WHERE id = $1
			  AND status = 'pending'
			RETURNING *
		)
		SELECT `+bookingColumns+` FROM b
	`, id, start, end, start.Format(time.DateOnly))

	accepted, err := r.scanBooking(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrSlotAlreadyRequested
		}
		return nil, err
	}
	return accepted, nil
}

func (r *PgRepository) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		WITH b AS (
			UPDATE bookings
			SET status = $2,
			    updated_at = now()
			WHERE id = $1
			  AND status = $3
			RETURNING *
		)
		SELECT `+bookingColumns+` FROM b
	`, id, to, from)

	return r.scanBooking(row)
}

func (r *PgRepository) FindStalePending(ctx context.Context, before time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings b
		WHERE b.status = 'pending'
		  AND b.slot_start < $1
		ORDER BY b.slot_start ASC
	`, before)
	if err != nil {
		return nil, err
	}
	return r.collectBookings(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, booking_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.BookingID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
