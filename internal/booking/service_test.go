package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-booking/internal/auth"
	"github.com/hackgods/doctor-booking/internal/availability"
	"github.com/hackgods/doctor-booking/internal/booking"
	"github.com/hackgods/doctor-booking/internal/booking/bookingtest"
	"github.com/hackgods/doctor-booking/internal/config"
	"github.com/hackgods/doctor-booking/internal/notify"
	redisclient "github.com/hackgods/doctor-booking/internal/redis"
)

// Thursday morning; 2026-10-19 is the following Monday.
var now = time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

const monday = "2026-10-19"

type fakeLocker struct {
	mu    sync.Mutex
	busy  bool
	calls int
}

func (l *fakeLocker) WithDoctorLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	if l.busy {
		return redisclient.ErrLockNotAcquired
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return fn(ctx)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func (n *recordingNotifier) types() []notify.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.EventType, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	repo     *bookingtest.MemoryRepository
	locker   *fakeLocker
	notifier *recordingNotifier
	svc      *booking.Service

	doctor  auth.Identity
	other   auth.Identity
	patient auth.Identity
	second  auth.Identity
}

func strptr(s string) *string { return &s }

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := config.Config{
		Location:            time.UTC,
		BookingHorizonDays:  15,
		StrictAcceptWindows: true,
		PendingStaleAfter:   time.Hour,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	f := &fixture{
		repo:     bookingtest.NewMemoryRepository(),
		locker:   &fakeLocker{},
		notifier: &recordingNotifier{},
		doctor:   auth.Identity{ID: uuid.New(), Role: auth.RoleDoctor},
		other:    auth.Identity{ID: uuid.New(), Role: auth.RoleDoctor},
		patient:  auth.Identity{ID: uuid.New(), Role: auth.RolePatient},
		second:   auth.Identity{ID: uuid.New(), Role: auth.RolePatient},
	}

	week := availability.WeeklyAvailability{
		availability.Monday: {
			Available: true,
			TimeSlots: []availability.Window{
				{StartTime: "09:00 AM", EndTime: "12:00 PM"},
				{StartTime: "02:00 PM", EndTime: "05:00 PM"},
			},
		},
		availability.Tuesday: {Available: false},
	}
	f.repo.AddDoctor(booking.Doctor{ID: f.doctor.ID, Name: "Dr. Rao", Email: strptr("rao@clinic.test"), WeeklyAvailability: week})
	f.repo.AddDoctor(booking.Doctor{ID: f.other.ID, Name: "Dr. Lim", WeeklyAvailability: week})
	f.repo.AddPatient(booking.Patient{ID: f.patient.ID, Name: "Sam", Email: strptr("sam@mail.test")})
	f.repo.AddPatient(booking.Patient{ID: f.second.ID, Name: "Alex"})

	f.svc = booking.NewService(f.repo, f.locker, f.notifier, zap.NewNop(), cfg,
		booking.WithClock(func() time.Time { return now }))
	return f
}

// addAlwaysOpenDoctor registers a doctor whose every day is one window from midnight to midnight.
func (f *fixture) addAlwaysOpenDoctor() auth.Identity {
	id := auth.Identity{ID: uuid.New(), Role: auth.RoleDoctor}
	week := availability.WeeklyAvailability{}
	for _, wd := range availability.Weekdays {
		week[wd] = availability.DaySchedule{
			Available: true,
			TimeSlots: []availability.Window{{StartTime: "12:00 AM", EndTime: "12:00 AM"}},
		}
	}
	f.repo.AddDoctor(booking.Doctor{ID: id.ID, Name: "Dr. Okafor", WeeklyAvailability: week})
	return id
}

func (f *fixture) request(t *testing.T, who auth.Identity, clock string) *booking.Booking {
	t.Helper()
	b, err := f.svc.CreateBooking(context.Background(), who, walkIn(f.doctor.ID, monday, clock))
	require.NoError(t, err)
	return b
}

func walkIn(doctorID uuid.UUID, date, clock string) booking.CreateBookingInput {
	return booking.CreateBookingInput{
		DoctorID:    doctorID,
		Date:        date,
		Time:        clock,
		BookingType: booking.BookingWalkIn,
		VisitType:   booking.VisitFirstTime,
		BookingFor:  booking.ForMyself,
	}
}

func at(clock string) time.Time {
	return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC).Add(mustOffset(clock))
}

func mustOffset(clock string) time.Duration {
	t, err := time.Parse("03:04 PM", clock)
	if err != nil {
		panic(err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
}

func TestCreateBooking(t *testing.T) {
	f := newFixture(t)

	b := f.request(t, f.patient, "10:00 AM")

	assert.Equal(t, booking.StatusPending, b.Status)
	assert.Equal(t, at("10:00 AM"), b.SlotStart)
	assert.Equal(t, at("10:15 AM"), b.SlotEnd)
	assert.Equal(t, f.patient.ID, b.PatientID)
	assert.Equal(t, f.patient.ID, b.CreatedBy)
	assert.Equal(t, "sam@mail.test", b.NotifyEmail)

	events := f.repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, booking.EventBookingRequested, events[0].EventType)

	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, notify.BookingRequested, f.notifier.events[0].Type)
	assert.Equal(t, []string{"rao@clinic.test", "sam@mail.test"}, f.notifier.events[0].Recipients)
}

func TestCreateBookingRejectsInvalidRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   func() booking.CreateBookingInput
	}{
		{"outside declared hours", func() booking.CreateBookingInput { return walkIn(f.doctor.ID, monday, "12:00 PM") }},
		{"closed weekday", func() booking.CreateBookingInput { return walkIn(f.doctor.ID, "2026-10-20", "10:00 AM") }},
		{"misaligned time", func() booking.CreateBookingInput { return walkIn(f.doctor.ID, monday, "10:10 AM") }},
		{"24 hour clock", func() booking.CreateBookingInput { return walkIn(f.doctor.ID, monday, "10:00") }},
		{"bad date", func() booking.CreateBookingInput { return walkIn(f.doctor.ID, "19/10/2026", "10:00 AM") }},
		{"in the past", func() booking.CreateBookingInput { return walkIn(f.doctor.ID, "2026-10-15", "07:00 AM") }},
		{"beyond horizon", func() booking.CreateBookingInput { return walkIn(f.doctor.ID, "2026-11-02", "10:00 AM") }},
		{"unknown booking type", func() booking.CreateBookingInput {
			in := walkIn(f.doctor.ID, monday, "10:00 AM")
			in.BookingType = "tele"
			return in
		}},
		{"guest without name", func() booking.CreateBookingInput {
			in := walkIn(f.doctor.ID, monday, "10:00 AM")
			in.BookingFor = booking.ForSomeoneElse
			in.GuestPatient = &booking.GuestPatient{Phone: "555"}
			return in
		}},
		{"home visit without address", func() booking.CreateBookingInput {
			in := walkIn(f.doctor.ID, monday, "10:00 AM")
			in.BookingType = booking.BookingHomeVisit
			in.HomeVisitAddress = &booking.Address{FullText: "12 Elm St"}
			return in
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateBooking(ctx, f.patient, tt.in())
			assert.ErrorIs(t, err, booking.ErrValidation)
		})
	}
	assert.Empty(t, f.repo.Bookings())
}

func TestCreateBookingHorizonIsInclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doctor := f.addAlwaysOpenDoctor()

	tests := []struct {
		date string
		ok   bool
	}{
		{"2026-10-14", false},
		{"2026-10-15", true},
		{"2026-10-30", true},
		{"2026-10-31", false},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			b, err := f.svc.CreateBooking(ctx, f.patient, walkIn(doctor.ID, tt.date, "11:45 PM"))
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.date, b.Date.Format(time.DateOnly))
				return
			}
			assert.ErrorIs(t, err, booking.ErrValidation)
			assert.ErrorContains(t, err, "within the next 15 days")
		})
	}
}

func TestCreateBookingRequiresPatient(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateBooking(context.Background(), f.doctor, walkIn(f.doctor.ID, monday, "10:00 AM"))
	assert.ErrorIs(t, err, booking.ErrForbidden)
}

func TestCreateBookingUnknownDoctor(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateBooking(context.Background(), f.patient, walkIn(uuid.New(), monday, "10:00 AM"))
	assert.ErrorIs(t, err, booking.ErrDoctorNotFound)
}

func TestCreateBookingForSomeoneElse(t *testing.T) {
	f := newFixture(t)

	in := walkIn(f.doctor.ID, monday, "09:30 AM")
	in.BookingFor = booking.ForSomeoneElse
	in.GuestPatient = &booking.GuestPatient{FullName: "Mira", Email: "mira@mail.test", Relationship: "mother"}

	b, err := f.svc.CreateBooking(context.Background(), f.patient, in)
	require.NoError(t, err)
	require.NotNil(t, b.GuestPatient)
	assert.Equal(t, "Mira", b.GuestPatient.FullName)
	assert.Equal(t, "mira@mail.test", b.NotifyEmail)
	assert.Nil(t, b.HomeVisitAddress)
}

func TestDuplicateSlotRequest(t *testing.T) {
	f := newFixture(t)
	f.request(t, f.patient, "10:00 AM")

	_, err := f.svc.CreateBooking(context.Background(), f.second, walkIn(f.doctor.ID, monday, "10:00 AM"))
	assert.ErrorIs(t, err, booking.ErrSlotAlreadyRequested)

	// a different doctor's identical slot is independent
	_, err = f.svc.CreateBooking(context.Background(), f.second, walkIn(f.other.ID, monday, "10:00 AM"))
	assert.NoError(t, err)
}

func TestSlotReopensAfterRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.request(t, f.patient, "10:00 AM")
	_, err := f.svc.RejectBooking(ctx, f.doctor, b.ID)
	require.NoError(t, err)

	_, err = f.svc.CreateBooking(ctx, f.second, walkIn(f.doctor.ID, monday, "10:00 AM"))
	assert.NoError(t, err)
}

func TestAcceptExpandsRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.request(t, f.patient, "10:00 AM")

	accepted, err := f.svc.AcceptBooking(ctx, f.doctor, b.ID, booking.AcceptInput{Blocks: 3})
	require.NoError(t, err)

	assert.Equal(t, booking.StatusBooked, accepted.Status)
	assert.Equal(t, at("10:00 AM"), accepted.SlotStart)
	assert.Equal(t, at("10:45 AM"), accepted.SlotEnd)
	assert.Equal(t, 1, f.locker.calls)
	assert.Equal(t, []notify.EventType{notify.BookingRequested, notify.BookingAccepted}, f.notifier.types())
}

func TestAcceptShiftsStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.request(t, f.patient, "10:00 AM")

	accepted, err := f.svc.AcceptBooking(ctx, f.doctor, b.ID, booking.AcceptInput{Start: "09:30 AM", Blocks: 2})
	require.NoError(t, err)
	assert.Equal(t, at("09:30 AM"), accepted.SlotStart)
	assert.Equal(t, at("10:00 AM"), accepted.SlotEnd)
}

func TestAcceptWithRFC3339Start(t *testing.T) {
	f := newFixture(t)
	b := f.request(t, f.patient, "10:00 AM")

	accepted, err := f.svc.AcceptBooking(context.Background(), f.doctor, b.ID, booking.AcceptInput{Start: "2026-10-19T11:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, at("11:00 AM"), accepted.SlotStart)
	assert.Equal(t, at("11:15 AM"), accepted.SlotEnd)
}

func TestAcceptStartStaysOnBookingDay(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.StrictAcceptWindows = false })
	ctx := context.Background()
	b := f.request(t, f.patient, "10:00 AM")

	for _, start := range []string{"2026-10-01T10:00:00Z", "2026-10-26T10:00:00Z", "2026-10-18T23:45:00Z"} {
		_, err := f.svc.AcceptBooking(ctx, f.doctor, b.ID, booking.AcceptInput{Start: start})
		assert.ErrorIs(t, err, booking.ErrValidation, start)
	}

	got, err := f.repo.GetBookingByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, got.Status)
}

func TestAcceptCannotMoveIntoThePast(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.StrictAcceptWindows = false })
	ctx := context.Background()
	doctor := f.addAlwaysOpenDoctor()

	today, err := f.svc.CreateBooking(ctx, f.patient, walkIn(doctor.ID, "2026-10-15", "10:00 AM"))
	require.NoError(t, err)

	_, err = f.svc.AcceptBooking(ctx, doctor, today.ID, booking.AcceptInput{Start: "07:00 AM"})
	assert.ErrorIs(t, err, booking.ErrValidation)

	accepted, err := f.svc.AcceptBooking(ctx, doctor, today.ID, booking.AcceptInput{Start: "09:00 AM"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC), accepted.SlotStart)
}

func TestAcceptWithSlotLabels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.request(t, f.patient, "10:00 AM")

	_, err := f.svc.AcceptBooking(ctx, f.doctor, b.ID, booking.AcceptInput{Slots: []string{"10:00 AM", "10:30 AM"}})
	assert.ErrorIs(t, err, booking.ErrValidation)

	_, err = f.svc.AcceptBooking(ctx, f.doctor, b.ID, booking.AcceptInput{Slots: []string{"10:15 AM"}, Blocks: 2})
	assert.ErrorIs(t, err, booking.ErrValidation)

	accepted, err := f.svc.AcceptBooking(ctx, f.doctor, b.ID, booking.AcceptInput{Slots: []string{"10:15 AM", "10:00 AM"}})
	require.NoError(t, err)
	assert.Equal(t, at("10:00 AM"), accepted.SlotStart)
	assert.Equal(t, at("10:30 AM"), accepted.SlotEnd)
}

func TestAcceptConflictsWithBookedRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.request(t, f.patient, "10:00 AM")
	second := f.request(t, f.second, "10:15 AM")

	_, err := f.svc.AcceptBooking(ctx, f.doctor, first.ID, booking.AcceptInput{Blocks: 2})
	require.NoError(t, err)

	_, err = f.svc.AcceptBooking(ctx, f.doctor, second.ID, booking.AcceptInput{})
	assert.ErrorIs(t, err, booking.ErrSlotConflict)

	stored, err := f.repo.GetBookingByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, stored.Status, "a refused accept leaves the request pending")

	// touching ranges do not overlap
	accepted, err := f.svc.AcceptBooking(ctx, f.doctor, second.ID, booking.AcceptInput{Start: "10:30 AM"})
	require.NoError(t, err)
	assert.Equal(t, at("10:30 AM"), accepted.SlotStart)
}

func TestCreateInsideBookedRangeConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.request(t, f.patient, "10:00 AM")
	_, err := f.svc.AcceptBooking(ctx, f.doctor, b.ID, booking.AcceptInput{Blocks: 4})
	require.NoError(t, err)

	_, err = f.svc.CreateBooking(ctx, f.second, walkIn(f.doctor.ID, monday, "10:30 AM"))
	assert.ErrorIs(t, err, booking.ErrSlotConflict)

	_, err = f.svc.CreateBooking(ctx, f.second, walkIn(f.doctor.ID, monday, "11:00 AM"))
	assert.NoError(t, err)
}

func TestAcceptOntoAnotherPendingStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.request(t, f.patient, "10:00 AM")
	f.request(t, f.second, "10:30 AM")

	_, err := f.svc.AcceptBooking(ctx, f.doctor, first.ID, booking.AcceptInput{Start: "10:30 AM"})
	assert.ErrorIs(t, err, booking.ErrSlotAlreadyRequested)
}

func TestAcceptStrictWindows(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	b := f.request(t, f.patient, "11:30 AM")
	_, err := f.svc.AcceptBooking(ctx, f.doctor, b.ID, booking.AcceptInput{Blocks: 3})
	assert.ErrorIs(t, err, booking.ErrValidation)

	lenient := newFixture(t, func(c *config.Config) { c.StrictAcceptWindows = false })
	b = lenient.request(t, lenient.patient, "11:30 AM")
	accepted, err := lenient.svc.AcceptBooking(ctx, lenient.doctor, b.ID, booking.AcceptInput{Blocks: 3})
	require.NoError(t, err)
	assert.Equal(t, at("12:15 PM"), accepted.SlotEnd)
}

func TestAcceptHomeVisitMinimum(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := walkIn(f.doctor.ID, monday, "02:00 PM")
	in.BookingType = booking.BookingHomeVisit
	in.HomeVisitAddress = &booking.Address{FullText: "12 Elm St", City: "Pune"}
	b, err := f.svc.CreateBooking(ctx, f.patient, in)
	require.NoError(t, err)
	require.NotNil(t, b.HomeVisitAddress)

	_, err = f.svc.AcceptBooking(ctx, f.doctor, b.ID, booking.AcceptInput{})
	assert.ErrorIs(t, err, booking.ErrHomeVisitTooShort)
	assert.ErrorIs(t, err, booking.ErrValidation)

	accepted, err := f.svc.AcceptBooking(ctx, f.doctor, b.ID, booking.AcceptInput{Blocks: 2})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, accepted.SlotEnd.Sub(accepted.SlotStart))
}

func TestAcceptAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.request(t, f.patient, "10:00 AM")

	_, err := f.svc.AcceptBooking(ctx, f.other, b.ID, booking.AcceptInput{})
	assert.ErrorIs(t, err, booking.ErrForbidden)

	_, err = f.svc.AcceptBooking(ctx, f.patient, b.ID, booking.AcceptInput{})
	assert.ErrorIs(t, err, booking.ErrForbidden)

	_, err = f.svc.RejectBooking(ctx, f.patient, b.ID)
	assert.ErrorIs(t, err, booking.ErrForbidden)

	_, err = f.svc.CancelBooking(ctx, f.second, b.ID)
	assert.ErrorIs(t, err, booking.ErrForbidden)

	_, err = f.svc.AcceptBooking(ctx, f.doctor, uuid.New(), booking.AcceptInput{})
	assert.ErrorIs(t, err, booking.ErrBookingNotFound)
}

func TestAcceptWhenDoctorBusy(t *testing.T) {
	f := newFixture(t)
	b := f.request(t, f.patient, "10:00 AM")
	f.locker.busy = true

	_, err := f.svc.AcceptBooking(context.Background(), f.doctor, b.ID, booking.AcceptInput{})
	assert.ErrorIs(t, err, booking.ErrDoctorBusy)
}

func TestTransitionsFromTerminalStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rejected := f.request(t, f.patient, "10:00 AM")
	_, err := f.svc.RejectBooking(ctx, f.doctor, rejected.ID)
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(ctx, f.patient, rejected.ID)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)
	_, err = f.svc.AcceptBooking(ctx, f.doctor, rejected.ID, booking.AcceptInput{})
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)

	booked := f.request(t, f.patient, "11:00 AM")
	_, err = f.svc.AcceptBooking(ctx, f.doctor, booked.ID, booking.AcceptInput{})
	require.NoError(t, err)

	_, err = f.svc.RejectBooking(ctx, f.doctor, booked.ID)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)
	_, err = f.svc.AcceptBooking(ctx, f.doctor, booked.ID, booking.AcceptInput{})
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)

	cancelled, err := f.svc.CancelBooking(ctx, f.patient, booked.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, cancelled.Status)

	_, err = f.svc.CancelBooking(ctx, f.doctor, booked.ID)
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)
}

func TestCanTransition(t *testing.T) {
	all := []booking.Status{booking.StatusPending, booking.StatusBooked, booking.StatusRejected, booking.StatusCancelled}
	allowed := map[[2]booking.Status]bool{
		{booking.StatusPending, booking.StatusBooked}:    true,
		{booking.StatusPending, booking.StatusRejected}:  true,
		{booking.StatusPending, booking.StatusCancelled}: true,
		{booking.StatusBooked, booking.StatusCancelled}:  true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]booking.Status{from, to}]
			assert.Equal(t, want, booking.CanTransition(from, to), "%s -> %s", from, to)
		}
		if from.Terminal() {
			for _, to := range all {
				assert.False(t, booking.CanTransition(from, to))
			}
		}
	}
}

func TestConcurrentAcceptsNeverOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var pending []*booking.Booking
	for _, clock := range []string{"10:00 AM", "10:15 AM", "10:30 AM", "10:45 AM"} {
		pending = append(pending, f.request(t, f.patient, clock))
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for _, b := range pending {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.svc.AcceptBooking(ctx, f.doctor, id, booking.AcceptInput{Blocks: 4})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
				return
			}
			assert.ErrorIs(t, err, booking.ErrSlotConflict)
		}(b.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)

	var booked []booking.Booking
	for _, b := range f.repo.Bookings() {
		if b.Status == booking.StatusBooked {
			booked = append(booked, b)
		}
	}
	for i := range booked {
		for j := i + 1; j < len(booked); j++ {
			assert.False(t, booking.Overlaps(booked[i].SlotStart, booked[i].SlotEnd, booked[j].SlotStart, booked[j].SlotEnd))
		}
	}
}

func TestSideEffectFailuresAreSwallowed(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")
	f.repo.FailEvents = errors.New("event table locked")

	b := f.request(t, f.patient, "10:00 AM")
	accepted, err := f.svc.AcceptBooking(context.Background(), f.doctor, b.ID, booking.AcceptInput{})
	require.NoError(t, err)
	assert.Equal(t, booking.StatusBooked, accepted.Status)
	assert.Empty(t, f.repo.Events())
	assert.Len(t, f.notifier.events, 2)
}

func TestAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.request(t, f.patient, "10:00 AM")
	b := f.request(t, f.second, "10:30 AM")
	_, err := f.svc.AcceptBooking(ctx, f.doctor, b.ID, booking.AcceptInput{Blocks: 2})
	require.NoError(t, err)

	slotAt := func(day *booking.DayAvailability, clock string) availability.Slot {
		return day.TimeSlots[int(mustOffset(clock)/time.Minute)/15]
	}

	forPatients, err := f.svc.Availability(ctx, f.doctor.ID, monday, true)
	require.NoError(t, err)
	require.Len(t, forPatients.TimeSlots, 96)
	assert.True(t, forPatients.Available)
	assert.True(t, slotAt(forPatients, "10:00 AM").Booked)
	assert.True(t, slotAt(forPatients, "10:45 AM").Booked)
	assert.False(t, slotAt(forPatients, "10:45 AM").Available)
	assert.True(t, slotAt(forPatients, "11:00 AM").Available)

	forDoctor, err := f.svc.Availability(ctx, f.doctor.ID, monday, false)
	require.NoError(t, err)
	assert.True(t, slotAt(forDoctor, "10:00 AM").Available)
	assert.True(t, slotAt(forDoctor, "10:30 AM").Booked)

	closed, err := f.svc.Availability(ctx, f.doctor.ID, "2026-10-20", true)
	require.NoError(t, err)
	assert.False(t, closed.Available)
	assert.Empty(t, closed.TimeSlots)

	_, err = f.svc.Availability(ctx, f.doctor.ID, "next monday", true)
	assert.ErrorIs(t, err, booking.ErrValidation)

	_, err = f.svc.Availability(ctx, uuid.New(), monday, true)
	assert.ErrorIs(t, err, booking.ErrDoctorNotFound)
}

func TestListBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.request(t, f.patient, "11:00 AM")
	f.request(t, f.second, "10:00 AM")
	_, err := f.svc.CreateBooking(ctx, f.patient, walkIn(f.other.ID, monday, "09:00 AM"))
	require.NoError(t, err)

	mine, err := f.svc.ListBookings(ctx, f.doctor, booking.ListFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, at("10:00 AM"), mine[0].SlotStart)
	assert.Equal(t, "Alex", mine[0].Patient.Name)
	assert.Equal(t, "Dr. Rao", mine[1].Doctor.Name)

	pid := f.patient.ID
	status := booking.StatusPending
	theirs, err := f.svc.ListBookings(ctx, f.patient, booking.ListFilter{PatientID: &pid, Status: &status, Limit: 1})
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, f.other.ID, theirs[0].DoctorID)

	bad := booking.Status("archived")
	_, err = f.svc.ListBookings(ctx, f.doctor, booking.ListFilter{Status: &bad})
	assert.ErrorIs(t, err, booking.ErrValidation)
}

func TestGetBookingOnlyForParties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.request(t, f.patient, "10:00 AM")

	for _, who := range []auth.Identity{f.doctor, f.patient} {
		got, err := f.svc.GetBooking(ctx, who, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)
	}

	_, err := f.svc.GetBooking(ctx, f.second, b.ID)
	assert.ErrorIs(t, err, booking.ErrForbidden)
}

func TestExpireStalePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := booking.Booking{
		ID: uuid.New(), DoctorID: f.doctor.ID, PatientID: f.patient.ID,
		SlotStart: now.Add(-2 * time.Hour), SlotEnd: now.Add(-105 * time.Minute),
		Status: booking.StatusPending, NotifyEmail: "sam@mail.test",
	}
	recent := stale
	recent.ID = uuid.New()
	recent.SlotStart, recent.SlotEnd = now.Add(-30*time.Minute), now.Add(-15*time.Minute)
	booked := stale
	booked.ID = uuid.New()
	booked.SlotStart, booked.SlotEnd = now.Add(-3*time.Hour), now.Add(-165*time.Minute)
	booked.Status = booking.StatusBooked

	for _, b := range []booking.Booking{stale, recent, booked} {
		f.repo.PutBooking(b)
	}

	n, err := f.svc.ExpireStalePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.repo.GetBookingByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, got.Status)

	got, err = f.repo.GetBookingByID(ctx, recent.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusPending, got.Status)

	assert.Equal(t, []notify.EventType{notify.BookingCancelled}, f.notifier.types())
	assert.Equal(t, []string{"rao@clinic.test", "sam@mail.test"}, f.notifier.events[0].Recipients)

	n, err = f.svc.ExpireStalePending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
