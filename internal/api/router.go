package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-booking/internal/auth"
	"github.com/hackgods/doctor-booking/internal/booking"
)

// availabilityRequestsPerMinute bounds the unauthenticated availability lookups per client IP.
const availabilityRequestsPerMinute = 120

type BookingService interface {
	ParseDate(date string) (time.Time, error)
	CreateBooking(ctx context.Context, actor auth.Identity, in booking.CreateBookingInput) (*booking.Booking, error)
	ListBookings(ctx context.Context, actor auth.Identity, f booking.ListFilter) ([]booking.BookingDetail, error)
	GetBooking(ctx context.Context, actor auth.Identity, id uuid.UUID) (*booking.BookingDetail, error)
	AcceptBooking(ctx context.Context, actor auth.Identity, id uuid.UUID, in booking.AcceptInput) (*booking.Booking, error)
	RejectBooking(ctx context.Context, actor auth.Identity, id uuid.UUID) (*booking.Booking, error)
	CancelBooking(ctx context.Context, actor auth.Identity, id uuid.UUID) (*booking.Booking, error)
	Availability(ctx context.Context, doctorID uuid.UUID, date string, blockPending bool) (*booking.DayAvailability, error)
}

var _ BookingService = (*booking.Service)(nil)

type RouterConfig struct {
	Service            BookingService
	Verifier           *auth.Verifier
	Logger             *zap.Logger
	Postgres           Pinger
	Redis              Pinger
	Env                string
	Version            string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health endpoints
	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.With(httprate.LimitByIP(availabilityRequestsPerMinute, time.Minute)).
		Get("/doctors/{id}/availability", availabilityHandler(cfg.Service, log))

	// Booking endpoints
	r.Group(func(r chi.Router) {
		r.Use(Authenticate(cfg.Verifier))

		r.Get("/bookings", listBookingsHandler(cfg.Service, log))
		r.Get("/bookings/{id}", getBookingHandler(cfg.Service, log))

		r.Group(func(r chi.Router) {
			r.Use(RateLimitByIdentity(cfg.RateLimitPerMinute, log))
			r.With(RequireRole(auth.RolePatient)).Post("/bookings", createBookingHandler(cfg.Service, log))
			r.Patch("/bookings", updateBookingHandler(cfg.Service, log))
		})
	})

	return r
}
