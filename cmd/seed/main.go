package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-booking/internal/availability"
	"github.com/hackgods/doctor-booking/internal/db"
	"github.com/hackgods/doctor-booking/internal/logger"
	"github.com/hackgods/doctor-booking/internal/slot"
)

const (
	doctorCount  = 50
	patientCount = 2000
)

func main() {
	_ = godotenv.Load()

	zl, err := logger.New(os.Getenv("APP_ENV"), "info")
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		zl.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, os.Getenv("APP_TIMEZONE"))
	if err != nil {
		zl.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		zl.Fatal("ensure schema", zap.Error(err))
	}

	gofakeit.Seed(0)

	if err := seedDoctors(context.Background(), pool, zl, doctorCount); err != nil {
		zl.Fatal("seed doctors", zap.Error(err))
	}
	if err := seedPatients(context.Background(), pool, zl, patientCount); err != nil {
		zl.Fatal("seed patients", zap.Error(err))
	}

	zl.Info("seed complete")
}

// randomWeek opens most weekdays with a morning window and sometimes an afternoon one.
func randomWeek() availability.WeeklyAvailability {
	week := make(availability.WeeklyAvailability, len(availability.Weekdays))
	for _, wd := range availability.Weekdays {
		weekend := wd == availability.Saturday || wd == availability.Sunday
		if (weekend && gofakeit.Number(0, 3) > 0) || gofakeit.Number(0, 9) == 0 {
			week[wd] = availability.DaySchedule{Available: false}
			continue
		}

		morningStart := gofakeit.Number(7, 10) * 60
		morningEnd := morningStart + gofakeit.Number(2, 4)*60
		windows := []availability.Window{{
			StartTime: slot.Format(morningStart),
			EndTime:   slot.Format(morningEnd),
		}}

		if gofakeit.Bool() {
			afternoonStart := morningEnd + gofakeit.Number(1, 2)*60
			windows = append(windows, availability.Window{
				StartTime: slot.Format(afternoonStart),
				EndTime:   slot.Format(afternoonStart + gofakeit.Number(4, 12)*slot.Step),
			})
		}

		week[wd] = availability.DaySchedule{Available: true, TimeSlots: windows}
	}
	return week
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, zl *zap.Logger, count int) error {
	zl.Info("seeding doctors", zap.Int("count", count))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		week := randomWeek()
		if err := week.Validate(); err != nil {
			return fmt.Errorf("generated schedule: %w", err)
		}
		raw, err := json.Marshal(week)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO doctors (id, name, email, weekly_availability, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, uuid.New(), "Dr. "+gofakeit.Name(), gofakeit.Email(), raw)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	zl.Info("doctors seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, zl *zap.Logger, count int) error {
	zl.Info("seeding patients", zap.Int("count", count))

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, uuid.New(), gofakeit.Name(), gofakeit.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		zl.Info("patients seeded", zap.Int("done", end), zap.Int("total", count))
	}

	return nil
}
