package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-booking/internal/api"
	"github.com/hackgods/doctor-booking/internal/auth"
	"github.com/hackgods/doctor-booking/internal/booking"
	"github.com/hackgods/doctor-booking/internal/config"
	"github.com/hackgods/doctor-booking/internal/db"
	"github.com/hackgods/doctor-booking/internal/logger"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	RequestRatio float64
	AcceptRatio  float64
	ReadRatio    float64
	DoctorLimit  int
	PatientLimit int
	DaysAhead    int
}

type pendingBooking struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
}

type DataPool struct {
	Doctors  []uuid.UUID
	Patients []uuid.UUID
	tokens   map[uuid.UUID]string

	mu      sync.Mutex
	pending []pendingBooking
}

func (dp *DataPool) AddPending(b pendingBooking) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.pending = append(dp.pending, b)
}

// TakePending removes a random pending booking so only one worker acts on it.
func (dp *DataPool) TakePending(rng *rand.Rand) (pendingBooking, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.pending) == 0 {
		return pendingBooking{}, false
	}
	idx := rng.Intn(len(dp.pending))
	b := dp.pending[idx]
	dp.pending[idx] = dp.pending[len(dp.pending)-1]
	dp.pending = dp.pending[:len(dp.pending)-1]
	return b, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0
	}

	latencies := append([]time.Duration(nil), om.Latencies...)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	n := len(latencies)
	return sum / time.Duration(n), latencies[n*50/100], latencies[min(n*95/100, n-1)], latencies[n-1]
}

type Metrics struct {
	Availability OperationMetrics
	Request      OperationMetrics
	Accept       OperationMetrics
	List         OperationMetrics
}

type Simulator struct {
	config  SimConfig
	loc     *time.Location
	pool    *DataPool
	client  *http.Client
	log     *zap.Logger
	metrics Metrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	zl, err := logger.New(baseCfg.Env, baseCfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		zl.Fatal("invalid simulator config", zap.Error(err))
	}

	zl.Info("simulator starting",
		zap.Duration("duration", cfg.Duration),
		zap.Int("workers", cfg.Workers),
		zap.Float64("request", cfg.RequestRatio),
		zap.Float64("accept", cfg.AcceptRatio),
		zap.Float64("read", cfg.ReadRatio),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, baseCfg.PostgresDSN, baseCfg.Timezone)
	if err != nil {
		zl.Fatal("connect postgres", zap.Error(err))
	}
	defer pgPool.Close()

	verifier := auth.NewVerifier(baseCfg.JWTSecret)
	dataPool, err := loadDataPool(ctx, pgPool, verifier, cfg)
	if err != nil {
		zl.Fatal("load data pool", zap.Error(err))
	}
	zl.Info("data pool loaded", zap.Int("doctors", len(dataPool.Doctors)), zap.Int("patients", len(dataPool.Patients)))

	sim := &Simulator{
		config: cfg,
		loc:    baseCfg.Loc(),
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    zl,
	}

	sim.Run()
	sim.PrintReport()

	overlaps, err := verifyNoOverlaps(context.Background(), pgPool, dataPool.Doctors)
	if err != nil {
		zl.Fatal("verify bookings", zap.Error(err))
	}
	if overlaps > 0 {
		zl.Error("overlapping booked appointments found", zap.Int("pairs", overlaps))
		os.Exit(1)
	}
	fmt.Println("Verification: no overlapping booked appointments")
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		RequestRatio: getFloat("SIM_REQUEST_RATIO", 0.5),
		AcceptRatio:  getFloat("SIM_ACCEPT_RATIO", 0.3),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.2),
		DoctorLimit:  getInt("SIM_DOCTOR_LIMIT", 5),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 500),
		DaysAhead:    getInt("SIM_DAYS_AHEAD", 3),
	}

	// Normalize ratios
	total := cfg.RequestRatio + cfg.AcceptRatio + cfg.ReadRatio
	if total > 0 {
		cfg.RequestRatio /= total
		cfg.AcceptRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return fmt.Errorf("SIM_DAYS_AHEAD must be > 0")
	}
	return nil
}

// loadDataPool picks a handful of doctors so patients contend for the same slots.
func loadDataPool(ctx context.Context, pool *pgxpool.Pool, verifier *auth.Verifier, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{tokens: make(map[uuid.UUID]string)}

	load := func(query string, limit int, role auth.Role) ([]uuid.UUID, error) {
		rows, err := pool.Query(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var ids []uuid.UUID
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return nil, err
			}
			tok, err := verifier.Issue(auth.Identity{ID: id, Role: role}, cfg.Duration+10*time.Minute)
			if err != nil {
				return nil, err
			}
			dataPool.tokens[id] = tok
			ids = append(ids, id)
		}
		return ids, rows.Err()
	}

	var err error
	dataPool.Doctors, err = load(`SELECT id FROM doctors ORDER BY created_at LIMIT $1`, cfg.DoctorLimit, auth.RoleDoctor)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	dataPool.Patients, err = load(`SELECT id FROM patients LIMIT $1`, cfg.PatientLimit, auth.RolePatient)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded")
	}
	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.RequestRatio:
				s.doRequest(ctx, rng)
			case r < s.config.RequestRatio+s.config.AcceptRatio:
				s.doAccept(ctx, rng)
			default:
				s.doList(ctx, rng)
			}
		}
	}
}

func (s *Simulator) call(ctx context.Context, method, path string, token string, body any, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

// doRequest looks up a doctor's day and races for one of its first open slots.
func (s *Simulator) doRequest(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	date := time.Now().In(s.loc).AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead)).Format(time.DateOnly)

	start := time.Now()
	var day booking.DayAvailability
	code, err := s.call(ctx, http.MethodGet, fmt.Sprintf("/doctors/%s/availability?date=%s", doctorID, date), "", nil, &day)
	s.metrics.Availability.Record(time.Since(start), err == nil && code == http.StatusOK, false)
	if err != nil || code != http.StatusOK {
		return
	}

	var open []string
	for _, sl := range day.TimeSlots {
		if sl.Available {
			open = append(open, sl.Time)
		}
		if len(open) == 4 {
			break
		}
	}
	if len(open) == 0 {
		return
	}

	start = time.Now()
	var created api.CreateBookingResponse
	code, err = s.call(ctx, http.MethodPost, "/bookings", s.pool.tokens[patientID], api.CreateBookingRequest{
		DoctorID:    doctorID.String(),
		Date:        date,
		Time:        open[rng.Intn(len(open))],
		BookingType: string(booking.BookingWalkIn),
		VisitType:   string(booking.VisitFirstTime),
		BookingFor:  string(booking.ForMyself),
	}, &created)
	s.metrics.Request.Record(time.Since(start), err == nil && code == http.StatusCreated, code == http.StatusConflict)

	if err == nil && code == http.StatusCreated {
		s.pool.AddPending(pendingBooking{ID: created.BookingID, DoctorID: doctorID})
	}
}

// doAccept widens a pending request to 1-3 slots, which regularly collides with neighbours.
func (s *Simulator) doAccept(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.TakePending(rng)
	if !ok {
		return
	}

	start := time.Now()
	code, err := s.call(ctx, http.MethodPatch, "/bookings", s.pool.tokens[b.DoctorID], api.UpdateBookingRequest{
		BookingID:    b.ID.String(),
		Action:       "accept",
		AcceptBlocks: 1 + rng.Intn(3),
	}, nil)
	// strict windows turn some widened ranges into validation failures, which count as conflicts here
	conflict := code == http.StatusConflict || code == http.StatusBadRequest
	s.metrics.Accept.Record(time.Since(start), err == nil && code == http.StatusOK, conflict)
}

func (s *Simulator) doList(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]

	start := time.Now()
	var list []api.BookingResponse
	code, err := s.call(ctx, http.MethodGet, "/bookings?limit=50", s.pool.tokens[doctorID], nil, &list)
	s.metrics.List.Record(time.Since(start), err == nil && code == http.StatusOK, false)
}

// verifyNoOverlaps counts booked pairs per doctor whose ranges intersect.
func verifyNoOverlaps(ctx context.Context, pool *pgxpool.Pool, doctors []uuid.UUID) (int, error) {
	overlaps := 0
	for _, doctorID := range doctors {
		rows, err := pool.Query(ctx, `
			SELECT slot_start, slot_end FROM bookings
			WHERE doctor_id = $1 AND status = 'booked'
			ORDER BY slot_start
		`, doctorID)
		if err != nil {
			return 0, err
		}

		var prevStart, prevEnd time.Time
		for rows.Next() {
			var start, end time.Time
			if err := rows.Scan(&start, &end); err != nil {
				rows.Close()
				return 0, err
			}
			if !prevEnd.IsZero() && booking.Overlaps(prevStart, prevEnd, start, end) {
				overlaps++
			}
			if end.After(prevEnd) {
				prevStart, prevEnd = start, end
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return 0, err
		}
	}
	return overlaps, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Request", &s.metrics.Request)
	printOperationReport("Accept", &s.metrics.Accept)
	printOperationReport("List", &s.metrics.List)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, p50, p95, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
