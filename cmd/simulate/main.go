package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-queue-scheduling/internal/calendar"
	"github.com/hackgods/doctor-queue-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	Patients     int
	QueueRatio   float64
	BookingRatio float64
	ReadRatio    float64
	JWTSecret    string
}

var reasons = []string{"follow-up", "annual check-up", "persistent cough", "back pain", "rash", "prescription renewal"}

type simDoctor struct {
	ID    string
	Days  []time.Weekday
	Slots []calendar.TimeRange
}

// DataPool holds doctors read from the API and appointments created during
// the run.
type DataPool struct {
	Doctors      []simDoctor
	Patients     []string
	mu           sync.RWMutex
	appointments map[string]string // appointment id -> patient id
}

func (dp *DataPool) AddAppointment(id, patientID string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments[id] = patientID
}

func (dp *DataPool) TakeAppointment(rng *rand.Rand) (string, string, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.appointments) == 0 {
		return "", "", false
	}
	n := rng.Intn(len(dp.appointments))
	for id, patient := range dp.appointments {
		if n == 0 {
			delete(dp.appointments, id)
			return id, patient, true
		}
		n--
	}
	return "", "", false
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

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95, p99 time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	pct := func(p int) time.Duration {
		idx := len(latencies) * p / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}
	return sum / time.Duration(len(latencies)), latencies[0], latencies[len(latencies)-1], pct(50), pct(95), pct(99)
}

type Metrics struct {
	Join     OperationMetrics
	Leave    OperationMetrics
	Advance  OperationMetrics
	Complete OperationMetrics
	Book     OperationMetrics
	Cancel   OperationMetrics
	Status   OperationMetrics
	Position OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	_ = godotenv.Load()
	log := logging.New(getEnv("LOG_LEVEL", "info"), getEnv("APP_ENV", "dev"))

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("queue", cfg.QueueRatio).
		Float64("booking", cfg.BookingRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := sim.loadDataPool(ctx)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}
	sim.pool = pool
	log.Info().Int("doctors", len(pool.Doctors)).Int("patients", len(pool.Patients)).Msg("data pool loaded")

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		Patients:     getInt("SIM_PATIENTS", 500),
		QueueRatio:   getFloat("SIM_QUEUE_RATIO", 0.5),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.3),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.2),
		JWTSecret:    os.Getenv("AUTH_JWT_SECRET"),
	}

	total := cfg.QueueRatio + cfg.BookingRatio + cfg.ReadRatio
	if total > 0 {
		cfg.QueueRatio /= total
		cfg.BookingRatio /= total
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
	if cfg.Patients <= 0 {
		return fmt.Errorf("SIM_PATIENTS must be > 0")
	}
	return nil
}

func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	resp, err := s.call(ctx, http.MethodGet, "/doctors?active=true", "", "", nil)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list doctors: status %d", resp.StatusCode)
	}

	var docs []struct {
		ID                 string   `json:"doctorId"`
		AvailableDays      []string `json:"availableDays"`
		AvailableTimeSlots []string `json:"availableTimeSlots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, fmt.Errorf("decode doctors: %w", err)
	}

	pool := &DataPool{appointments: make(map[string]string)}
	for _, d := range docs {
		sd := simDoctor{ID: d.ID}
		for _, day := range d.AvailableDays {
			if wd, err := calendar.ParseWeekday(day); err == nil {
				sd.Days = append(sd.Days, wd)
			}
		}
		for _, slot := range d.AvailableTimeSlots {
			if r, err := calendar.ParseTimeRange(slot); err == nil {
				sd.Slots = append(sd.Slots, r)
			}
		}
		pool.Doctors = append(pool.Doctors, sd)
	}
	if len(pool.Doctors) == 0 {
		return nil, fmt.Errorf("no active doctors; run cmd/seed first")
	}

	for i := 0; i < s.config.Patients; i++ {
		pool.Patients = append(pool.Patients, "P-"+gofakeit.Numerify("########"))
	}
	return pool, nil
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
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.QueueRatio:
			switch rng.Intn(4) {
			case 0, 1:
				s.doJoin(ctx, rng)
			case 2:
				s.doLeave(ctx, rng)
			default:
				s.doAdvanceOrComplete(ctx, rng)
			}
		case r < s.config.QueueRatio+s.config.BookingRatio:
			if rng.Intn(4) == 0 {
				s.doCancel(ctx, rng)
			} else {
				s.doBook(ctx, rng)
			}
		default:
			if rng.Intn(2) == 0 {
				s.doStatus(ctx, rng)
			} else {
				s.doPosition(ctx, rng)
			}
		}
	}
}

func (s *Simulator) randomDoctor(rng *rand.Rand) simDoctor {
	return s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
}

func (s *Simulator) randomPatient(rng *rand.Rand) string {
	return s.pool.Patients[rng.Intn(len(s.pool.Patients))]
}

func (s *Simulator) doJoin(ctx context.Context, rng *rand.Rand) {
	patient := s.randomPatient(rng)
	body := map[string]string{"patientId": patient, "doctorId": s.randomDoctor(rng).ID}
	s.timed(ctx, &s.metrics.Join, http.MethodPost, "/queue/join", patient, "patient", body, http.StatusCreated)
}

func (s *Simulator) doLeave(ctx context.Context, rng *rand.Rand) {
	patient := s.randomPatient(rng)
	s.timed(ctx, &s.metrics.Leave, http.MethodDelete, "/queue/patients/"+patient, patient, "patient", nil, http.StatusOK)
}

func (s *Simulator) doAdvanceOrComplete(ctx context.Context, rng *rand.Rand) {
	doc := s.randomDoctor(rng)
	if rng.Intn(2) == 0 {
		s.timed(ctx, &s.metrics.Advance, http.MethodPost, "/queue/doctors/"+doc.ID+"/advance", doc.ID, "doctor", nil, http.StatusOK, http.StatusNoContent)
		return
	}
	s.timed(ctx, &s.metrics.Complete, http.MethodPost, "/queue/doctors/"+doc.ID+"/complete", doc.ID, "doctor", nil, http.StatusOK)
}

// doBook picks one of the doctor's working days in the next two weeks and a
// quarter-hour inside one of their slots.
func (s *Simulator) doBook(ctx context.Context, rng *rand.Rand) {
	doc := s.randomDoctor(rng)
	if len(doc.Days) == 0 || len(doc.Slots) == 0 {
		return
	}
	day := time.Now().UTC().AddDate(0, 0, 2+rng.Intn(14))
	for i := 0; i < 7 && !containsDay(doc.Days, day.Weekday()); i++ {
		day = day.AddDate(0, 0, 1)
	}
	slot := doc.Slots[rng.Intn(len(doc.Slots))]
	steps := (int(slot.End) - int(slot.Start)) / 15
	if steps <= 0 {
		return
	}
	tod := calendar.TimeOfDay(int(slot.Start) + 15*rng.Intn(steps))

	patient := s.randomPatient(rng)
	body := map[string]string{
		"patientId": patient,
		"doctorId":  doc.ID,
		"date":      calendar.DateOf(day).String(),
		"time":      tod.String(),
		"reason":    gofakeit.RandomString(reasons),
	}

	start := time.Now()
	resp, err := s.call(ctx, http.MethodPost, "/appointments", patient, "patient", body)
	latency := time.Since(start)
	if err != nil {
		s.metrics.Book.Record(latency, false, false)
		return
	}
	defer resp.Body.Close()

	success := resp.StatusCode == http.StatusCreated
	if success {
		var appt struct {
			ID string `json:"appointmentId"`
		}
		if b, _ := io.ReadAll(resp.Body); json.Unmarshal(b, &appt) == nil && appt.ID != "" {
			s.pool.AddAppointment(appt.ID, patient)
		}
	}
	s.metrics.Book.Record(latency, success, resp.StatusCode == http.StatusConflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	id, patient, ok := s.pool.TakeAppointment(rng)
	if !ok {
		return
	}
	s.timed(ctx, &s.metrics.Cancel, http.MethodPost, "/appointments/"+id+"/cancel", patient, "patient", nil, http.StatusOK)
}

func (s *Simulator) doStatus(ctx context.Context, rng *rand.Rand) {
	s.timed(ctx, &s.metrics.Status, http.MethodGet, "/queue/doctors/"+s.randomDoctor(rng).ID, "", "", nil, http.StatusOK)
}

func (s *Simulator) doPosition(ctx context.Context, rng *rand.Rand) {
	patient := s.randomPatient(rng)
	// not being queued is an expected answer
	s.timed(ctx, &s.metrics.Position, http.MethodGet, "/queue/patients/"+patient+"/position", patient, "patient", nil, http.StatusOK, http.StatusNotFound)
}

func (s *Simulator) timed(ctx context.Context, om *OperationMetrics, method, path, callerID, role string, body any, ok ...int) {
	start := time.Now()
	resp, err := s.call(ctx, method, path, callerID, role, body)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			om.Record(latency, false, false)
		}
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	success := false
	for _, code := range ok {
		if resp.StatusCode == code {
			success = true
		}
	}
	conflict := resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity
	om.Record(latency, success, !success && conflict)
}

func (s *Simulator) call(ctx context.Context, method, path, callerID, role string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if callerID != "" {
		if err := s.authenticate(req, callerID, role); err != nil {
			return nil, err
		}
	}
	return s.client.Do(req)
}

// authenticate signs a short-lived token when the server expects one and
// falls back to the dev identity headers otherwise.
func (s *Simulator) authenticate(req *http.Request, callerID, role string) error {
	if s.config.JWTSecret == "" {
		req.Header.Set("X-Caller-ID", callerID)
		req.Header.Set("X-Caller-Role", role)
		return nil
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  callerID,
		"role": role,
		"exp":  time.Now().Add(5 * time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+signed)
	return nil
}

func containsDay(days []time.Weekday, d time.Weekday) bool {
	for _, day := range days {
		if day == d {
			return true
		}
	}
	return false
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Join queue", &s.metrics.Join)
	printOperationReport("Leave queue", &s.metrics.Leave)
	printOperationReport("Advance", &s.metrics.Advance)
	printOperationReport("Complete consultation", &s.metrics.Complete)
	printOperationReport("Book appointment", &s.metrics.Book)
	printOperationReport("Cancel appointment", &s.metrics.Cancel)
	printOperationReport("Queue status", &s.metrics.Status)
	printOperationReport("Queue position", &s.metrics.Position)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95, p99 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Rejected/conflict: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s p99=%s\n",
		avg.Round(time.Microsecond), min.Round(time.Microsecond), max.Round(time.Microsecond),
		p50.Round(time.Microsecond), p95.Round(time.Microsecond), p99.Round(time.Microsecond))
	fmt.Println()
}

// Helper functions

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

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
