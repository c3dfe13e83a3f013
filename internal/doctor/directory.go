package doctor

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-queue-scheduling/internal/apperr"
	"github.com/hackgods/doctor-queue-scheduling/internal/calendar"
	"github.com/hackgods/doctor-queue-scheduling/internal/clock"
	"github.com/hackgods/doctor-queue-scheduling/internal/metrics"
)

// Repository persists doctor records. It is written after the in-memory
// directory has committed a change.
type Repository interface {
	UpsertDoctor(ctx context.Context, d Doctor) error
	ListDoctors(ctx context.Context) ([]Doctor, error)
}

// Directory owns doctor records. Other components only read from it.
type Directory struct {
	mu      sync.RWMutex
	doctors map[string]*Doctor

	clock   clock.Clock
	ids     clock.IDs
	repo    Repository
	metrics *metrics.Metrics
	log     zerolog.Logger
}

type Option func(*Directory)

func WithRepository(repo Repository) Option {
	return func(d *Directory) { d.repo = repo }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Directory) { d.metrics = m }
}

func WithLogger(log zerolog.Logger) Option {
	return func(d *Directory) { d.log = log }
}

func NewDirectory(clk clock.Clock, ids clock.IDs, opts ...Option) *Directory {
	d := &Directory{
		doctors: make(map[string]*Doctor),
		clock:   clk,
		ids:     ids,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register validates and stores a new doctor. When in.ID is empty an id is
// generated. New doctors are active.
func (d *Directory) Register(ctx context.Context, in Doctor) (Doctor, error) {
	doc := in.clone()
	if err := normalize(&doc); err != nil {
		return Doctor{}, err
	}

	d.mu.Lock()
	if doc.ID == "" {
		doc.ID = d.freshIDLocked()
	} else if _, exists := d.doctors[doc.ID]; exists {
		d.mu.Unlock()
		return Doctor{}, ErrDoctorExists
	}
	now := d.clock.Now()
	doc.Active = true
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.Version = 1
	stored := doc.clone()
	d.doctors[doc.ID] = &stored
	d.mu.Unlock()

	d.persist(ctx, doc)
	return doc, nil
}

func (d *Directory) freshIDLocked() string {
	for {
		id := d.ids.NewDoctorID()
		if _, taken := d.doctors[id]; !taken {
			return id
		}
	}
}

func (d *Directory) Get(id string) (Doctor, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	doc, ok := d.doctors[id]
	if !ok {
		return Doctor{}, ErrDoctorNotFound
	}
	return doc.clone(), nil
}

// Update applies patch atomically. A patch that would leave the record
// invalid changes nothing.
func (d *Directory) Update(ctx context.Context, id string, patch Patch) (Doctor, error) {
	return d.mutate(ctx, id, func(doc *Doctor) error {
		patch.apply(doc)
		return normalize(doc)
	})
}

// Deactivate stops new bookings and queue joins for the doctor. Existing
// appointments and queue entries are left untouched.
func (d *Directory) Deactivate(ctx context.Context, id string) (Doctor, error) {
	return d.mutate(ctx, id, func(doc *Doctor) error {
		doc.Active = false
		return nil
	})
}

func (d *Directory) Reactivate(ctx context.Context, id string) (Doctor, error) {
	return d.mutate(ctx, id, func(doc *Doctor) error {
		doc.Active = true
		return nil
	})
}

func (d *Directory) mutate(ctx context.Context, id string, fn func(*Doctor) error) (Doctor, error) {
	d.mu.Lock()
	current, ok := d.doctors[id]
	if !ok {
		d.mu.Unlock()
		return Doctor{}, ErrDoctorNotFound
	}

	next := current.clone()
	if err := fn(&next); err != nil {
		d.mu.Unlock()
		return Doctor{}, err
	}
	next.ID = current.ID
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = d.clock.Now()
	next.Version = current.Version + 1
	stored := next.clone()
	d.doctors[id] = &stored
	d.mu.Unlock()

	d.persist(ctx, next)
	return next, nil
}

// IsActive reports whether the doctor exists and accepts new work.
func (d *Directory) IsActive(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	doc, ok := d.doctors[id]
	return ok && doc.Active
}

// IsAvailable is true iff the doctor is active and works on date's weekday.
func (d *Directory) IsAvailable(id string, date calendar.Date) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	doc, ok := d.doctors[id]
	return ok && doc.Active && doc.WorksOn(date.Weekday())
}

// List returns doctors ordered by name, then id.
func (d *Directory) List(f Filter) []Doctor {
	d.mu.RLock()
	out := make([]Doctor, 0, len(d.doctors))
	for _, doc := range d.doctors {
		if f.ActiveOnly && !doc.Active {
			continue
		}
		if f.Specialization != "" && !strings.EqualFold(doc.Specialization, f.Specialization) {
			continue
		}
		out = append(out, doc.clone())
	}
	d.mu.RUnlock()

	slices.SortFunc(out, func(a, b Doctor) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (d *Directory) Count() (total, active int) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, doc := range d.doctors {
		total++
		if doc.Active {
			active++
		}
	}
	return total, active
}

// Restore replaces the in-memory state with previously persisted records.
func (d *Directory) Restore(docs []Doctor) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.doctors = make(map[string]*Doctor, len(docs))
	for _, doc := range docs {
		stored := doc.clone()
		d.doctors[doc.ID] = &stored
	}
}

// Load restores the directory from its repository.
func (d *Directory) Load(ctx context.Context) error {
	if d.repo == nil {
		return nil
	}
	docs, err := d.repo.ListDoctors(ctx)
	if err != nil {
		return fmt.Errorf("load doctors: %w", err)
	}
	d.Restore(docs)
	d.log.Info().Int("count", len(docs)).Msg("doctors restored")
	return nil
}

func (d *Directory) persist(ctx context.Context, doc Doctor) {
	if d.repo == nil {
		return
	}
	if err := d.repo.UpsertDoctor(ctx, doc); err != nil {
		d.metrics.PersistFailed("doctor")
		d.log.Error().Err(err).Str("doctor_id", doc.ID).Int64("version", doc.Version).Msg("failed to persist doctor")
	}
}

func normalize(doc *Doctor) error {
	doc.Name = strings.TrimSpace(doc.Name)
	doc.Specialization = strings.TrimSpace(doc.Specialization)
	doc.Department = strings.TrimSpace(doc.Department)
	doc.Email = strings.TrimSpace(doc.Email)

	var problems []string
	if doc.Name == "" {
		problems = append(problems, "name is required")
	}
	if doc.Specialization == "" {
		problems = append(problems, "specialization is required")
	}
	if doc.Department == "" {
		problems = append(problems, "department is required")
	}
	if doc.ConsultationFee < 0 {
		problems = append(problems, "consultationFee must not be negative")
	}
	if doc.ExperienceYears < 0 {
		problems = append(problems, "experienceYears must not be negative")
	}

	days := slices.Clone(doc.AvailableDays)
	slices.Sort(days)
	doc.AvailableDays = slices.Compact(days)
	for _, day := range doc.AvailableDays {
		if day < 0 || day > 6 {
			problems = append(problems, fmt.Sprintf("availableDays contains invalid weekday %d", day))
			break
		}
	}

	slots, err := calendar.NormalizeRanges(doc.AvailableTimeSlots)
	if err != nil {
		problems = append(problems, "availableTimeSlots: "+err.Error())
	} else {
		doc.AvailableTimeSlots = slots
	}

	if len(problems) > 0 {
		return apperr.Invalid("%s", strings.Join(problems, "; "))
	}
	return nil
}
