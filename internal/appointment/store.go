package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-queue-scheduling/internal/apperr"
	"github.com/hackgods/doctor-queue-scheduling/internal/calendar"
	"github.com/hackgods/doctor-queue-scheduling/internal/clock"
	"github.com/hackgods/doctor-queue-scheduling/internal/doctor"
	"github.com/hackgods/doctor-queue-scheduling/internal/metrics"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentNoShow      = "APPOINTMENT_NO_SHOW"
)

// Doctors is the read-only view of the doctor directory the store needs.
type Doctors interface {
	Get(id string) (doctor.Doctor, error)
}

type Config struct {
	// Location interprets appointment dates and times.
	Location *time.Location
	// CancelNotice is how far ahead of the slot a patient may still cancel
	// or reschedule.
	CancelNotice time.Duration
}

// Store owns appointment records and the slot uniqueness index.
type Store struct {
	mu        sync.RWMutex
	byID      map[uuid.UUID]*Appointment
	occupied  map[SlotKey]uuid.UUID
	byPatient map[string][]uuid.UUID
	byDoctor  map[string][]uuid.UUID

	doctors Doctors
	locker  Locker
	clock   clock.Clock
	ids     clock.IDs
	cfg     Config
	repo    Repository
	metrics *metrics.Metrics
	log     zerolog.Logger
}

type Option func(*Store)

func WithLocker(l Locker) Option {
	return func(s *Store) { s.locker = l }
}

func WithRepository(repo Repository) Option {
	return func(s *Store) { s.repo = repo }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) { s.log = log }
}

func NewStore(doctors Doctors, clk clock.Clock, ids clock.IDs, cfg Config, opts ...Option) *Store {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.CancelNotice <= 0 {
		cfg.CancelNotice = 24 * time.Hour
	}
	s := &Store{
		byID:      make(map[uuid.UUID]*Appointment),
		occupied:  make(map[SlotKey]uuid.UUID),
		byPatient: make(map[string][]uuid.UUID),
		byDoctor:  make(map[string][]uuid.UUID),
		doctors:   doctors,
		locker:    NewLocalLocker(),
		clock:     clk,
		ids:       ids,
		cfg:       cfg,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book reserves a slot for a patient. Concurrent bookings of the same slot
// are serialized by the slot lock and the uniqueness index is checked and
// written in one critical section, so exactly one of them succeeds.
func (s *Store) Book(ctx context.Context, req BookRequest) (Appointment, error) {
	appt, err := s.book(ctx, req)
	s.metrics.ObserveAppointmentOp("book", err)
	return appt, err
}

func (s *Store) book(ctx context.Context, req BookRequest) (Appointment, error) {
	if err := validateBookRequest(req); err != nil {
		return Appointment{}, err
	}
	if err := s.checkSlot(req.DoctorID, req.Date, req.Time); err != nil {
		return Appointment{}, err
	}

	key := SlotKey{DoctorID: req.DoctorID, Date: req.Date, Time: req.Time}
	var created Appointment

	err := s.locker.WithSlotLock(ctx, key.String(), func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if _, taken := s.occupied[key]; taken {
			return ErrSlotConflict
		}

		now := s.clock.Now()
		appt := &Appointment{
			ID:        s.ids.NewAppointmentID(),
			PatientID: req.PatientID,
			DoctorID:  req.DoctorID,
			Date:      req.Date,
			Time:      req.Time,
			Reason:    strings.TrimSpace(req.Reason),
			Status:    StatusScheduled,
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		}
		s.insertLocked(appt)
		created = *appt
		return nil
	})
	if err != nil {
		return Appointment{}, err
	}

	s.persist(ctx, created)
	s.logEvent(ctx, created.ID, EventAppointmentBooked, map[string]any{
		"doctor_id":  created.DoctorID,
		"patient_id": created.PatientID,
		"date":       created.Date.String(),
		"time":       created.Time.String(),
	})
	return created, nil
}

// checkSlot validates a prospective slot against one snapshot of the doctor.
func (s *Store) checkSlot(doctorID string, date calendar.Date, tod calendar.TimeOfDay) error {
	doc, err := s.doctors.Get(doctorID)
	if err != nil {
		return err
	}
	if !doc.Active || !doc.WorksOn(date.Weekday()) {
		return apperr.With(doctor.ErrDoctorUnavailable, "doctor %s is not available on %s", doctorID, date.Weekday())
	}
	if !doc.HasSlotAt(tod) {
		return ErrOutsideAvailability
	}
	if !date.At(tod, s.cfg.Location).After(s.clock.Now()) {
		return ErrSlotInPast
	}
	return nil
}

// Cancel lets the owning patient cancel a scheduled appointment while more
// than the configured notice remains before the slot.
func (s *Store) Cancel(ctx context.Context, id uuid.UUID, byPatientID string) (Appointment, error) {
	appt, err := s.cancel(ctx, id, byPatientID)
	s.metrics.ObserveAppointmentOp("cancel", err)
	return appt, err
}

func (s *Store) cancel(ctx context.Context, id uuid.UUID, byPatientID string) (Appointment, error) {
	current, err := s.Get(id)
	if err != nil {
		return Appointment{}, err
	}

	var updated Appointment
	err = s.locker.WithSlotLock(ctx, current.Slot().String(), func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		appt, ok := s.byID[id]
		if !ok {
			return ErrAppointmentNotFound
		}
		if err := s.checkPatientChangeLocked(appt, byPatientID); err != nil {
			return err
		}

		delete(s.occupied, appt.Slot())
		s.setStatusLocked(appt, StatusCancelled)
		updated = *appt
		return nil
	})
	if err != nil {
		return Appointment{}, err
	}

	s.persist(ctx, updated)
	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{
		"patient_id": byPatientID,
	})
	return updated, nil
}

// Reschedule moves a scheduled appointment to another slot of the same
// doctor. The old slot is released and the new one taken in one step.
func (s *Store) Reschedule(ctx context.Context, id uuid.UUID, byPatientID string, date calendar.Date, tod calendar.TimeOfDay) (Appointment, error) {
	appt, err := s.reschedule(ctx, id, byPatientID, date, tod)
	s.metrics.ObserveAppointmentOp("reschedule", err)
	return appt, err
}

func (s *Store) reschedule(ctx context.Context, id uuid.UUID, byPatientID string, date calendar.Date, tod calendar.TimeOfDay) (Appointment, error) {
	if date.IsZero() {
		return Appointment{}, apperr.Invalid("date is required")
	}
	current, err := s.Get(id)
	if err != nil {
		return Appointment{}, err
	}
	oldKey := current.Slot()
	newKey := SlotKey{DoctorID: current.DoctorID, Date: date, Time: tod}
	if oldKey == newKey {
		return Appointment{}, apperr.Invalid("appointment is already at %s %s", date, tod)
	}
	if err := s.checkSlot(current.DoctorID, date, tod); err != nil {
		return Appointment{}, err
	}

	var updated Appointment
	err = withSlotLocks(ctx, s.locker, []string{oldKey.String(), newKey.String()}, func(context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		appt, ok := s.byID[id]
		if !ok {
			return ErrAppointmentNotFound
		}
		if err := s.checkPatientChangeLocked(appt, byPatientID); err != nil {
			return err
		}
		if _, taken := s.occupied[newKey]; taken {
			return ErrSlotConflict
		}

		delete(s.occupied, appt.Slot())
		appt.Date = date
		appt.Time = tod
		s.occupied[newKey] = appt.ID
		appt.UpdatedAt = s.clock.Now()
		appt.Version++
		updated = *appt
		return nil
	})
	if err != nil {
		return Appointment{}, err
	}

	s.persist(ctx, updated)
	s.logEvent(ctx, updated.ID, EventAppointmentRescheduled, map[string]any{
		"from": oldKey.Date.String() + " " + oldKey.Time.String(),
		"to":   newKey.Date.String() + " " + newKey.Time.String(),
	})
	return updated, nil
}

// checkPatientChangeLocked applies the rules shared by cancel and reschedule:
// ownership, SCHEDULED status and the notice period, in that order.
func (s *Store) checkPatientChangeLocked(appt *Appointment, byPatientID string) error {
	if appt.PatientID != byPatientID {
		return ErrNotOwner
	}
	if appt.Status != StatusScheduled {
		return apperr.With(ErrInvalidState, "appointment is %s", appt.Status)
	}
	remaining := appt.StartsAt(s.cfg.Location).Sub(s.clock.Now())
	if remaining <= s.cfg.CancelNotice {
		return apperr.With(ErrTooLate, "appointments can only be changed more than %s before the slot", s.cfg.CancelNotice)
	}
	return nil
}

// MarkCompleted records that a scheduled appointment took place. It is only
// allowed once the slot time has been reached.
func (s *Store) MarkCompleted(ctx context.Context, id uuid.UUID) (Appointment, error) {
	appt, err := s.finish(ctx, id, StatusCompleted, 0)
	s.metrics.ObserveAppointmentOp("complete", err)
	return appt, err
}

// MarkNoShow records that the patient did not attend. The slot is released.
func (s *Store) MarkNoShow(ctx context.Context, id uuid.UUID) (Appointment, error) {
	appt, err := s.finish(ctx, id, StatusNoShow, 0)
	s.metrics.ObserveAppointmentOp("no_show", err)
	return appt, err
}

func (s *Store) finish(ctx context.Context, id uuid.UUID, to Status, grace time.Duration) (Appointment, error) {
	s.mu.Lock()
	appt, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return Appointment{}, ErrAppointmentNotFound
	}
	if appt.Status != StatusScheduled {
		status := appt.Status
		s.mu.Unlock()
		return Appointment{}, apperr.With(ErrInvalidState, "appointment is %s", status)
	}
	if s.clock.Now().Before(appt.StartsAt(s.cfg.Location).Add(grace)) {
		s.mu.Unlock()
		return Appointment{}, apperr.With(ErrInvalidState, "appointment time has not been reached")
	}
	if !to.occupiesSlot() {
		delete(s.occupied, appt.Slot())
	}
	s.setStatusLocked(appt, to)
	updated := *appt
	s.mu.Unlock()

	event := EventAppointmentCompleted
	if to == StatusNoShow {
		event = EventAppointmentNoShow
	}
	s.persist(ctx, updated)
	s.logEvent(ctx, updated.ID, event, map[string]any{})
	return updated, nil
}

// SweepNoShows marks every scheduled appointment whose slot started more
// than grace ago as NO_SHOW and returns how many were changed.
func (s *Store) SweepNoShows(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-grace)

	s.mu.RLock()
	var candidates []uuid.UUID
	for id, appt := range s.byID {
		if appt.Status == StatusScheduled && !appt.StartsAt(s.cfg.Location).After(cutoff) {
			candidates = append(candidates, id)
		}
	}
	s.mu.RUnlock()

	swept := 0
	for _, id := range candidates {
		if err := ctx.Err(); err != nil {
			return swept, err
		}
		_, err := s.finish(ctx, id, StatusNoShow, grace)
		if err != nil {
			// completed or cancelled since the scan
			if errors.Is(err, ErrInvalidState) {
				continue
			}
			return swept, fmt.Errorf("mark no-show %s: %w", id, err)
		}
		s.metrics.ObserveAppointmentOp("no_show", nil)
		swept++
	}
	return swept, nil
}

func (s *Store) Get(id uuid.UUID) (Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	appt, ok := s.byID[id]
	if !ok {
		return Appointment{}, ErrAppointmentNotFound
	}
	return *appt, nil
}

// ListByPatient returns the patient's appointments in listing order:
// SCHEDULED first, then historical ones, each group by date, time,
// creation time and id.
func (s *Store) ListByPatient(patientID string, page Page) []Appointment {
	return s.list(s.byPatient, patientID, page)
}

// ListByDoctor uses the same ordering as ListByPatient.
func (s *Store) ListByDoctor(doctorID string, page Page) []Appointment {
	return s.list(s.byDoctor, doctorID, page)
}

func (s *Store) list(index map[string][]uuid.UUID, key string, page Page) []Appointment {
	page = page.Normalize()

	s.mu.RLock()
	ids := index[key]
	out := make([]Appointment, 0, len(ids))
	for _, id := range ids {
		out = append(out, *s.byID[id])
	}
	s.mu.RUnlock()

	slices.SortFunc(out, listingOrder)

	if page.Offset >= len(out) {
		return []Appointment{}
	}
	end := min(page.Offset+page.Limit, len(out))
	return out[page.Offset:end]
}

// ListByDoctorOn returns the doctor's non-cancelled appointments on date,
// ordered by time.
func (s *Store) ListByDoctorOn(doctorID string, date calendar.Date) []Appointment {
	s.mu.RLock()
	var out []Appointment
	for _, id := range s.byDoctor[doctorID] {
		appt := s.byID[id]
		if appt.Date == date && appt.Status != StatusCancelled {
			out = append(out, *appt)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Appointment) int {
		if a.Time != b.Time {
			return int(a.Time) - int(b.Time)
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out
}

// CountScheduledForDoctor returns how many appointments still await the doctor.
func (s *Store) CountScheduledForDoctor(doctorID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, id := range s.byDoctor[doctorID] {
		if s.byID[id].Status == StatusScheduled {
			n++
		}
	}
	return n
}

func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := Counts{Total: len(s.byID), Patients: len(s.byPatient)}
	for _, appt := range s.byID {
		switch appt.Status {
		case StatusScheduled:
			c.Scheduled++
		case StatusCompleted:
			c.Completed++
		case StatusCancelled:
			c.Cancelled++
		case StatusNoShow:
			c.NoShow++
		}
	}
	return c
}

// Restore replaces the in-memory state with persisted records and rebuilds
// the indexes.
func (s *Store) Restore(appts []Appointment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID = make(map[uuid.UUID]*Appointment, len(appts))
	s.occupied = make(map[SlotKey]uuid.UUID)
	s.byPatient = make(map[string][]uuid.UUID)
	s.byDoctor = make(map[string][]uuid.UUID)
	for i := range appts {
		appt := appts[i]
		s.insertLocked(&appt)
	}
}

func (s *Store) Load(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	appts, err := s.repo.ListAppointments(ctx)
	if err != nil {
		return fmt.Errorf("load appointments: %w", err)
	}
	s.Restore(appts)
	s.log.Info().Int("count", len(appts)).Msg("appointments restored")
	return nil
}

func (s *Store) insertLocked(appt *Appointment) {
	s.byID[appt.ID] = appt
	if appt.Status.occupiesSlot() {
		s.occupied[appt.Slot()] = appt.ID
	}
	s.byPatient[appt.PatientID] = append(s.byPatient[appt.PatientID], appt.ID)
	s.byDoctor[appt.DoctorID] = append(s.byDoctor[appt.DoctorID], appt.ID)
}

func (s *Store) setStatusLocked(appt *Appointment, to Status) {
	appt.Status = to
	appt.UpdatedAt = s.clock.Now()
	appt.Version++
}

func (s *Store) persist(ctx context.Context, appt Appointment) {
	if s.repo == nil {
		return
	}
	if err := s.repo.UpsertAppointment(ctx, appt); err != nil {
		s.metrics.PersistFailed("appointment")
		s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Int64("version", appt.Version).Msg("failed to persist appointment")
	}
}

func (s *Store) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	if s.repo == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("event", eventType).Str("appointment_id", appointmentID.String()).Msg("failed to insert event log")
	}
}

func listingOrder(a, b Appointment) int {
	aSched, bSched := a.Status == StatusScheduled, b.Status == StatusScheduled
	if aSched != bSched {
		if aSched {
			return -1
		}
		return 1
	}
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	if a.Time != b.Time {
		return int(a.Time) - int(b.Time)
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}

func validateBookRequest(req BookRequest) error {
	var problems []string
	if strings.TrimSpace(req.PatientID) == "" {
		problems = append(problems, "patientId is required")
	}
	if strings.TrimSpace(req.DoctorID) == "" {
		problems = append(problems, "doctorId is required")
	}
	if req.Date.IsZero() {
		problems = append(problems, "date is required")
	}
	if len(req.Reason) > 500 {
		problems = append(problems, "reason must be at most 500 characters")
	}
	if len(problems) > 0 {
		return apperr.Invalid("%s", strings.Join(problems, "; "))
	}
	return nil
}
