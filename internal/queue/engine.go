// Package queue implements the per-doctor waiting lists: FIFO admission,
// a single consultation in flight per doctor, and at most one active
// membership per patient across every doctor.
package queue

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-queue-scheduling/internal/apperr"
	"github.com/hackgods/doctor-queue-scheduling/internal/clock"
	"github.com/hackgods/doctor-queue-scheduling/internal/doctor"
	"github.com/hackgods/doctor-queue-scheduling/internal/metrics"
)

const DefaultConsultation = 15 * time.Minute

// Doctors reports whether a doctor currently accepts queue joins.
type Doctors interface {
	IsActive(id string) bool
}

type Config struct {
	// DefaultConsultation is the average used until a doctor has a sample.
	DefaultConsultation time.Duration
	// Alpha weights the newest sample in the moving average, in (0, 1].
	Alpha float64
}

// Engine owns every queue entry. Each doctor's queue has its own lock; the
// membership registry is only ever locked while holding a doctor lock, or
// on its own, never the other way round.
type Engine struct {
	mu     sync.RWMutex
	queues map[string]*doctorQueue

	members *registry

	doctors Doctors
	clock   clock.Clock
	ids     clock.IDs
	cfg     Config
	repo    Repository
	metrics *metrics.Metrics
	log     zerolog.Logger
}

type doctorQueue struct {
	mu         sync.RWMutex
	id         string
	waiting    *order
	inProgress *Entry
	stats      consultationStats
	seq        uint64
}

type Option func(*Engine)

func WithRepository(repo Repository) Option {
	return func(e *Engine) { e.repo = repo }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func NewEngine(doctors Doctors, clk clock.Clock, ids clock.IDs, cfg Config, opts ...Option) *Engine {
	if cfg.DefaultConsultation <= 0 {
		cfg.DefaultConsultation = DefaultConsultation
	}
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = 0.3
	}
	e := &Engine{
		queues:  make(map[string]*doctorQueue),
		members: newRegistry(),
		doctors: doctors,
		clock:   clk,
		ids:     ids,
		cfg:     cfg,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) queue(doctorID string) *doctorQueue {
	e.mu.RLock()
	q, ok := e.queues[doctorID]
	e.mu.RUnlock()
	if ok {
		return q
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if q, ok := e.queues[doctorID]; ok {
		return q
	}
	q = &doctorQueue{id: doctorID, waiting: newOrder()}
	e.queues[doctorID] = q
	return q
}

func (e *Engine) lookupQueue(doctorID string) (*doctorQueue, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	q, ok := e.queues[doctorID]
	return q, ok
}

// Join appends the patient to the tail of the doctor's queue.
func (e *Engine) Join(ctx context.Context, patientID, doctorID string) (Entry, error) {
	entry, err := e.join(patientID, doctorID)
	e.metrics.ObserveQueueOp("join", err)
	if err != nil {
		return Entry{}, err
	}
	e.persist(ctx, entry)
	return entry, nil
}

func (e *Engine) join(patientID, doctorID string) (Entry, error) {
	if patientID == "" || doctorID == "" {
		return Entry{}, apperr.Invalid("patientId and doctorId are required")
	}
	if !e.doctors.IsActive(doctorID) {
		return Entry{}, doctor.ErrDoctorUnavailable
	}

	q := e.queue(doctorID)
	q.mu.Lock()
	defer q.mu.Unlock()

	now := e.clock.Now()
	q.seq++
	entry := &Entry{
		ID:        e.ids.NewEntryID(),
		PatientID: patientID,
		DoctorID:  doctorID,
		JoinedAt:  now,
		Seq:       q.seq,
		Status:    StatusWaiting,
		Version:   1,
	}
	if !e.members.bind(patientID, doctorID, entry.ID) {
		q.seq--
		return Entry{}, ErrAlreadyQueued
	}
	q.waiting.push(entry)
	e.metrics.SetWaiting(doctorID, q.waiting.len())
	return *entry, nil
}

// Leave ends the patient's active membership, waiting or in consultation.
// Entries behind a waiting patient move up by one.
func (e *Engine) Leave(ctx context.Context, patientID string) (Entry, error) {
	entry, err := e.leave(func() (membership, bool) { return e.members.byPatient(patientID) }, ErrNotQueued)
	e.metrics.ObserveQueueOp("leave", err)
	if err != nil {
		return Entry{}, err
	}
	e.persist(ctx, entry)
	return entry, nil
}

// Remove ends an active entry by id. Used for admin removal.
func (e *Engine) Remove(ctx context.Context, entryID uuid.UUID) (Entry, error) {
	entry, err := e.leave(func() (membership, bool) { return e.members.byEntry(entryID) }, ErrEntryNotFound)
	e.metrics.ObserveQueueOp("remove", err)
	if err != nil {
		return Entry{}, err
	}
	e.persist(ctx, entry)
	return entry, nil
}

func (e *Engine) leave(lookup func() (membership, bool), notFound error) (Entry, error) {
	for {
		m, ok := lookup()
		if !ok {
			return Entry{}, notFound
		}
		q, ok := e.lookupQueue(m.doctorID)
		if !ok {
			return Entry{}, notFound
		}

		q.mu.Lock()
		// the membership may have ended or moved before we got the lock
		if cur, ok := lookup(); !ok || cur != m {
			q.mu.Unlock()
			continue
		}

		var entry *Entry
		if w, ok := q.waiting.remove(m.entryID); ok {
			entry = w
		} else if q.inProgress != nil && q.inProgress.ID == m.entryID {
			entry = q.inProgress
			q.inProgress = nil
		} else {
			q.mu.Unlock()
			return Entry{}, fmt.Errorf("membership of %s points at missing entry %s", m.patientID, m.entryID)
		}

		e.finishLocked(entry, StatusLeft)
		e.members.release(m)
		e.metrics.SetWaiting(q.id, q.waiting.len())
		out := *entry
		q.mu.Unlock()
		return out, nil
	}
}

// Advance promotes the head of the doctor's queue to IN_PROGRESS. The bool
// is false when nobody is waiting.
func (e *Engine) Advance(ctx context.Context, doctorID string) (Entry, bool, error) {
	entry, ok, err := e.advance(doctorID)
	e.metrics.ObserveQueueOp("advance", err)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	e.persist(ctx, entry)
	return entry, true, nil
}

func (e *Engine) advance(doctorID string) (Entry, bool, error) {
	q, ok := e.lookupQueue(doctorID)
	if !ok {
		return Entry{}, false, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inProgress != nil {
		return Entry{}, false, ErrAlreadyInProgress
	}
	head := q.waiting.head()
	if head == nil {
		return Entry{}, false, nil
	}
	q.waiting.remove(head.ID)

	head.Status = StatusInProgress
	head.StartedAt = e.clock.Now()
	head.Version++
	q.inProgress = head
	e.metrics.SetWaiting(doctorID, q.waiting.len())
	return *head, true, nil
}

// Complete finishes the doctor's consultation and feeds its duration into
// the doctor's average.
func (e *Engine) Complete(ctx context.Context, doctorID string) (Entry, error) {
	entry, stats, updated, err := e.complete(doctorID)
	e.metrics.ObserveQueueOp("complete", err)
	if err != nil {
		return Entry{}, err
	}
	e.persist(ctx, entry)
	if updated {
		e.metrics.ObserveConsultation(entry.EndedAt.Sub(entry.StartedAt))
		e.persistStats(ctx, stats)
	}
	return entry, nil
}

func (e *Engine) complete(doctorID string) (Entry, Stats, bool, error) {
	q, ok := e.lookupQueue(doctorID)
	if !ok {
		return Entry{}, Stats{}, false, ErrNoActiveConsultation
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	entry := q.inProgress
	if entry == nil {
		return Entry{}, Stats{}, false, ErrNoActiveConsultation
	}
	q.inProgress = nil
	e.finishLocked(entry, StatusDone)
	e.members.release(membership{patientID: entry.PatientID, doctorID: doctorID, entryID: entry.ID})

	updated := q.stats.observe(entry.EndedAt.Sub(entry.StartedAt), entry.EndedAt, e.cfg.Alpha)
	return *entry, q.stats.snapshot(doctorID), updated, nil
}

func (e *Engine) finishLocked(entry *Entry, to Status) {
	entry.Status = to
	entry.EndedAt = e.clock.Now()
	entry.Version++
}

// PositionOf reports where the patient stands and the estimated wait.
func (e *Engine) PositionOf(patientID string) (Position, error) {
	m, ok := e.members.byPatient(patientID)
	if !ok {
		return Position{}, ErrNotQueued
	}
	q, ok := e.lookupQueue(m.doctorID)
	if !ok {
		return Position{}, ErrNotQueued
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.inProgress != nil && q.inProgress.ID == m.entryID {
		return Position{DoctorID: m.doctorID, EntryID: m.entryID, Status: StatusInProgress}, nil
	}
	pos, ok := q.waiting.position(m.entryID)
	if !ok {
		// ended between the registry read and the queue lock
		return Position{}, ErrNotQueued
	}
	return Position{
		DoctorID:      m.doctorID,
		EntryID:       m.entryID,
		Status:        StatusWaiting,
		Position:      pos,
		EstimatedWait: waitFor(pos, q.stats.averageOr(e.cfg.DefaultConsultation)),
	}, nil
}

// EstimatedWait is (position-1) times the doctor's average consultation time.
func (e *Engine) EstimatedWait(doctorID string, position int) time.Duration {
	return waitFor(position, e.AverageConsultation(doctorID))
}

func (e *Engine) AverageConsultation(doctorID string) time.Duration {
	q, ok := e.lookupQueue(doctorID)
	if !ok {
		return e.cfg.DefaultConsultation
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.stats.averageOr(e.cfg.DefaultConsultation)
}

func waitFor(position int, avg time.Duration) time.Duration {
	if position <= 1 {
		return 0
	}
	return time.Duration(position-1) * avg
}

func (e *Engine) StatusOf(doctorID string) Summary {
	q, ok := e.lookupQueue(doctorID)
	if !ok {
		return Summary{DoctorID: doctorID, AverageConsultation: e.cfg.DefaultConsultation}
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	return e.summaryLocked(q)
}

func (e *Engine) summaryLocked(q *doctorQueue) Summary {
	s := Summary{
		DoctorID:            q.id,
		WaitingCount:        q.waiting.len(),
		AverageConsultation: q.stats.averageOr(e.cfg.DefaultConsultation),
		Samples:             q.stats.samples,
		AverageUpdatedAt:    q.stats.updatedAt,
	}
	if q.inProgress != nil {
		cp := *q.inProgress
		s.InProgress = &cp
	}
	if head := q.waiting.head(); head != nil {
		cp := *head
		s.Next = &cp
	}
	return s
}

// Waiting returns the doctor's waiting entries in queue order.
func (e *Engine) Waiting(doctorID string) []Entry {
	q, ok := e.lookupQueue(doctorID)
	if !ok {
		return []Entry{}
	}
	q.mu.RLock()
	defer q.mu.RUnlock()

	waiting := q.waiting.entries()
	out := make([]Entry, len(waiting))
	for i, w := range waiting {
		out[i] = *w
	}
	return out
}

// Overview summarizes every doctor whose queue has had any activity,
// ordered by doctor id.
func (e *Engine) Overview() []Summary {
	e.mu.RLock()
	queues := make([]*doctorQueue, 0, len(e.queues))
	for _, q := range e.queues {
		queues = append(queues, q)
	}
	e.mu.RUnlock()

	out := make([]Summary, 0, len(queues))
	for _, q := range queues {
		q.mu.RLock()
		out = append(out, e.summaryLocked(q))
		q.mu.RUnlock()
	}
	slices.SortFunc(out, func(a, b Summary) int { return cmp.Compare(a.DoctorID, b.DoctorID) })
	return out
}

// CountActive returns the doctor's waiting entries plus the one in consultation.
func (e *Engine) CountActive(doctorID string) int {
	q, ok := e.lookupQueue(doctorID)
	if !ok {
		return 0
	}
	q.mu.RLock()
	defer q.mu.RUnlock()

	n := q.waiting.len()
	if q.inProgress != nil {
		n++
	}
	return n
}

// Get returns an active entry.
func (e *Engine) Get(entryID uuid.UUID) (Entry, error) {
	m, ok := e.members.byEntry(entryID)
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	q, ok := e.lookupQueue(m.doctorID)
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	q.mu.RLock()
	defer q.mu.RUnlock()

	if w, ok := q.waiting.get(entryID); ok {
		return *w, nil
	}
	if q.inProgress != nil && q.inProgress.ID == entryID {
		return *q.inProgress, nil
	}
	return Entry{}, ErrEntryNotFound
}

// ActiveCount returns the number of patients currently queued or in consultation.
func (e *Engine) ActiveCount() int {
	return e.members.count()
}

// Restore rebuilds the queues from persisted active entries and averages.
// Entries are ordered by (JoinedAt, Seq); terminal entries are ignored.
func (e *Engine) Restore(entries []Entry, stats []Stats) error {
	active := make([]Entry, 0, len(entries))
	for _, en := range entries {
		if en.Status.Active() {
			active = append(active, en)
		}
	}
	slices.SortFunc(active, func(a, b Entry) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})

	queues := make(map[string]*doctorQueue)
	members := newRegistry()
	get := func(id string) *doctorQueue {
		q, ok := queues[id]
		if !ok {
			q = &doctorQueue{id: id, waiting: newOrder()}
			queues[id] = q
		}
		return q
	}

	for i := range active {
		en := active[i]
		q := get(en.DoctorID)
		if !members.bind(en.PatientID, en.DoctorID, en.ID) {
			return fmt.Errorf("restore: patient %s has more than one active entry", en.PatientID)
		}
		q.seq = max(q.seq, en.Seq)
		switch en.Status {
		case StatusInProgress:
			if q.inProgress != nil {
				return fmt.Errorf("restore: doctor %s has more than one consultation in progress", en.DoctorID)
			}
			q.inProgress = &en
		default:
			q.waiting.push(&en)
		}
	}
	for _, s := range stats {
		q := get(s.DoctorID)
		q.stats = consultationStats{average: s.Average, samples: s.Samples, updatedAt: s.UpdatedAt, version: s.Version}
	}

	e.mu.Lock()
	e.queues = queues
	e.members.replace(members)
	e.mu.Unlock()

	for id, q := range queues {
		e.metrics.SetWaiting(id, q.waiting.len())
	}
	return nil
}

func (e *Engine) Load(ctx context.Context) error {
	if e.repo == nil {
		return nil
	}
	entries, err := e.repo.ListActiveEntries(ctx)
	if err != nil {
		return fmt.Errorf("load queue entries: %w", err)
	}
	stats, err := e.repo.ListStats(ctx)
	if err != nil {
		return fmt.Errorf("load consultation stats: %w", err)
	}
	if err := e.Restore(entries, stats); err != nil {
		return err
	}
	e.log.Info().Int("entries", len(entries)).Int("doctors", len(stats)).Msg("queues restored")
	return nil
}

func (e *Engine) persist(ctx context.Context, entry Entry) {
	if e.repo == nil {
		return
	}
	if err := e.repo.UpsertEntry(ctx, entry); err != nil {
		e.metrics.PersistFailed("queue_entry")
		e.log.Error().Err(err).Str("entry_id", entry.ID.String()).Int64("version", entry.Version).Msg("failed to persist queue entry")
	}
}

func (e *Engine) persistStats(ctx context.Context, s Stats) {
	if e.repo == nil {
		return
	}
	if err := e.repo.UpsertStats(ctx, s); err != nil {
		e.metrics.PersistFailed("consultation_stats")
		e.log.Error().Err(err).Str("doctor_id", s.DoctorID).Msg("failed to persist consultation stats")
	}
}
