package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/doctor-queue-scheduling/internal/apperr"
	"github.com/hackgods/doctor-queue-scheduling/internal/doctor"
	"github.com/hackgods/doctor-queue-scheduling/internal/events"
	"github.com/hackgods/doctor-queue-scheduling/internal/queue"
)

// Ticket is what a patient gets back on joining a queue.
type Ticket struct {
	Entry         queue.Entry
	Position      int
	EstimatedWait time.Duration
}

// JoinQueue adds the patient to the doctor's queue. The doctor must exist
// and work today.
func (s *Service) JoinQueue(ctx context.Context, c Caller, in JoinQueueInput) (t Ticket, err error) {
	ctx, span := startSpan(ctx, "join_queue", c)
	defer func() { endSpan(span, err) }()

	if err := c.requirePatient(in.PatientID); err != nil {
		return Ticket{}, err
	}
	if err := validateInput(s.validate, in); err != nil {
		return Ticket{}, err
	}
	if _, err := s.doctors.Get(in.DoctorID); err != nil {
		return Ticket{}, err
	}
	today := s.Today()
	if !s.doctors.IsAvailable(in.DoctorID, today) {
		return Ticket{}, doctorUnavailableOn(in.DoctorID, today.Weekday())
	}

	entry, err := s.queue.Join(ctx, in.PatientID, in.DoctorID)
	if err != nil {
		return Ticket{}, err
	}
	t = Ticket{Entry: entry}
	// the patient may already have moved on by the time we read it back
	if pos, err := s.queue.PositionOf(in.PatientID); err == nil && pos.EntryID == entry.ID {
		t.Position = pos.Position
		t.EstimatedWait = pos.EstimatedWait
	}
	span.SetAttributes(attribute.Int("queue.position", t.Position))
	s.publish(ctx, events.QueueJoined, entry)
	return t, nil
}

func doctorUnavailableOn(doctorID string, day time.Weekday) error {
	return apperr.With(doctor.ErrDoctorUnavailable, "doctor %s is not available on %s", doctorID, day)
}

func (s *Service) LeaveQueue(ctx context.Context, c Caller, patientID string) (entry queue.Entry, err error) {
	ctx, span := startSpan(ctx, "leave_queue", c)
	defer func() { endSpan(span, err) }()

	if err := c.requirePatient(patientID); err != nil {
		return queue.Entry{}, err
	}
	entry, err = s.queue.Leave(ctx, patientID)
	if err != nil {
		return queue.Entry{}, err
	}
	s.publish(ctx, events.QueueLeft, entry)
	return entry, nil
}

// RemoveQueueEntry ends an entry on behalf of the doctor or an admin.
func (s *Service) RemoveQueueEntry(ctx context.Context, c Caller, entryID uuid.UUID) (entry queue.Entry, err error) {
	ctx, span := startSpan(ctx, "remove_queue_entry", c)
	defer func() { endSpan(span, err) }()

	if !c.valid() || c.Role == RolePatient {
		return queue.Entry{}, ErrForbidden
	}
	current, err := s.queue.Get(entryID)
	if err != nil {
		return queue.Entry{}, err
	}
	if err := c.requireDoctor(current.DoctorID); err != nil {
		return queue.Entry{}, err
	}
	entry, err = s.queue.Remove(ctx, entryID)
	if err != nil {
		return queue.Entry{}, err
	}
	s.log.Info().Str("entry_id", entryID.String()).Str("caller_id", c.ID).Msg("queue entry removed")
	s.publish(ctx, events.QueueRemoved, entry)
	return entry, nil
}

// AdvanceQueue starts the next consultation. The bool is false when nobody
// is waiting.
func (s *Service) AdvanceQueue(ctx context.Context, c Caller, doctorID string) (entry queue.Entry, ok bool, err error) {
	ctx, span := startSpan(ctx, "advance_queue", c)
	defer func() { endSpan(span, err) }()

	if err := c.requireDoctor(doctorID); err != nil {
		return queue.Entry{}, false, err
	}
	if _, err := s.doctors.Get(doctorID); err != nil {
		return queue.Entry{}, false, err
	}
	entry, ok, err = s.queue.Advance(ctx, doctorID)
	if err != nil || !ok {
		return queue.Entry{}, false, err
	}
	s.publish(ctx, events.QueueAdvanced, entry)
	return entry, true, nil
}

func (s *Service) CompleteConsultation(ctx context.Context, c Caller, doctorID string) (entry queue.Entry, err error) {
	ctx, span := startSpan(ctx, "complete_consultation", c)
	defer func() { endSpan(span, err) }()

	if err := c.requireDoctor(doctorID); err != nil {
		return queue.Entry{}, err
	}
	if _, err := s.doctors.Get(doctorID); err != nil {
		return queue.Entry{}, err
	}
	entry, err = s.queue.Complete(ctx, doctorID)
	if err != nil {
		return queue.Entry{}, err
	}
	s.publish(ctx, events.QueueCompleted, entry)
	return entry, nil
}

func (s *Service) QueuePosition(ctx context.Context, c Caller, patientID string) (pos queue.Position, err error) {
	_, span := startSpan(ctx, "queue_position", c)
	defer func() { endSpan(span, err) }()

	if err := c.requirePatient(patientID); err != nil {
		return queue.Position{}, err
	}
	return s.queue.PositionOf(patientID)
}

// QueueStatus is a doctor's queue summary. Waiting is only filled in for the
// doctor and admins.
type QueueStatus struct {
	queue.Summary
	Waiting []queue.Entry
}

func (s *Service) QueueStatus(ctx context.Context, c Caller, doctorID string) (out QueueStatus, err error) {
	_, span := startSpan(ctx, "queue_status", c)
	defer func() { endSpan(span, err) }()

	if _, err := s.doctors.Get(doctorID); err != nil {
		return QueueStatus{}, err
	}
	out.Summary = s.queue.StatusOf(doctorID)
	if c.requireDoctor(doctorID) == nil {
		out.Waiting = s.queue.Waiting(doctorID)
	}
	return out, nil
}

func (s *Service) QueueOverview(ctx context.Context, c Caller) (out []queue.Summary, err error) {
	_, span := startSpan(ctx, "queue_overview", c)
	defer func() { endSpan(span, err) }()

	if err := c.requireAdmin(); err != nil {
		return nil, err
	}
	return s.queue.Overview(), nil
}

// publish notifies watchers after a committed queue change. Failures are
// logged; the change itself already happened.
func (s *Service) publish(ctx context.Context, eventType string, entry queue.Entry) {
	ev := events.Event{
		Type:         eventType,
		DoctorID:     entry.DoctorID,
		PatientID:    entry.PatientID,
		EntryID:      entry.ID.String(),
		WaitingCount: s.queue.StatusOf(entry.DoctorID).WaitingCount,
		At:           s.clock.Now(),
	}
	err := s.events.Publish(ctx, ev)
	s.metrics.ObservePublish("queue_events", err)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Str("doctor_id", entry.DoctorID).Msg("failed to publish queue event")
	}
}
