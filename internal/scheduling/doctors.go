package scheduling

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/doctor-queue-scheduling/internal/appointment"
	"github.com/hackgods/doctor-queue-scheduling/internal/apperr"
	"github.com/hackgods/doctor-queue-scheduling/internal/calendar"
	"github.com/hackgods/doctor-queue-scheduling/internal/doctor"
)

func (s *Service) RegisterDoctor(ctx context.Context, c Caller, in DoctorInput) (doc doctor.Doctor, err error) {
	ctx, span := startSpan(ctx, "register_doctor", c)
	defer func() { endSpan(span, err) }()

	if err := c.requireAdmin(); err != nil {
		return doctor.Doctor{}, err
	}
	if err := validateInput(s.validate, in); err != nil {
		return doctor.Doctor{}, err
	}
	d, err := in.toDoctor()
	if err != nil {
		return doctor.Doctor{}, err
	}
	doc, err = s.doctors.Register(ctx, d)
	if err != nil {
		return doctor.Doctor{}, err
	}
	s.log.Info().Str("doctor_id", doc.ID).Str("caller_id", c.ID).Msg("doctor registered")
	return doc, nil
}

func (s *Service) UpdateDoctor(ctx context.Context, c Caller, doctorID string, in DoctorPatchInput) (doc doctor.Doctor, err error) {
	ctx, span := startSpan(ctx, "update_doctor", c)
	defer func() { endSpan(span, err) }()

	if err := c.requireAdmin(); err != nil {
		return doctor.Doctor{}, err
	}
	if err := validateInput(s.validate, in); err != nil {
		return doctor.Doctor{}, err
	}
	patch, err := in.toPatch()
	if err != nil {
		return doctor.Doctor{}, err
	}
	return s.doctors.Update(ctx, doctorID, patch)
}

// DeactivateResult reports what is still outstanding for a deactivated
// doctor. Those appointments and queue entries stay valid until resolved.
type DeactivateResult struct {
	Doctor                doctor.Doctor
	ScheduledAppointments int
	ActiveQueueEntries    int
}

func (s *Service) DeactivateDoctor(ctx context.Context, c Caller, doctorID string) (res DeactivateResult, err error) {
	ctx, span := startSpan(ctx, "deactivate_doctor", c)
	defer func() { endSpan(span, err) }()

	if err := c.requireAdmin(); err != nil {
		return DeactivateResult{}, err
	}
	doc, err := s.doctors.Deactivate(ctx, doctorID)
	if err != nil {
		return DeactivateResult{}, err
	}
	res = DeactivateResult{
		Doctor:                doc,
		ScheduledAppointments: s.appointments.CountScheduledForDoctor(doctorID),
		ActiveQueueEntries:    s.queue.CountActive(doctorID),
	}
	s.log.Info().
		Str("doctor_id", doctorID).
		Int("scheduled_appointments", res.ScheduledAppointments).
		Int("active_queue_entries", res.ActiveQueueEntries).
		Msg("doctor deactivated")
	return res, nil
}

func (s *Service) ReactivateDoctor(ctx context.Context, c Caller, doctorID string) (doc doctor.Doctor, err error) {
	ctx, span := startSpan(ctx, "reactivate_doctor", c)
	defer func() { endSpan(span, err) }()

	if err := c.requireAdmin(); err != nil {
		return doctor.Doctor{}, err
	}
	return s.doctors.Reactivate(ctx, doctorID)
}

func (s *Service) GetDoctor(ctx context.Context, doctorID string) (doctor.Doctor, error) {
	_, span := startSpan(ctx, "get_doctor", Caller{})
	doc, err := s.doctors.Get(doctorID)
	endSpan(span, err)
	return doc, err
}

func (s *Service) ListDoctors(ctx context.Context, f doctor.Filter) []doctor.Doctor {
	_, span := startSpan(ctx, "list_doctors", Caller{})
	defer span.End()

	docs := s.doctors.List(f)
	span.SetAttributes(attribute.Int("count", len(docs)))
	return docs
}

// Availability describes a doctor's day: whether it is a working day, the
// configured time slots and which slot times are already taken.
type Availability struct {
	DoctorID  string
	Date      calendar.Date
	Available bool
	Slots     []calendar.TimeRange
	Booked    []calendar.TimeOfDay
}

func (s *Service) DoctorAvailability(ctx context.Context, doctorID string, date calendar.Date) (out Availability, err error) {
	_, span := startSpan(ctx, "doctor_availability", Caller{})
	defer func() { endSpan(span, err) }()

	if date.IsZero() {
		return Availability{}, apperr.Invalid("date is required")
	}
	doc, err := s.doctors.Get(doctorID)
	if err != nil {
		return Availability{}, err
	}
	out = Availability{
		DoctorID:  doctorID,
		Date:      date,
		Available: s.doctors.IsAvailable(doctorID, date),
		Slots:     doc.AvailableTimeSlots,
		Booked:    []calendar.TimeOfDay{},
	}
	for _, appt := range s.appointments.ListByDoctorOn(doctorID, date) {
		if appt.Status == appointment.StatusScheduled || appt.Status == appointment.StatusCompleted {
			out.Booked = append(out.Booked, appt.Time)
		}
	}
	return out, nil
}
