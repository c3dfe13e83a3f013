package scheduling

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/doctor-queue-scheduling/internal/appointment"
	"github.com/hackgods/doctor-queue-scheduling/internal/apperr"
	"github.com/hackgods/doctor-queue-scheduling/internal/calendar"
)

func (s *Service) BookAppointment(ctx context.Context, c Caller, in BookAppointmentInput) (appt appointment.Appointment, err error) {
	ctx, span := startSpan(ctx, "book_appointment", c)
	defer func() { endSpan(span, err) }()

	if err := c.requirePatient(in.PatientID); err != nil {
		return appointment.Appointment{}, err
	}
	if err := validateInput(s.validate, in); err != nil {
		return appointment.Appointment{}, err
	}
	span.SetAttributes(
		attribute.String("doctor.id", in.DoctorID),
		attribute.String("slot", in.Date.String()+" "+in.Time.String()),
	)

	return s.appointments.Book(ctx, appointment.BookRequest{
		PatientID: in.PatientID,
		DoctorID:  in.DoctorID,
		Date:      in.Date,
		Time:      in.Time,
		Reason:    in.Reason,
	})
}

// owningPatient resolves on whose behalf a patient-side change is made.
// Admins act for the appointment's patient; patients act for themselves
// and the store rejects them if they do not own it.
func (s *Service) owningPatient(c Caller, id uuid.UUID) (string, error) {
	if !c.valid() {
		return "", ErrForbidden
	}
	switch c.Role {
	case RolePatient:
		return c.ID, nil
	case RoleAdmin:
		appt, err := s.appointments.Get(id)
		if err != nil {
			return "", err
		}
		return appt.PatientID, nil
	default:
		return "", apperr.With(ErrForbidden, "only the patient or an admin can change this appointment")
	}
}

func (s *Service) CancelAppointment(ctx context.Context, c Caller, id uuid.UUID) (appt appointment.Appointment, err error) {
	ctx, span := startSpan(ctx, "cancel_appointment", c)
	defer func() { endSpan(span, err) }()

	patientID, err := s.owningPatient(c, id)
	if err != nil {
		return appointment.Appointment{}, err
	}
	return s.appointments.Cancel(ctx, id, patientID)
}

func (s *Service) RescheduleAppointment(ctx context.Context, c Caller, id uuid.UUID, in RescheduleInput) (appt appointment.Appointment, err error) {
	ctx, span := startSpan(ctx, "reschedule_appointment", c)
	defer func() { endSpan(span, err) }()

	patientID, err := s.owningPatient(c, id)
	if err != nil {
		return appointment.Appointment{}, err
	}
	return s.appointments.Reschedule(ctx, id, patientID, in.Date, in.Time)
}

func (s *Service) CompleteAppointment(ctx context.Context, c Caller, id uuid.UUID) (appt appointment.Appointment, err error) {
	ctx, span := startSpan(ctx, "complete_appointment", c)
	defer func() { endSpan(span, err) }()

	if err := s.requireAppointmentDoctor(c, id); err != nil {
		return appointment.Appointment{}, err
	}
	return s.appointments.MarkCompleted(ctx, id)
}

func (s *Service) MarkNoShow(ctx context.Context, c Caller, id uuid.UUID) (appt appointment.Appointment, err error) {
	ctx, span := startSpan(ctx, "mark_no_show", c)
	defer func() { endSpan(span, err) }()

	if err := s.requireAppointmentDoctor(c, id); err != nil {
		return appointment.Appointment{}, err
	}
	return s.appointments.MarkNoShow(ctx, id)
}

func (s *Service) requireAppointmentDoctor(c Caller, id uuid.UUID) error {
	if !c.valid() || c.Role == RolePatient {
		return ErrForbidden
	}
	appt, err := s.appointments.Get(id)
	if err != nil {
		return err
	}
	return c.requireDoctor(appt.DoctorID)
}

func (s *Service) GetAppointment(ctx context.Context, c Caller, id uuid.UUID) (appt appointment.Appointment, err error) {
	_, span := startSpan(ctx, "get_appointment", c)
	defer func() { endSpan(span, err) }()

	if !c.valid() {
		return appointment.Appointment{}, ErrForbidden
	}
	appt, err = s.appointments.Get(id)
	if err != nil {
		return appointment.Appointment{}, err
	}
	switch {
	case c.Role == RoleAdmin,
		c.Role == RolePatient && c.ID == appt.PatientID,
		c.Role == RoleDoctor && c.ID == appt.DoctorID:
		return appt, nil
	}
	return appointment.Appointment{}, ErrForbidden
}

func (s *Service) ListPatientAppointments(ctx context.Context, c Caller, patientID string, page appointment.Page) (out []appointment.Appointment, err error) {
	_, span := startSpan(ctx, "list_patient_appointments", c)
	defer func() { endSpan(span, err) }()

	if err := c.requirePatient(patientID); err != nil {
		return nil, err
	}
	return s.appointments.ListByPatient(patientID, page), nil
}

func (s *Service) ListDoctorAppointments(ctx context.Context, c Caller, doctorID string, page appointment.Page) (out []appointment.Appointment, err error) {
	_, span := startSpan(ctx, "list_doctor_appointments", c)
	defer func() { endSpan(span, err) }()

	if err := c.requireDoctor(doctorID); err != nil {
		return nil, err
	}
	if _, err := s.doctors.Get(doctorID); err != nil {
		return nil, err
	}
	return s.appointments.ListByDoctor(doctorID, page), nil
}

// DoctorSchedule lists the doctor's appointments on date, today if zero.
func (s *Service) DoctorSchedule(ctx context.Context, c Caller, doctorID string, date calendar.Date) (out []appointment.Appointment, err error) {
	_, span := startSpan(ctx, "doctor_schedule", c)
	defer func() { endSpan(span, err) }()

	if err := c.requireDoctor(doctorID); err != nil {
		return nil, err
	}
	if _, err := s.doctors.Get(doctorID); err != nil {
		return nil, err
	}
	if date.IsZero() {
		date = s.Today()
	}
	out = s.appointments.ListByDoctorOn(doctorID, date)
	if out == nil {
		out = []appointment.Appointment{}
	}
	return out, nil
}
