package appointment

import (
	"context"

	"github.com/hackgods/doctor-queue-scheduling/internal/apperr"
)

var (
	ErrAppointmentNotFound = apperr.New(apperr.NotFound, "appointment_not_found", "appointment not found")
	ErrSlotConflict        = apperr.New(apperr.Conflict, "slot_conflict", "slot already has an active appointment")
	ErrSlotBusy            = apperr.New(apperr.Conflict, "slot_busy", "slot is currently being booked, please retry")
	ErrNotOwner            = apperr.New(apperr.Forbidden, "forbidden", "appointment belongs to another patient")
	ErrTooLate             = apperr.New(apperr.Rejected, "too_late", "appointment can no longer be changed")
	ErrInvalidState        = apperr.New(apperr.Rejected, "invalid_state", "appointment is not in a state that allows this operation")
	ErrSlotInPast          = apperr.New(apperr.Rejected, "slot_in_past", "slot has already started")
	ErrOutsideAvailability = apperr.New(apperr.Rejected, "outside_availability", "time is outside the doctor's available time slots")
)

// Repository is the durable journal behind the store. Writes happen after
// the in-memory state has committed.
type Repository interface {
	UpsertAppointment(ctx context.Context, a Appointment) error
	ListAppointments(ctx context.Context) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
