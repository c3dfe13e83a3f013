package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-queue-scheduling/internal/calendar"
)

type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusNoShow    Status = "NO_SHOW"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Terminal statuses never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// occupiesSlot reports whether an appointment in this status holds its slot.
func (s Status) occupiesSlot() bool {
	return s == StatusScheduled || s == StatusCompleted
}

// SlotKey identifies a bookable (doctor, date, time) slot.
type SlotKey struct {
	DoctorID string
	Date     calendar.Date
	Time     calendar.TimeOfDay
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.DoctorID, k.Date, k.Time)
}

type Appointment struct {
	ID        uuid.UUID
	PatientID string
	DoctorID  string
	Date      calendar.Date
	Time      calendar.TimeOfDay
	Reason    string
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
}

func (a Appointment) Slot() SlotKey {
	return SlotKey{DoctorID: a.DoctorID, Date: a.Date, Time: a.Time}
}

// StartsAt is the instant of the slot in loc.
func (a Appointment) StartsAt(loc *time.Location) time.Time {
	return a.Date.At(a.Time, loc)
}

type BookRequest struct {
	PatientID string
	DoctorID  string
	Date      calendar.Date
	Time      calendar.TimeOfDay
	Reason    string
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// Page bounds a listing. Zero values fall back to the defaults.
type Page struct {
	Limit  int
	Offset int
}

// Normalize applies the default and maximum page size.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type Counts struct {
	Total     int
	Scheduled int
	Completed int
	Cancelled int
	NoShow    int
	Patients  int
}
