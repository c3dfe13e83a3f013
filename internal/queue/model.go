package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-queue-scheduling/internal/apperr"
)

var (
	ErrAlreadyQueued        = apperr.New(apperr.Conflict, "already_queued", "patient already has an active queue entry")
	ErrAlreadyInProgress    = apperr.New(apperr.Conflict, "already_in_progress", "doctor already has a consultation in progress")
	ErrNotQueued            = apperr.New(apperr.NotFound, "not_queued", "patient is not in any queue")
	ErrEntryNotFound        = apperr.New(apperr.NotFound, "entry_not_found", "queue entry not found or no longer active")
	ErrNoActiveConsultation = apperr.New(apperr.Rejected, "no_active_consultation", "doctor has no consultation in progress")
)

type Status string

const (
	StatusWaiting    Status = "WAITING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
	StatusLeft       Status = "LEFT"
)

func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusInProgress, StatusDone, StatusLeft:
		return true
	}
	return false
}

// Active statuses count toward the one-membership-per-patient rule.
func (s Status) Active() bool {
	return s == StatusWaiting || s == StatusInProgress
}

// Entry is a patient's membership in a doctor's queue. Seq is the arrival
// number within the doctor's queue and breaks JoinedAt ties.
type Entry struct {
	ID        uuid.UUID
	PatientID string
	DoctorID  string
	JoinedAt  time.Time
	Seq       uint64
	Status    Status
	StartedAt time.Time
	EndedAt   time.Time
	Version   int64
}

// Position is where an active patient stands. Position is 1-based among the
// doctor's waiting entries and 0 while the patient is in consultation.
type Position struct {
	DoctorID      string
	EntryID       uuid.UUID
	Status        Status
	Position      int
	EstimatedWait time.Duration
}

// Summary is the status of one doctor's queue.
type Summary struct {
	DoctorID            string
	WaitingCount        int
	InProgress          *Entry
	Next                *Entry
	AverageConsultation time.Duration
	Samples             int64
	AverageUpdatedAt    time.Time
}

// Stats is the audited consultation-time average of one doctor.
type Stats struct {
	DoctorID  string
	Average   time.Duration
	Samples   int64
	UpdatedAt time.Time
	Version   int64
}
