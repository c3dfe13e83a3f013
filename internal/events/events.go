// Package events carries queue change notifications from the scheduling
// service to watchers of a doctor's queue.
package events

import (
	"context"
	"time"
)

const (
	QueueJoined    = "QUEUE_JOINED"
	QueueLeft      = "QUEUE_LEFT"
	QueueAdvanced  = "QUEUE_ADVANCED"
	QueueCompleted = "QUEUE_COMPLETED"
	QueueRemoved   = "QUEUE_REMOVED"
)

// Event describes one change to a doctor's queue. WaitingCount is the number
// of waiting patients after the change.
type Event struct {
	Type         string    `json:"type"`
	DoctorID     string    `json:"doctorId"`
	PatientID    string    `json:"patientId,omitempty"`
	EntryID      string    `json:"entryId,omitempty"`
	WaitingCount int       `json:"waitingCount"`
	At           time.Time `json:"at"`
}

// Topic is the channel name an event is fanned out on.
func Topic(doctorID string) string {
	return "queue:events:" + doctorID
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }
