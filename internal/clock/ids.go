package clock

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// IDs generates identifiers for the records owned by the core components.
type IDs interface {
	NewAppointmentID() uuid.UUID
	NewEntryID() uuid.UUID
	NewDoctorID() string
}

// RandomIDs draws every identifier from uuid v4.
type RandomIDs struct{}

func (RandomIDs) NewAppointmentID() uuid.UUID { return uuid.New() }

func (RandomIDs) NewEntryID() uuid.UUID { return uuid.New() }

// NewDoctorID returns an id of the form DOC-12345678. Callers are expected
// to re-draw on collision.
func (RandomIDs) NewDoctorID() string {
	id := uuid.New()
	n := binary.BigEndian.Uint32(id[:4]) % 100000000
	return fmt.Sprintf("DOC-%08d", n)
}
