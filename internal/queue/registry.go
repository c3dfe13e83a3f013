package queue

import (
	"sync"

	"github.com/google/uuid"
)

type membership struct {
	patientID string
	doctorID  string
	entryID   uuid.UUID
}

// registry maps every patient with an active entry to that entry.
type registry struct {
	mu      sync.Mutex
	patient map[string]membership
	entry   map[uuid.UUID]membership
}

func newRegistry() *registry {
	return &registry{
		patient: make(map[string]membership),
		entry:   make(map[uuid.UUID]membership),
	}
}

// bind records the membership unless the patient already has one.
func (r *registry) bind(patientID, doctorID string, entryID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.patient[patientID]; taken {
		return false
	}
	m := membership{patientID: patientID, doctorID: doctorID, entryID: entryID}
	r.patient[patientID] = m
	r.entry[entryID] = m
	return true
}

// release drops m if it is still the patient's current membership.
func (r *registry) release(m membership) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.patient[m.patientID]; ok && cur == m {
		delete(r.patient, m.patientID)
	}
	delete(r.entry, m.entryID)
}

func (r *registry) byPatient(patientID string) (membership, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.patient[patientID]
	return m, ok
}

func (r *registry) byEntry(entryID uuid.UUID) (membership, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.entry[entryID]
	return m, ok
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.patient)
}

func (r *registry) replace(other *registry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patient = other.patient
	r.entry = other.entry
}
