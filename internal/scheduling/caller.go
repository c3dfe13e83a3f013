package scheduling

import (
	"github.com/hackgods/doctor-queue-scheduling/internal/apperr"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return r, true
	}
	return "", false
}

// Caller is the authenticated identity behind a request. For doctors ID is
// the doctor id; for patients it is the patient id.
type Caller struct {
	ID   string
	Role Role
}

var ErrForbidden = apperr.New(apperr.Forbidden, "forbidden", "caller is not allowed to perform this operation")

func (c Caller) valid() bool {
	_, ok := ParseRole(string(c.Role))
	return ok && c.ID != ""
}

func (c Caller) requireAdmin() error {
	if !c.valid() || c.Role != RoleAdmin {
		return ErrForbidden
	}
	return nil
}

// requirePatient allows the patient themself or an admin.
func (c Caller) requirePatient(patientID string) error {
	if !c.valid() {
		return ErrForbidden
	}
	if c.Role == RoleAdmin || (c.Role == RolePatient && c.ID == patientID) {
		return nil
	}
	return apperr.With(ErrForbidden, "caller may only act for patient %s", c.ID)
}

// requireDoctor allows the doctor themself or an admin.
func (c Caller) requireDoctor(doctorID string) error {
	if !c.valid() {
		return ErrForbidden
	}
	if c.Role == RoleAdmin || (c.Role == RoleDoctor && c.ID == doctorID) {
		return nil
	}
	return apperr.With(ErrForbidden, "caller may only act on doctor %s", doctorID)
}
