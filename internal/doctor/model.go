package doctor

import (
	"slices"
	"time"

	"github.com/hackgods/doctor-queue-scheduling/internal/apperr"
	"github.com/hackgods/doctor-queue-scheduling/internal/calendar"
)

var (
	ErrDoctorNotFound    = apperr.New(apperr.NotFound, "doctor_not_found", "doctor not found")
	ErrDoctorExists      = apperr.New(apperr.Conflict, "doctor_exists", "a doctor with this id already exists")
	// ErrDoctorUnavailable is shared by the appointment store and queue engine.
	ErrDoctorUnavailable = apperr.New(apperr.Rejected, "doctor_unavailable", "doctor is not available")
)

type Doctor struct {
	ID                 string
	Name               string
	Email              string
	Phone              string
	Specialization     string
	Department         string
	ExperienceYears    int
	Qualifications     string
	ConsultationFee    float64
	AvailableDays      []time.Weekday
	AvailableTimeSlots []calendar.TimeRange
	Active             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Version            int64
}

// WorksOn reports whether day is one of the doctor's available days.
func (d Doctor) WorksOn(day time.Weekday) bool {
	return slices.Contains(d.AvailableDays, day)
}

// HasSlotAt reports whether t falls inside one of the available time slots.
func (d Doctor) HasSlotAt(t calendar.TimeOfDay) bool {
	for _, r := range d.AvailableTimeSlots {
		if r.Contains(t) {
			return true
		}
	}
	return false
}

func (d Doctor) clone() Doctor {
	d.AvailableDays = slices.Clone(d.AvailableDays)
	d.AvailableTimeSlots = slices.Clone(d.AvailableTimeSlots)
	return d
}

// Patch carries the fields an admin edit changes; nil means unchanged.
type Patch struct {
	Name               *string
	Email              *string
	Phone              *string
	Specialization     *string
	Department         *string
	ExperienceYears    *int
	Qualifications     *string
	ConsultationFee    *float64
	AvailableDays      *[]time.Weekday
	AvailableTimeSlots *[]calendar.TimeRange
}

func (p Patch) apply(d *Doctor) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Email != nil {
		d.Email = *p.Email
	}
	if p.Phone != nil {
		d.Phone = *p.Phone
	}
	if p.Specialization != nil {
		d.Specialization = *p.Specialization
	}
	if p.Department != nil {
		d.Department = *p.Department
	}
	if p.ExperienceYears != nil {
		d.ExperienceYears = *p.ExperienceYears
	}
	if p.Qualifications != nil {
		d.Qualifications = *p.Qualifications
	}
	if p.ConsultationFee != nil {
		d.ConsultationFee = *p.ConsultationFee
	}
	if p.AvailableDays != nil {
		d.AvailableDays = slices.Clone(*p.AvailableDays)
	}
	if p.AvailableTimeSlots != nil {
		d.AvailableTimeSlots = slices.Clone(*p.AvailableTimeSlots)
	}
}

type Filter struct {
	Specialization string
	ActiveOnly     bool
}
