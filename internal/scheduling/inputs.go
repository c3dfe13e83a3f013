package scheduling

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hackgods/doctor-queue-scheduling/internal/apperr"
	"github.com/hackgods/doctor-queue-scheduling/internal/calendar"
	"github.com/hackgods/doctor-queue-scheduling/internal/doctor"
)

type DoctorInput struct {
	ID                 string   `json:"doctorId" validate:"omitempty,max=32"`
	Name               string   `json:"name" validate:"required,max=200"`
	Email              string   `json:"email" validate:"omitempty,email"`
	Phone              string   `json:"phone" validate:"omitempty,max=32"`
	Specialization     string   `json:"specialization" validate:"required,max=100"`
	Department         string   `json:"department" validate:"required,max=100"`
	ExperienceYears    int      `json:"experienceYears" validate:"gte=0,lte=80"`
	Qualifications     string   `json:"qualifications" validate:"max=500"`
	ConsultationFee    float64  `json:"consultationFee" validate:"gte=0"`
	AvailableDays      []string `json:"availableDays" validate:"dive,required"`
	AvailableTimeSlots []string `json:"availableTimeSlots" validate:"dive,required"`
}

func (in DoctorInput) toDoctor() (doctor.Doctor, error) {
	days, err := parseDays(in.AvailableDays)
	if err != nil {
		return doctor.Doctor{}, err
	}
	slots, err := parseSlots(in.AvailableTimeSlots)
	if err != nil {
		return doctor.Doctor{}, err
	}
	return doctor.Doctor{
		ID:                 strings.TrimSpace(in.ID),
		Name:               strings.TrimSpace(in.Name),
		Email:              strings.TrimSpace(in.Email),
		Phone:              strings.TrimSpace(in.Phone),
		Specialization:     strings.TrimSpace(in.Specialization),
		Department:         strings.TrimSpace(in.Department),
		ExperienceYears:    in.ExperienceYears,
		Qualifications:     in.Qualifications,
		ConsultationFee:    in.ConsultationFee,
		AvailableDays:      days,
		AvailableTimeSlots: slots,
	}, nil
}

// DoctorPatchInput changes only the fields that are set.
type DoctorPatchInput struct {
	Name               *string   `json:"name" validate:"omitempty,min=1,max=200"`
	Email              *string   `json:"email" validate:"omitempty,email"`
	Phone              *string   `json:"phone" validate:"omitempty,max=32"`
	Specialization     *string   `json:"specialization" validate:"omitempty,min=1,max=100"`
	Department         *string   `json:"department" validate:"omitempty,min=1,max=100"`
	ExperienceYears    *int      `json:"experienceYears" validate:"omitempty,gte=0,lte=80"`
	Qualifications     *string   `json:"qualifications" validate:"omitempty,max=500"`
	ConsultationFee    *float64  `json:"consultationFee" validate:"omitempty,gte=0"`
	AvailableDays      *[]string `json:"availableDays" validate:"omitempty,dive,required"`
	AvailableTimeSlots *[]string `json:"availableTimeSlots" validate:"omitempty,dive,required"`
}

func (in DoctorPatchInput) toPatch() (doctor.Patch, error) {
	p := doctor.Patch{
		Name:            in.Name,
		Email:           in.Email,
		Phone:           in.Phone,
		Specialization:  in.Specialization,
		Department:      in.Department,
		ExperienceYears: in.ExperienceYears,
		Qualifications:  in.Qualifications,
		ConsultationFee: in.ConsultationFee,
	}
	if in.AvailableDays != nil {
		days, err := parseDays(*in.AvailableDays)
		if err != nil {
			return doctor.Patch{}, err
		}
		p.AvailableDays = &days
	}
	if in.AvailableTimeSlots != nil {
		slots, err := parseSlots(*in.AvailableTimeSlots)
		if err != nil {
			return doctor.Patch{}, err
		}
		p.AvailableTimeSlots = &slots
	}
	return p, nil
}

type BookAppointmentInput struct {
	PatientID string             `json:"patientId" validate:"required,max=64"`
	DoctorID  string             `json:"doctorId" validate:"required,max=32"`
	Date      calendar.Date      `json:"date"`
	Time      calendar.TimeOfDay `json:"time"`
	Reason    string             `json:"reason" validate:"max=500"`
}

type RescheduleInput struct {
	Date calendar.Date      `json:"date"`
	Time calendar.TimeOfDay `json:"time"`
}

type JoinQueueInput struct {
	PatientID string `json:"patientId" validate:"required,max=64"`
	DoctorID  string `json:"doctorId" validate:"required,max=32"`
}

func parseDays(in []string) ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, len(in))
	for _, s := range in {
		d, err := calendar.ParseWeekday(s)
		if err != nil {
			return nil, apperr.Invalid("availableDays: %v", err)
		}
		days = append(days, d)
	}
	return days, nil
}

func parseSlots(in []string) ([]calendar.TimeRange, error) {
	slots := make([]calendar.TimeRange, 0, len(in))
	for _, s := range in {
		r, err := calendar.ParseTimeRange(s)
		if err != nil {
			return nil, apperr.Invalid("availableTimeSlots: %q: %v", s, err)
		}
		slots = append(slots, r)
	}
	return slots, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

var tagMessages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email address",
	"min":      "is too short",
	"max":      "is too long",
	"gte":      "is too small",
	"lte":      "is too large",
}

// validateInput turns validator failures into one ValidationError naming
// every offending field.
func validateInput(v *validator.Validate, in any) error {
	err := v.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate input: %w", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := tagMessages[fe.Tag()]
		if !ok {
			msg = "failed " + fe.Tag()
		}
		problems = append(problems, fe.Field()+" "+msg)
	}
	return apperr.Invalid("%s", strings.Join(problems, "; "))
}
