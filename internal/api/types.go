package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-queue-scheduling/internal/appointment"
	"github.com/hackgods/doctor-queue-scheduling/internal/calendar"
	"github.com/hackgods/doctor-queue-scheduling/internal/doctor"
	"github.com/hackgods/doctor-queue-scheduling/internal/queue"
	"github.com/hackgods/doctor-queue-scheduling/internal/scheduling"
)

type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
}

type DoctorResponse struct {
	ID                 string    `json:"doctorId"`
	Name               string    `json:"name"`
	Email              string    `json:"email,omitempty"`
	Phone              string    `json:"phone,omitempty"`
	Specialization     string    `json:"specialization"`
	Department         string    `json:"department"`
	ExperienceYears    int       `json:"experienceYears"`
	Qualifications     string    `json:"qualifications,omitempty"`
	ConsultationFee    float64   `json:"consultationFee"`
	AvailableDays      []string  `json:"availableDays"`
	AvailableTimeSlots []string  `json:"availableTimeSlots"`
	Active             bool      `json:"active"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func toDoctorResponse(d doctor.Doctor) DoctorResponse {
	days := make([]string, len(d.AvailableDays))
	for i, day := range d.AvailableDays {
		days[i] = day.String()
	}
	slots := make([]string, len(d.AvailableTimeSlots))
	for i, s := range d.AvailableTimeSlots {
		slots[i] = s.String()
	}
	return DoctorResponse{
		ID:                 d.ID,
		Name:               d.Name,
		Email:              d.Email,
		Phone:              d.Phone,
		Specialization:     d.Specialization,
		Department:         d.Department,
		ExperienceYears:    d.ExperienceYears,
		Qualifications:     d.Qualifications,
		ConsultationFee:    d.ConsultationFee,
		AvailableDays:      days,
		AvailableTimeSlots: slots,
		Active:             d.Active,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

type DeactivateResponse struct {
	Doctor                DoctorResponse `json:"doctor"`
	ScheduledAppointments int            `json:"scheduledAppointments"`
	ActiveQueueEntries    int            `json:"activeQueueEntries"`
}

type AvailabilityResponse struct {
	DoctorID  string   `json:"doctorId"`
	Date      string   `json:"date"`
	Available bool     `json:"available"`
	Slots     []string `json:"slots"`
	Booked    []string `json:"booked"`
}

func toAvailabilityResponse(a scheduling.Availability) AvailabilityResponse {
	resp := AvailabilityResponse{
		DoctorID:  a.DoctorID,
		Date:      a.Date.String(),
		Available: a.Available,
		Slots:     make([]string, len(a.Slots)),
		Booked:    make([]string, len(a.Booked)),
	}
	for i, s := range a.Slots {
		resp.Slots[i] = s.String()
	}
	for i, t := range a.Booked {
		resp.Booked[i] = t.String()
	}
	return resp
}

type AppointmentResponse struct {
	ID        uuid.UUID          `json:"appointmentId"`
	PatientID string             `json:"patientId"`
	DoctorID  string             `json:"doctorId"`
	Date      calendar.Date      `json:"date"`
	Time      calendar.TimeOfDay `json:"time"`
	Reason    string             `json:"reason,omitempty"`
	Status    string             `json:"status"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		Date:      a.Date,
		Time:      a.Time,
		Reason:    a.Reason,
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func toAppointmentList(in []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, len(in))
	for i, a := range in {
		out[i] = toAppointmentResponse(a)
	}
	return out
}

type AppointmentListResponse struct {
	Items  []AppointmentResponse `json:"items"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

type QueueEntryResponse struct {
	ID        uuid.UUID  `json:"entryId"`
	PatientID string     `json:"patientId"`
	DoctorID  string     `json:"doctorId"`
	JoinedAt  time.Time  `json:"joinedAt"`
	Status    string     `json:"status"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

func toQueueEntryResponse(e queue.Entry) QueueEntryResponse {
	resp := QueueEntryResponse{
		ID:        e.ID,
		PatientID: e.PatientID,
		DoctorID:  e.DoctorID,
		JoinedAt:  e.JoinedAt,
		Status:    string(e.Status),
	}
	if !e.StartedAt.IsZero() {
		t := e.StartedAt
		resp.StartedAt = &t
	}
	if !e.EndedAt.IsZero() {
		t := e.EndedAt
		resp.EndedAt = &t
	}
	return resp
}

func optionalEntry(e *queue.Entry) *QueueEntryResponse {
	if e == nil {
		return nil
	}
	resp := toQueueEntryResponse(*e)
	return &resp
}

type TicketResponse struct {
	Entry                QueueEntryResponse `json:"entry"`
	Position             int                `json:"position"`
	EstimatedWaitMinutes float64            `json:"estimatedWaitMinutes"`
}

type PositionResponse struct {
	DoctorID             string    `json:"doctorId"`
	EntryID              uuid.UUID `json:"entryId"`
	Status               string    `json:"status"`
	Position             int       `json:"position"`
	EstimatedWaitMinutes float64   `json:"estimatedWaitMinutes"`
}

func toPositionResponse(p queue.Position) PositionResponse {
	return PositionResponse{
		DoctorID:             p.DoctorID,
		EntryID:              p.EntryID,
		Status:               string(p.Status),
		Position:             p.Position,
		EstimatedWaitMinutes: p.EstimatedWait.Minutes(),
	}
}

type QueueSummaryResponse struct {
	DoctorID                   string              `json:"doctorId"`
	WaitingCount               int                 `json:"waitingCount"`
	InProgress                 *QueueEntryResponse `json:"inProgress"`
	Next                       *QueueEntryResponse `json:"next"`
	AverageConsultationMinutes float64             `json:"averageConsultationMinutes"`
	Samples                    int64               `json:"samples"`
	AverageUpdatedAt           *time.Time          `json:"averageUpdatedAt,omitempty"`
}

func toSummaryResponse(s queue.Summary) QueueSummaryResponse {
	resp := QueueSummaryResponse{
		DoctorID:                   s.DoctorID,
		WaitingCount:               s.WaitingCount,
		InProgress:                 optionalEntry(s.InProgress),
		Next:                       optionalEntry(s.Next),
		AverageConsultationMinutes: s.AverageConsultation.Minutes(),
		Samples:                    s.Samples,
	}
	if !s.AverageUpdatedAt.IsZero() {
		t := s.AverageUpdatedAt
		resp.AverageUpdatedAt = &t
	}
	return resp
}

type QueueStatusResponse struct {
	QueueSummaryResponse
	Waiting []QueueEntryResponse `json:"waiting,omitempty"`
}

type StatsResponse struct {
	Doctors       int `json:"doctors"`
	ActiveDoctors int `json:"activeDoctors"`
	Appointments  struct {
		Total     int `json:"total"`
		Scheduled int `json:"scheduled"`
		Completed int `json:"completed"`
		Cancelled int `json:"cancelled"`
		NoShow    int `json:"noShow"`
		Patients  int `json:"patients"`
	} `json:"appointments"`
	QueueActive  int `json:"queueActive"`
	QueueWaiting int `json:"queueWaiting"`
}

func toStatsResponse(s scheduling.Stats) StatsResponse {
	var resp StatsResponse
	resp.Doctors = s.Doctors
	resp.ActiveDoctors = s.ActiveDoctors
	resp.Appointments.Total = s.Appointments.Total
	resp.Appointments.Scheduled = s.Appointments.Scheduled
	resp.Appointments.Completed = s.Appointments.Completed
	resp.Appointments.Cancelled = s.Appointments.Cancelled
	resp.Appointments.NoShow = s.Appointments.NoShow
	resp.Appointments.Patients = s.Appointments.Patients
	resp.QueueActive = s.QueueActive
	resp.QueueWaiting = s.QueueWaiting
	return resp
}
