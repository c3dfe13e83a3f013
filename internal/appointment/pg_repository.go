package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/hackgods/doctor-queue-scheduling/internal/calendar"
	"github.com/hackgods/doctor-queue-scheduling/internal/db"
)

type PgRepository struct {
	db db.DB
}

func NewPgRepository(conn db.DB) *PgRepository {
	return &PgRepository{db: conn}
}

const appointmentColumns = `id, patient_id, doctor_id, appointment_date, appointment_time,
	reason, status, created_at, updated_at, version`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	var date time.Time
	var tod pgtype.Time

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&date,
		&tod,
		&a.Reason,
		&status,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.Version,
	)
	if err != nil {
		return nil, err
	}

	a.Status = Status(status)
	if !a.Status.Valid() {
		return nil, fmt.Errorf("appointment %s: unknown status %q", a.ID, status)
	}
	a.Date = calendar.DateOf(date)
	minutes := tod.Microseconds / int64(time.Minute/time.Microsecond)
	a.Time = calendar.TimeOfDay(minutes)
	return &a, nil
}

// UpsertAppointment writes a unless the stored row already has the same or a
// newer version. Writes can arrive out of order since they happen after the
// slot lock is released.
func (r *PgRepository) UpsertAppointment(ctx context.Context, a Appointment) error {
	date := time.Date(a.Date.Year, a.Date.Month, a.Date.Day, 0, 0, 0, 0, time.UTC)

	_, err := r.db.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			appointment_date = EXCLUDED.appointment_date,
			appointment_time = EXCLUDED.appointment_time,
			reason = EXCLUDED.reason,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version
		WHERE appointments.version < EXCLUDED.version
	`, a.ID, a.PatientID, a.DoctorID, date, a.Time.String(),
		a.Reason, string(a.Status), a.CreatedAt, a.UpdatedAt, a.Version)
	if err != nil {
		return fmt.Errorf("upsert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) ListAppointments(ctx context.Context) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		ORDER BY appointment_date, appointment_time, created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	var appID *uuid.UUID
	if ev.AppointmentID != nil {
		appID = ev.AppointmentID
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, appID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
