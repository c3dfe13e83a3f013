package doctor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hackgods/doctor-queue-scheduling/internal/calendar"
	"github.com/hackgods/doctor-queue-scheduling/internal/db"
)

type PgRepository struct {
	db db.DB
}

func NewPgRepository(conn db.DB) *PgRepository {
	return &PgRepository{db: conn}
}

const doctorColumns = `id, name, email, phone, specialization, department, experience_years,
	qualifications, consultation_fee, available_days, available_time_slots, active,
	created_at, updated_at, version`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var days []int32
	var slots []byte

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Email,
		&d.Phone,
		&d.Specialization,
		&d.Department,
		&d.ExperienceYears,
		&d.Qualifications,
		&d.ConsultationFee,
		&days,
		&slots,
		&d.Active,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.Version,
	)
	if err != nil {
		return nil, err
	}

	for _, day := range days {
		d.AvailableDays = append(d.AvailableDays, time.Weekday(day))
	}
	if len(slots) > 0 {
		var ranges []calendar.TimeRange
		if err := json.Unmarshal(slots, &ranges); err != nil {
			return nil, fmt.Errorf("decode time slots for %s: %w", d.ID, err)
		}
		d.AvailableTimeSlots = ranges
	}
	return &d, nil
}

// UpsertDoctor writes d unless the stored row already has the same or a newer version.
func (r *PgRepository) UpsertDoctor(ctx context.Context, d Doctor) error {
	days := make([]int32, 0, len(d.AvailableDays))
	for _, day := range d.AvailableDays {
		days = append(days, int32(day))
	}
	slots, err := json.Marshal(d.AvailableTimeSlots)
	if err != nil {
		return fmt.Errorf("encode time slots: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO doctors (`+doctorColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			specialization = EXCLUDED.specialization,
			department = EXCLUDED.department,
			experience_years = EXCLUDED.experience_years,
			qualifications = EXCLUDED.qualifications,
			consultation_fee = EXCLUDED.consultation_fee,
			available_days = EXCLUDED.available_days,
			available_time_slots = EXCLUDED.available_time_slots,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version
		WHERE doctors.version < EXCLUDED.version
	`, d.ID, d.Name, d.Email, d.Phone, d.Specialization, d.Department, d.ExperienceYears,
		d.Qualifications, d.ConsultationFee, days, slots, d.Active,
		d.CreatedAt, d.UpdatedAt, d.Version)
	if err != nil {
		return fmt.Errorf("upsert doctor: %w", err)
	}
	return nil
}

func (r *PgRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `SELECT `+doctorColumns+` FROM doctors ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
