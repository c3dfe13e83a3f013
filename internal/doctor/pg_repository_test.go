package doctor

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgRepositoryUpsertDoctor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	d := Doctor{
		ID:              "DOC-00000042",
		Name:            "Dr. Ada Grey",
		Specialization:  "Cardiology",
		Department:      "Internal Medicine",
		ConsultationFee: 80,
		AvailableDays:   []time.Weekday{time.Monday},
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}

	mock.ExpectExec("INSERT INTO doctors").
		WithArgs(d.ID, d.Name, d.Email, d.Phone, d.Specialization, d.Department, d.ExperienceYears,
			d.Qualifications, d.ConsultationFee, []int32{1}, pgxmock.AnyArg(), true, now, now, int64(1)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewPgRepository(mock)
	require.NoError(t, repo.UpsertDoctor(context.Background(), d))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryListDoctors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{
		"id", "name", "email", "phone", "specialization", "department", "experience_years",
		"qualifications", "consultation_fee", "available_days", "available_time_slots", "active",
		"created_at", "updated_at", "version",
	}).AddRow(
		"DOC-00000042", "Dr. Ada Grey", "ada@example.com", "", "Cardiology", "Internal Medicine", 12,
		"MD", 80.0, []int32{1, 3}, []byte(`[{"start":"09:00","end":"12:00"}]`), true,
		now, now, int64(3),
	)
	mock.ExpectQuery("SELECT (.+) FROM doctors").WillReturnRows(rows)

	repo := NewPgRepository(mock)
	docs, err := repo.ListDoctors(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	got := docs[0]
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, got.AvailableDays)
	require.Len(t, got.AvailableTimeSlots, 1)
	assert.Equal(t, "09:00-12:00", got.AvailableTimeSlots[0].String())
	assert.Equal(t, int64(3), got.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}
