package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgRepositoryUpsertEntry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	joined := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	e := Entry{
		ID:        uuid.New(),
		PatientID: "P-1",
		DoctorID:  "DOC-1",
		JoinedAt:  joined,
		Seq:       7,
		Status:    StatusWaiting,
		Version:   1,
	}

	mock.ExpectExec("INSERT INTO queue_entries").
		WithArgs(e.ID, "P-1", "DOC-1", joined, int64(7), "WAITING", (*time.Time)(nil), (*time.Time)(nil), int64(1)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewPgRepository(mock)
	require.NoError(t, repo.UpsertEntry(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryListActiveEntries(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	joined := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	started := joined.Add(5 * time.Minute)
	rows := pgxmock.NewRows([]string{
		"id", "patient_id", "doctor_id", "joined_at", "seq", "status", "started_at", "ended_at", "version",
	}).AddRow(id, "P-1", "DOC-1", joined, int64(3), "IN_PROGRESS", &started, (*time.Time)(nil), int64(2))
	mock.ExpectQuery("SELECT (.+) FROM queue_entries").WillReturnRows(rows)

	repo := NewPgRepository(mock)
	entries, err := repo.ListActiveEntries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, StatusInProgress, got.Status)
	assert.Equal(t, uint64(3), got.Seq)
	assert.Equal(t, started, got.StartedAt)
	assert.True(t, got.EndedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s := Stats{DoctorID: "DOC-1", Average: 13 * time.Minute, Samples: 2, UpdatedAt: now, Version: 2}

	mock.ExpectExec("INSERT INTO consultation_stats").
		WithArgs("DOC-1", int64(780000), int64(2), now, int64(2)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT (.+) FROM consultation_stats").
		WillReturnRows(pgxmock.NewRows([]string{"doctor_id", "average_ms", "samples", "updated_at", "version"}).
			AddRow("DOC-1", int64(780000), int64(2), now, int64(2)))

	repo := NewPgRepository(mock)
	require.NoError(t, repo.UpsertStats(context.Background(), s))

	stats, err := repo.ListStats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, s, stats[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}
