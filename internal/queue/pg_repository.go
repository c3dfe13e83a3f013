package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hackgods/doctor-queue-scheduling/internal/db"
)

type PgRepository struct {
	db db.DB
}

func NewPgRepository(conn db.DB) *PgRepository {
	return &PgRepository{db: conn}
}

const entryColumns = `id, patient_id, doctor_id, joined_at, seq, status, started_at, ended_at, version`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var status string
	var seq int64
	var startedAt, endedAt *time.Time

	err := row.Scan(
		&e.ID,
		&e.PatientID,
		&e.DoctorID,
		&e.JoinedAt,
		&seq,
		&status,
		&startedAt,
		&endedAt,
		&e.Version,
	)
	if err != nil {
		return nil, err
	}

	e.Status = Status(status)
	if !e.Status.Valid() {
		return nil, fmt.Errorf("queue entry %s: unknown status %q", e.ID, status)
	}
	e.Seq = uint64(seq)
	if startedAt != nil {
		e.StartedAt = *startedAt
	}
	if endedAt != nil {
		e.EndedAt = *endedAt
	}
	return &e, nil
}

// UpsertEntry writes e unless the stored row already has the same or a newer version.
func (r *PgRepository) UpsertEntry(ctx context.Context, e Entry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO queue_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at,
			version = EXCLUDED.version
		WHERE queue_entries.version < EXCLUDED.version
	`, e.ID, e.PatientID, e.DoctorID, e.JoinedAt, int64(e.Seq), string(e.Status),
		nullableTime(e.StartedAt), nullableTime(e.EndedAt), e.Version)
	if err != nil {
		return fmt.Errorf("upsert queue entry: %w", err)
	}
	return nil
}

func (r *PgRepository) ListActiveEntries(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+entryColumns+`
		FROM queue_entries
		WHERE status IN ('WAITING', 'IN_PROGRESS')
		ORDER BY doctor_id, joined_at, seq
	`)
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) UpsertStats(ctx context.Context, s Stats) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO consultation_stats (doctor_id, average_ms, samples, updated_at, version)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (doctor_id) DO UPDATE SET
			average_ms = EXCLUDED.average_ms,
			samples = EXCLUDED.samples,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version
		WHERE consultation_stats.version < EXCLUDED.version
	`, s.DoctorID, s.Average.Milliseconds(), s.Samples, s.UpdatedAt, s.Version)
	if err != nil {
		return fmt.Errorf("upsert consultation stats: %w", err)
	}
	return nil
}

func (r *PgRepository) ListStats(ctx context.Context) ([]Stats, error) {
	rows, err := r.db.Query(ctx, `
		SELECT doctor_id, average_ms, samples, updated_at, version
		FROM consultation_stats
	`)
	if err != nil {
		return nil, fmt.Errorf("list consultation stats: %w", err)
	}
	defer rows.Close()

	var result []Stats
	for rows.Next() {
		var s Stats
		var ms int64
		if err := rows.Scan(&s.DoctorID, &ms, &s.Samples, &s.UpdatedAt, &s.Version); err != nil {
			return nil, err
		}
		s.Average = time.Duration(ms) * time.Millisecond
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
