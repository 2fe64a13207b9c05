package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clinscribe/clinical-scribe/internal/core/domain"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *domain.NoteJob) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO note_jobs (
	id, patient_id, audio_key, audio_name, idempotency_key, status, note_id, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		job.ID, job.PatientID, job.AudioKey, job.AudioName, job.IdempotencyKey,
		string(job.Status), job.NoteID, job.Error, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert note job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.NoteJob, error) {
	return r.getBy(ctx, `WHERE id = $1`, id)
}

func (r *JobRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.NoteJob, error) {
	return r.getBy(ctx, `WHERE idempotency_key = $1`, key)
}

func (r *JobRepository) getBy(ctx context.Context, where, arg string) (*domain.NoteJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, patient_id, audio_key, audio_name, idempotency_key, status, note_id, error_message, created_at, updated_at
FROM note_jobs
`+where, arg)

	var job domain.NoteJob
	var status string
	err := row.Scan(
		&job.ID, &job.PatientID, &job.AudioKey, &job.AudioName, &job.IdempotencyKey,
		&status, &job.NoteID, &job.Error, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get note job", fmt.Errorf("job %s", arg))
		}
		return nil, fmt.Errorf("scan note job: %w", err)
	}
	job.Status = domain.JobStatus(status)
	return &job, nil
}

func (r *JobRepository) SetRunning(ctx context.Context, id string) error {
	return r.updateStatus(ctx, id, domain.JobStatusRunning, "", "")
}

func (r *JobRepository) SetDone(ctx context.Context, id, noteID string) error {
	return r.updateStatus(ctx, id, domain.JobStatusDone, noteID, "")
}

func (r *JobRepository) SetFailed(ctx context.Context, id, message string) error {
	return r.updateStatus(ctx, id, domain.JobStatusFailed, "", message)
}

func (r *JobRepository) updateStatus(ctx context.Context, id string, status domain.JobStatus, noteID, message string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE note_jobs
SET status = $2, note_id = $3, error_message = $4, updated_at = $5
WHERE id = $1
`, id, string(status), noteID, message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update note job: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "update note job", fmt.Errorf("job %s", id))
	}
	return nil
}
