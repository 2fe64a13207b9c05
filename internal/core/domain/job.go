package domain

import "time"

type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// NoteJob is the pollable record for an audio note that is processed off
// the request path. A failed job never leaves a ClinicalNote row behind;
// the sanitized failure message lives here.
type NoteJob struct {
	ID             string    `json:"id"`
	PatientID      string    `json:"patient_id"`
	AudioKey       string    `json:"audio_key"`
	AudioName      string    `json:"audio_name"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	Status         JobStatus `json:"status"`
	NoteID         string    `json:"note_id,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (j *NoteJob) Terminal() bool {
	return j.Status == JobStatusDone || j.Status == JobStatusFailed
}
