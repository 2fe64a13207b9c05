package httpadapter

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/clinscribe/clinical-scribe/internal/core/domain"
)

type createNoteRequest struct {
	PatientID string `json:"patient_id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
}

func (r createNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.PatientID, validation.Required),
		validation.Field(&r.Type, validation.Required, validation.In(
			string(domain.NoteTypeText),
			string(domain.NoteTypeAudio),
		)),
		validation.Field(&r.Content,
			validation.When(r.Type == string(domain.NoteTypeText), validation.Required),
		),
	)
}

type jobResponse struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	NoteID         string `json:"note_id,omitempty"`
	Error          string `json:"error,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func newJobResponse(job *domain.NoteJob) jobResponse {
	return jobResponse{
		ID:             job.ID,
		Status:         string(job.Status),
		NoteID:         job.NoteID,
		Error:          job.Error,
		IdempotencyKey: job.IdempotencyKey,
		CreatedAt:      job.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		UpdatedAt:      job.UpdatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}
