package ports

import (
	"context"
	"io"

	"github.com/clinscribe/clinical-scribe/internal/core/domain"
)

// AudioUpload is the raw audio payload attached to an AUDIO note request.
type AudioUpload struct {
	Data        io.Reader
	ContentType string
	Filename    string
}

// CreateNoteInput is the inbound note creation request.
type CreateNoteInput struct {
	PatientID string
	Type      domain.NoteType
	Content   string
	Audio     *AudioUpload
}

// NoteCreator runs the full note pipeline synchronously and persists the
// result. Any hard failure before persistence leaves no note behind.
type NoteCreator interface {
	CreateNote(ctx context.Context, in CreateNoteInput) (*domain.ClinicalNote, error)
}

// NoteEnqueuer stages an audio upload and hands the rest of the pipeline
// to the worker, returning a pollable job record immediately.
type NoteEnqueuer interface {
	EnqueueAudioNote(ctx context.Context, in CreateNoteInput, idempotencyKey string) (*domain.NoteJob, error)
}

// JobProcessor is the worker-side entrypoint for queued note jobs.
type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID string) error
}

// NoteReader is the read model consumed by the surrounding UI.
type NoteReader interface {
	GetNote(ctx context.Context, id string) (*NoteDetail, error)
	ListNotes(ctx context.Context) ([]NoteSummary, error)
	GetJob(ctx context.Context, id string) (*domain.NoteJob, error)
	Stats(ctx context.Context) (Stats, error)
}

type NoteDetail struct {
	Note     domain.ClinicalNote    `json:"note"`
	Patient  *domain.Patient        `json:"patient"`
	Entities []domain.MedicalEntity `json:"entities"`
}

type NoteSummary struct {
	Note    domain.ClinicalNote `json:"note"`
	Patient *domain.Patient     `json:"patient"`
}

type Stats struct {
	Patients int64 `json:"patients"`
	Notes    int64 `json:"notes"`
}
