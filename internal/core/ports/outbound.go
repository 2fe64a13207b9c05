package ports

import (
	"context"
	"io"

	"github.com/clinscribe/clinical-scribe/internal/core/domain"
)

// ObjectStorage stores raw audio uploads and transcription results.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TranscriptionJobStatus is the provider-side job state. The runner polls
// until the status leaves Queued/InProgress.
type TranscriptionJobStatus string

const (
	TranscriptionQueued     TranscriptionJobStatus = "QUEUED"
	TranscriptionInProgress TranscriptionJobStatus = "IN_PROGRESS"
	TranscriptionCompleted  TranscriptionJobStatus = "COMPLETED"
	TranscriptionFailed     TranscriptionJobStatus = "FAILED"
)

type TranscriptionJobSpec struct {
	AudioKey  string
	OutputKey string
	Language  string
	Specialty string
	Type      string
}

// TranscriptionService starts asynchronous speech-to-text jobs. The
// finished transcript is written to OutputKey in ObjectStorage.
type TranscriptionService interface {
	Start(ctx context.Context, spec TranscriptionJobSpec) (jobID string, err error)
	Status(ctx context.Context, jobID string) (TranscriptionJobStatus, error)
}

// EntityDetector runs medical entity detection over transcript text.
type EntityDetector interface {
	Detect(ctx context.Context, text string) ([]domain.DetectedEntity, error)
}

// TextGenerator is one interchangeable generative-text provider. The
// composer tries an ordered chain of these until one succeeds.
type TextGenerator interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// NoteRepository persists and reads clinical notes. SaveWithEntities
// writes the note and its entities in a single transaction.
type NoteRepository interface {
	SaveWithEntities(ctx context.Context, note *domain.ClinicalNote, entities []domain.MedicalEntity) error
	GetByID(ctx context.Context, id string) (*domain.ClinicalNote, []domain.MedicalEntity, error)
	List(ctx context.Context) ([]domain.ClinicalNote, error)
	Count(ctx context.Context) (int64, error)
}

// PatientRepository reads patient context for prompt enrichment.
type PatientRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Patient, error)
	Count(ctx context.Context) (int64, error)
}

// JobRepository persists pollable note-job records.
type JobRepository interface {
	Create(ctx context.Context, job *domain.NoteJob) error
	GetByID(ctx context.Context, id string) (*domain.NoteJob, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.NoteJob, error)
	SetRunning(ctx context.Context, id string) error
	SetDone(ctx context.Context, id, noteID string) error
	SetFailed(ctx context.Context, id, message string) error
}

// JobQueue hands note jobs from the API to the worker.
type JobQueue interface {
	PublishNoteJob(ctx context.Context, jobID string) error
	SubscribeNoteJobs(ctx context.Context, handler func(context.Context, string) error) error
}
