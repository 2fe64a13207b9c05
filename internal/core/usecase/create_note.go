package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinscribe/clinical-scribe/internal/core/domain"
	"github.com/clinscribe/clinical-scribe/internal/core/ports"
)

// Stage contracts consumed by the coordinator. The concrete runners in
// this package satisfy them; tests substitute fakes.
type Transcriber interface {
	Transcribe(ctx context.Context, audioKey string) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, transcript string) ([]domain.MedicalEntity, error)
}

type Composer interface {
	Compose(ctx context.Context, transcript string, patient *domain.Patient, entities []domain.MedicalEntity) domain.SOAPSections
}

// IngestionCoordinator validates note creation input, sequences audio
// storage, transcription, entity extraction and SOAP composition, and
// persists the finished note with its entities in one transaction.
// Nothing is persisted when a stage before composition fails hard.
type IngestionCoordinator struct {
	notes       ports.NoteRepository
	patients    ports.PatientRepository
	jobs        ports.JobRepository
	queue       ports.JobQueue
	storage     ports.ObjectStorage
	transcriber Transcriber
	extractor   Extractor
	composer    Composer
	now         func() time.Time
}

func NewIngestionCoordinator(
	notes ports.NoteRepository,
	patients ports.PatientRepository,
	jobs ports.JobRepository,
	queue ports.JobQueue,
	storage ports.ObjectStorage,
	transcriber Transcriber,
	extractor Extractor,
	composer Composer,
) *IngestionCoordinator {
	return &IngestionCoordinator{
		notes:       notes,
		patients:    patients,
		jobs:        jobs,
		queue:       queue,
		storage:     storage,
		transcriber: transcriber,
		extractor:   extractor,
		composer:    composer,
		now:         time.Now,
	}
}

// CreateNote runs the whole pipeline synchronously and returns the
// persisted note.
func (c *IngestionCoordinator) CreateNote(ctx context.Context, in ports.CreateNoteInput) (*domain.ClinicalNote, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	patient, err := c.patients.GetByID(ctx, in.PatientID)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}

	transcript := in.Content
	audioKey := ""
	if in.Type == domain.NoteTypeAudio {
		audioKey, err = c.storeAudio(ctx, in.Audio)
		if err != nil {
			return nil, err
		}
		transcript, err = c.transcriber.Transcribe(ctx, audioKey)
		if err != nil {
			return nil, err
		}
	}

	return c.finishNote(ctx, patient, in.Type, transcript, audioKey)
}

// EnqueueAudioNote stages the upload, records a queued job and publishes
// it for the worker, so the transcription wait never holds a request.
// A replayed idempotency key returns the original job untouched.
func (c *IngestionCoordinator) EnqueueAudioNote(ctx context.Context, in ports.CreateNoteInput, idempotencyKey string) (*domain.NoteJob, error) {
	in.Type = domain.NoteTypeAudio
	if err := validateInput(in); err != nil {
		return nil, err
	}

	if idempotencyKey != "" {
		existing, err := c.jobs.GetByIdempotencyKey(ctx, idempotencyKey)
		if err != nil && !domain.IsKind(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("look up idempotency key: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	if _, err := c.patients.GetByID(ctx, in.PatientID); err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}

	audioKey, err := c.storeAudio(ctx, in.Audio)
	if err != nil {
		return nil, err
	}

	now := c.now().UTC()
	job := &domain.NoteJob{
		ID:             uuid.NewString(),
		PatientID:      in.PatientID,
		AudioKey:       audioKey,
		AudioName:      in.Audio.Filename,
		IdempotencyKey: idempotencyKey,
		Status:         domain.JobStatusQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := c.jobs.Create(ctx, job); err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "create note job", err)
	}

	if err := c.queue.PublishNoteJob(ctx, job.ID); err != nil {
		if failErr := c.jobs.SetFailed(ctx, job.ID, "The note could not be queued for processing."); failErr != nil {
			slog.Error("job_fail_mark_error", "job_id", job.ID, "error", failErr)
		}
		return nil, fmt.Errorf("publish note job: %w", err)
	}
	return job, nil
}

// ProcessJob is the worker entrypoint for a queued audio note. A job that
// is already terminal is skipped, so queue redeliveries are harmless.
func (c *IngestionCoordinator) ProcessJob(ctx context.Context, jobID string) error {
	job, err := c.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load note job: %w", err)
	}
	if job.Terminal() {
		slog.Info("note_job_skipped", "job_id", jobID, "status", job.Status)
		return nil
	}
	if err := c.jobs.SetRunning(ctx, jobID); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}

	note, err := c.runJobPipeline(ctx, job)
	if err != nil {
		if failErr := c.jobs.SetFailed(ctx, jobID, domain.UserMessage(err)); failErr != nil {
			return fmt.Errorf("%w; mark job failed: %v", err, failErr)
		}
		return err
	}

	if err := c.jobs.SetDone(ctx, jobID, note.ID); err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}
	return nil
}

func (c *IngestionCoordinator) runJobPipeline(ctx context.Context, job *domain.NoteJob) (*domain.ClinicalNote, error) {
	patient, err := c.patients.GetByID(ctx, job.PatientID)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}

	transcript, err := c.transcriber.Transcribe(ctx, job.AudioKey)
	if err != nil {
		return nil, err
	}

	return c.finishNote(ctx, patient, domain.NoteTypeAudio, transcript, job.AudioKey)
}

// finishNote runs extraction and composition over a transcript, then
// persists the note and its entities atomically.
func (c *IngestionCoordinator) finishNote(
	ctx context.Context,
	patient *domain.Patient,
	noteType domain.NoteType,
	transcript, audioKey string,
) (*domain.ClinicalNote, error) {
	entities, err := c.extractor.Extract(ctx, transcript)
	if err != nil {
		return nil, err
	}

	soap := c.composer.Compose(ctx, transcript, patient, entities)

	note := &domain.ClinicalNote{
		ID:         uuid.NewString(),
		PatientID:  patient.ID,
		Type:       noteType,
		Status:     domain.NoteStatusFinal,
		Content:    transcript,
		AudioKey:   audioKey,
		Subjective: soap.Subjective,
		Objective:  soap.Objective,
		Assessment: soap.Assessment,
		Plan:       soap.Plan,
		CreatedAt:  c.now().UTC(),
	}
	for i := range entities {
		entities[i].ID = uuid.NewString()
		entities[i].NoteID = note.ID
	}

	if err := c.notes.SaveWithEntities(ctx, note, entities); err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "save note", err)
	}
	return note, nil
}

func (c *IngestionCoordinator) storeAudio(ctx context.Context, audio *ports.AudioUpload) (string, error) {
	key := fmt.Sprintf("recordings/%d-%s", c.now().UnixMilli(), sanitizeFilename(audio.Filename))
	if err := c.storage.Save(ctx, key, audio.Data); err != nil {
		return "", domain.WrapError(domain.ErrStorage, "store audio", err)
	}
	return key, nil
}

func validateInput(in ports.CreateNoteInput) error {
	switch {
	case in.PatientID == "":
		return domain.WrapError(domain.ErrValidation, "validate input", errors.New("patientId is required"))
	case in.Type != domain.NoteTypeText && in.Type != domain.NoteTypeAudio:
		return domain.WrapError(domain.ErrValidation, "validate input", fmt.Errorf("unsupported note type %q", in.Type))
	case in.Type == domain.NoteTypeAudio && (in.Audio == nil || in.Audio.Data == nil):
		return domain.WrapError(domain.ErrValidation, "validate input", errors.New("audio payload is required for AUDIO notes"))
	}
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "recording.bin"
	}
	return base
}
