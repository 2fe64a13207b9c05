package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clinscribe/clinical-scribe/internal/core/domain"
	"github.com/clinscribe/clinical-scribe/internal/core/ports"
)

// NoteReadService is the read model behind the UI: single note with its
// patient and entities, the reverse-chronological note list, pollable
// jobs and aggregate counts.
type NoteReadService struct {
	notes    ports.NoteRepository
	patients ports.PatientRepository
	jobs     ports.JobRepository
}

func NewNoteReadService(notes ports.NoteRepository, patients ports.PatientRepository, jobs ports.JobRepository) *NoteReadService {
	return &NoteReadService{notes: notes, patients: patients, jobs: jobs}
}

func (s *NoteReadService) GetNote(ctx context.Context, id string) (*ports.NoteDetail, error) {
	note, entities, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch note: %w", err)
	}
	return &ports.NoteDetail{
		Note:     *note,
		Patient:  s.patientOrNil(ctx, note.PatientID),
		Entities: entities,
	}, nil
}

func (s *NoteReadService) ListNotes(ctx context.Context) ([]ports.NoteSummary, error) {
	notes, err := s.notes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}

	summaries := make([]ports.NoteSummary, 0, len(notes))
	for _, note := range notes {
		summaries = append(summaries, ports.NoteSummary{
			Note:    note,
			Patient: s.patientOrNil(ctx, note.PatientID),
		})
	}
	return summaries, nil
}

func (s *NoteReadService) GetJob(ctx context.Context, id string) (*domain.NoteJob, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch note job: %w", err)
	}
	return job, nil
}

func (s *NoteReadService) Stats(ctx context.Context) (ports.Stats, error) {
	patientCount, err := s.patients.Count(ctx)
	if err != nil {
		return ports.Stats{}, fmt.Errorf("count patients: %w", err)
	}
	noteCount, err := s.notes.Count(ctx)
	if err != nil {
		return ports.Stats{}, fmt.Errorf("count notes: %w", err)
	}
	return ports.Stats{Patients: patientCount, Notes: noteCount}, nil
}

// A note whose patient row has gone missing still renders; the patient
// block is simply absent.
func (s *NoteReadService) patientOrNil(ctx context.Context, patientID string) *domain.Patient {
	patient, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		slog.Warn("note_patient_lookup_failed", "patient_id", patientID, "error", err)
		return nil
	}
	return patient
}
