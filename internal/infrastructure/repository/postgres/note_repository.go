package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/clinscribe/clinical-scribe/internal/core/domain"
)

type NoteRepository struct {
	db *sql.DB
}

func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// SaveWithEntities writes the note and its entities in one transaction.
// Either everything lands or nothing does; there is no window where a
// note exists without its entities.
func (r *NoteRepository) SaveWithEntities(ctx context.Context, note *domain.ClinicalNote, entities []domain.MedicalEntity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin note tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO clinical_notes (
	id, patient_id, type, status, content, audio_key, subjective, objective, assessment, plan, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		note.ID, note.PatientID, string(note.Type), string(note.Status), note.Content, note.AudioKey,
		note.Subjective, note.Objective, note.Assessment, note.Plan, note.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}

	for _, e := range entities {
		_, err = tx.ExecContext(ctx, `
INSERT INTO medical_entities (id, note_id, text, category, score, dosage, frequency)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
			e.ID, e.NoteID, e.Text, string(e.Category), e.Score, e.Dosage, e.Frequency,
		)
		if err != nil {
			return fmt.Errorf("insert entity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit note tx: %w", err)
	}
	return nil
}

func (r *NoteRepository) GetByID(ctx context.Context, id string) (*domain.ClinicalNote, []domain.MedicalEntity, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, patient_id, type, status, content, audio_key, subjective, objective, assessment, plan, created_at
FROM clinical_notes
WHERE id = $1
`, id)

	note, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, domain.WrapError(domain.ErrNotFound, "get note", fmt.Errorf("note %s", id))
		}
		return nil, nil, fmt.Errorf("scan note: %w", err)
	}

	entities, err := r.entitiesForNote(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return note, entities, nil
}

func (r *NoteRepository) List(ctx context.Context) ([]domain.ClinicalNote, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, patient_id, type, status, content, audio_key, subjective, objective, assessment, plan, created_at
FROM clinical_notes
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var notes []domain.ClinicalNote
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, *note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}

func (r *NoteRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clinical_notes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count notes: %w", err)
	}
	return count, nil
}

func (r *NoteRepository) entitiesForNote(ctx context.Context, noteID string) ([]domain.MedicalEntity, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, note_id, text, category, score, dosage, frequency
FROM medical_entities
WHERE note_id = $1
`, noteID)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	var entities []domain.MedicalEntity
	for rows.Next() {
		var e domain.MedicalEntity
		var category string
		if err := rows.Scan(&e.ID, &e.NoteID, &e.Text, &category, &e.Score, &e.Dosage, &e.Frequency); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e.Category = domain.EntityCategory(category)
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return entities, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*domain.ClinicalNote, error) {
	var note domain.ClinicalNote
	var noteType, status string
	err := row.Scan(
		&note.ID, &note.PatientID, &noteType, &status, &note.Content, &note.AudioKey,
		&note.Subjective, &note.Objective, &note.Assessment, &note.Plan, &note.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	note.Type = domain.NoteType(noteType)
	note.Status = domain.NoteStatus(status)
	return &note, nil
}
