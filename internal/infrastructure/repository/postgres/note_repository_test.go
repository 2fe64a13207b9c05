package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/clinscribe/clinical-scribe/internal/core/domain"
)

var noteColumns = []string{
	"id", "patient_id", "type", "status", "content", "audio_key",
	"subjective", "objective", "assessment", "plan", "created_at",
}

func strptr(s string) *string { return &s }

func sampleNote() *domain.ClinicalNote {
	return &domain.ClinicalNote{
		ID:         "n1",
		PatientID:  "p1",
		Type:       domain.NoteTypeAudio,
		Status:     domain.NoteStatusFinal,
		Content:    "transcript",
		AudioKey:   "recordings/1-a.webm",
		Subjective: "s",
		Objective:  strptr("o"),
		Assessment: "a",
		Plan:       "p",
		CreatedAt:  time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestSaveWithEntitiesCommitsNoteAndEntitiesTogether(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	note := sampleNote()
	entities := []domain.MedicalEntity{
		{ID: "e1", NoteID: "n1", Text: "Lisinopril", Category: domain.EntityMedication, Score: 0.97, Dosage: strptr("10mg")},
		{ID: "e2", NoteID: "n1", Text: "hypertension", Category: domain.EntityDiagnosis, Score: 0.91},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO clinical_notes`)).
		WithArgs(
			note.ID, note.PatientID, "AUDIO", "FINAL", note.Content, note.AudioKey,
			note.Subjective, note.Objective, note.Assessment, note.Plan, note.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO medical_entities`)).
		WithArgs("e1", "n1", "Lisinopril", "MEDICATION", 0.97, entities[0].Dosage, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO medical_entities`)).
		WithArgs("e2", "n1", "hypertension", "DIAGNOSIS", 0.91, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := NewNoteRepository(db)
	if err := repo.SaveWithEntities(context.Background(), note, entities); err != nil {
		t.Fatalf("SaveWithEntities: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveWithEntitiesRollsBackWhenEntityInsertFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	note := sampleNote()
	entities := []domain.MedicalEntity{
		{ID: "e1", NoteID: "n1", Text: "Lisinopril", Category: domain.EntityMedication, Score: 0.97},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO clinical_notes`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO medical_entities`)).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	repo := NewNoteRepository(db)
	if err := repo.SaveWithEntities(context.Background(), note, entities); err == nil {
		t.Fatal("expected insert error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDReturnsNoteWithEntities(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	note := sampleNote()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM clinical_notes`)).
		WithArgs("n1").
		WillReturnRows(sqlmock.NewRows(noteColumns).AddRow(
			note.ID, note.PatientID, "AUDIO", "FINAL", note.Content, note.AudioKey,
			note.Subjective, *note.Objective, note.Assessment, note.Plan, note.CreatedAt,
		))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM medical_entities`)).
		WithArgs("n1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "note_id", "text", "category", "score", "dosage", "frequency"}).
			AddRow("e1", "n1", "Lisinopril", "MEDICATION", 0.97, "10mg", nil))

	repo := NewNoteRepository(db)
	got, entities, err := repo.GetByID(context.Background(), "n1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ID != "n1" || got.Type != domain.NoteTypeAudio || got.Status != domain.NoteStatusFinal {
		t.Fatalf("note = %+v", got)
	}
	if got.Objective == nil || *got.Objective != "o" {
		t.Fatalf("objective = %v", got.Objective)
	}
	if len(entities) != 1 || entities[0].Category != domain.EntityMedication {
		t.Fatalf("entities = %+v", entities)
	}
	if entities[0].Dosage == nil || *entities[0].Dosage != "10mg" {
		t.Fatalf("dosage = %v", entities[0].Dosage)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM clinical_notes`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(noteColumns))

	repo := NewNoteRepository(db)
	_, _, err = repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at DESC`)).
		WillReturnRows(sqlmock.NewRows(noteColumns).
			AddRow("n2", "p1", "TEXT", "FINAL", "b", "", "s", nil, "a", "p", now).
			AddRow("n1", "p1", "TEXT", "FINAL", "a", "", "s", nil, "a", "p", now.Add(-time.Hour)))

	repo := NewNoteRepository(db)
	notes, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(notes) != 2 || notes[0].ID != "n2" {
		t.Fatalf("notes = %+v", notes)
	}
	if notes[0].Objective != nil {
		t.Fatalf("objective should be nil, got %v", *notes[0].Objective)
	}
}

func TestNoteCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM clinical_notes`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	repo := NewNoteRepository(db)
	count, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 7 {
		t.Fatalf("count = %d", count)
	}
}
