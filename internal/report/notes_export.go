package report

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/clinscribe/clinical-scribe/internal/core/ports"
)

const (
	notesSheet   = "Notes"
	summarySheet = "Summary"
)

// NotesExporter renders the current note list as an Excel workbook for
// offline review.
type NotesExporter struct {
	reader ports.NoteReader
}

func NewNotesExporter(reader ports.NoteReader) *NotesExporter {
	return &NotesExporter{reader: reader}
}

func (e *NotesExporter) WriteNotesWorkbook(ctx context.Context, w io.Writer) error {
	notes, err := e.reader.ListNotes(ctx)
	if err != nil {
		return fmt.Errorf("load notes: %w", err)
	}
	stats, err := e.reader.Stats(ctx)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	f.SetSheetName("Sheet1", notesSheet)
	header := []any{
		"Note ID", "Patient", "MRN", "Type", "Status",
		"Subjective", "Objective", "Assessment", "Plan", "Created At",
	}
	if err := f.SetSheetRow(notesSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, summary := range notes {
		row, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row address: %w", err)
		}
		if err := f.SetSheetRow(notesSheet, row, noteRow(summary)); err != nil {
			return fmt.Errorf("write note row: %w", err)
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	summaryRows := [][]any{
		{"Patients", stats.Patients},
		{"Notes", stats.Notes},
	}
	for i, cells := range summaryRows {
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("summary address: %w", err)
		}
		row := cells
		if err := f.SetSheetRow(summarySheet, addr, &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func noteRow(summary ports.NoteSummary) *[]any {
	note := summary.Note

	patientName := ""
	mrn := ""
	if summary.Patient != nil {
		patientName = summary.Patient.FullName()
		mrn = summary.Patient.MRN
	}

	objective := ""
	if note.Objective != nil {
		objective = *note.Objective
	}

	row := []any{
		note.ID,
		patientName,
		mrn,
		string(note.Type),
		string(note.Status),
		note.Subjective,
		objective,
		note.Assessment,
		note.Plan,
		note.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
	return &row
}
