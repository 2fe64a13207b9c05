package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clinscribe/clinical-scribe/internal/core/domain"
	"github.com/clinscribe/clinical-scribe/internal/core/ports"
)

type fakeCreator struct {
	note *domain.ClinicalNote
	err  error
	got  ports.CreateNoteInput
}

func (c *fakeCreator) CreateNote(_ context.Context, in ports.CreateNoteInput) (*domain.ClinicalNote, error) {
	c.got = in
	return c.note, c.err
}

type fakeEnqueuer struct {
	job    *domain.NoteJob
	err    error
	got    ports.CreateNoteInput
	gotKey string
}

func (e *fakeEnqueuer) EnqueueAudioNote(_ context.Context, in ports.CreateNoteInput, key string) (*domain.NoteJob, error) {
	e.got = in
	e.gotKey = key
	return e.job, e.err
}

type fakeReader struct {
	detail  *ports.NoteDetail
	detErr  error
	notes   []ports.NoteSummary
	listErr error
	job     *domain.NoteJob
	jobErr  error
	stats   ports.Stats
}

func (r *fakeReader) GetNote(context.Context, string) (*ports.NoteDetail, error) {
	return r.detail, r.detErr
}

func (r *fakeReader) ListNotes(context.Context) ([]ports.NoteSummary, error) {
	return r.notes, r.listErr
}

func (r *fakeReader) GetJob(context.Context, string) (*domain.NoteJob, error) {
	return r.job, r.jobErr
}

func (r *fakeReader) Stats(context.Context) (ports.Stats, error) {
	return r.stats, nil
}

type fakeExporter struct {
	payload string
	err     error
}

func (e *fakeExporter) WriteNotesWorkbook(_ context.Context, w io.Writer) error {
	if e.err != nil {
		return e.err
	}
	_, err := io.WriteString(w, e.payload)
	return err
}

type routerFixture struct {
	creator  *fakeCreator
	enqueuer *fakeEnqueuer
	reader   *fakeReader
	exporter *fakeExporter
	handler  http.Handler
}

func newRouterFixture() *routerFixture {
	f := &routerFixture{
		creator: &fakeCreator{note: &domain.ClinicalNote{
			ID: "n1", PatientID: "p1", Type: domain.NoteTypeText, Status: domain.NoteStatusFinal,
		}},
		enqueuer: &fakeEnqueuer{job: &domain.NoteJob{
			ID: "j1", PatientID: "p1", Status: domain.JobStatusQueued,
			CreatedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
			UpdatedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		}},
		reader:   &fakeReader{stats: ports.Stats{Patients: 2, Notes: 5}},
		exporter: &fakeExporter{payload: "workbook-bytes"},
	}
	f.handler = NewRouter(f.creator, f.enqueuer, f.reader, f.exporter, nil, nil).Handler()
	return f
}

func TestCreateTextNoteReturns201(t *testing.T) {
	f := newRouterFixture()

	body := `{"patient_id":"p1","type":"TEXT","content":"patient doing well"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/notes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if f.creator.got.Content != "patient doing well" || f.creator.got.Type != domain.NoteTypeText {
		t.Fatalf("creator input = %+v", f.creator.got)
	}

	var note domain.ClinicalNote
	if err := json.Unmarshal(rec.Body.Bytes(), &note); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if note.ID != "n1" {
		t.Fatalf("note = %+v", note)
	}
}

func TestCreateAudioNoteReturns202WithJob(t *testing.T) {
	f := newRouterFixture()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("patient_id", "p1")
	_ = mw.WriteField("type", "AUDIO")
	part, _ := mw.CreateFormFile("audio", "visit.webm")
	_, _ = part.Write([]byte("webm bytes"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/notes", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Idempotency-Key", "idem-1")
	rec := httptest.NewRecorder()

	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if f.enqueuer.gotKey != "idem-1" {
		t.Fatalf("idempotency key = %q", f.enqueuer.gotKey)
	}
	if f.enqueuer.got.Audio == nil || f.enqueuer.got.Audio.Filename != "visit.webm" {
		t.Fatalf("audio upload = %+v", f.enqueuer.got.Audio)
	}

	var job jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if job.ID != "j1" || job.Status != "queued" {
		t.Fatalf("job = %+v", job)
	}
}

func TestCreateNoteValidationFailures(t *testing.T) {
	f := newRouterFixture()

	cases := []struct {
		name string
		body string
	}{
		{"missing patient", `{"type":"TEXT","content":"x"}`},
		{"bad type", `{"patient_id":"p1","type":"VIDEO"}`},
		{"text without content", `{"patient_id":"p1","type":"TEXT"}`},
		{"broken json", `{"patient_id":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/notes", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			f.handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateAudioNoteWithoutFile(t *testing.T) {
	f := newRouterFixture()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("patient_id", "p1")
	_ = mw.WriteField("type", "AUDIO")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/notes", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestCreateNoteErrorsAreSanitized(t *testing.T) {
	f := newRouterFixture()
	f.creator.note = nil
	f.creator.err = domain.WrapError(domain.ErrTranscription, "poll transcription job",
		errors.New("voxmed.internal:9400 refused connection"))

	req := httptest.NewRequest(http.MethodPost, "/v1/notes",
		strings.NewReader(`{"patient_id":"p1","type":"TEXT","content":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "voxmed.internal") {
		t.Fatalf("internal detail leaked: %s", rec.Body.String())
	}
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != domain.UserMessage(f.creator.err) {
		t.Fatalf("error message = %q", resp.Error)
	}
}

func TestGetNote(t *testing.T) {
	f := newRouterFixture()
	f.reader.detail = &ports.NoteDetail{
		Note: domain.ClinicalNote{ID: "n1", Status: domain.NoteStatusFinal},
		Entities: []domain.MedicalEntity{
			{ID: "e1", NoteID: "n1", Text: "Lisinopril"},
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/notes/n1", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var detail ports.NoteDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if detail.Note.ID != "n1" || len(detail.Entities) != 1 {
		t.Fatalf("detail = %+v", detail)
	}
}

func TestGetNoteNotFound(t *testing.T) {
	f := newRouterFixture()
	f.reader.detErr = domain.WrapError(domain.ErrNotFound, "get note", errors.New("n-missing"))

	req := httptest.NewRequest(http.MethodGet, "/v1/notes/n-missing", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetJob(t *testing.T) {
	f := newRouterFixture()
	f.reader.job = &domain.NoteJob{ID: "j1", Status: domain.JobStatusFailed, Error: "Failed to transcribe the audio recording. Please try again."}

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/j1", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var job jobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if job.Status != "failed" || job.Error == "" {
		t.Fatalf("job = %+v", job)
	}
}

func TestGetStats(t *testing.T) {
	f := newRouterFixture()

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats ports.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.Patients != 2 || stats.Notes != 5 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestExportNotesWorkbook(t *testing.T) {
	f := newRouterFixture()

	req := httptest.NewRequest(http.MethodGet, "/v1/reports/notes.xlsx", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("content type = %q", got)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "notes.xlsx") {
		t.Fatalf("content disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	if rec.Body.String() != "workbook-bytes" {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestExportNotesFailureReturnsJSONError(t *testing.T) {
	f := newRouterFixture()
	f.exporter.err = errors.New("workbook build failed")
	f.handler = NewRouter(f.creator, f.enqueuer, f.reader, f.exporter, nil, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/reports/notes.xlsx", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("content type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestHealthz(t *testing.T) {
	f := newRouterFixture()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequestIDHeaderEchoed(t *testing.T) {
	f := newRouterFixture()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-Id"); got != "req-123" {
		t.Fatalf("request id = %q", got)
	}
}

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	f := newRouterFixture()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatal("request id not generated")
	}
}
