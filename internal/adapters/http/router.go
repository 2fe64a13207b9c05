package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/clinscribe/clinical-scribe/internal/core/domain"
	"github.com/clinscribe/clinical-scribe/internal/core/ports"
	"github.com/clinscribe/clinical-scribe/internal/observability/metrics"
)

const (
	maxAudioUploadBytes  = 64 << 20
	idempotencyKeyHeader = "Idempotency-Key"
)

// ReportExporter renders the notes workbook for the export endpoint.
type ReportExporter interface {
	WriteNotesWorkbook(ctx context.Context, w io.Writer) error
}

type Router struct {
	creator  ports.NoteCreator
	enqueuer ports.NoteEnqueuer
	reader   ports.NoteReader
	exporter ReportExporter
	metrics  *metrics.HTTPServerMetrics
	log      *slog.Logger
}

func NewRouter(
	creator ports.NoteCreator,
	enqueuer ports.NoteEnqueuer,
	reader ports.NoteReader,
	exporter ReportExporter,
	m *metrics.HTTPServerMetrics,
	log *slog.Logger,
) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		creator:  creator,
		enqueuer: enqueuer,
		reader:   reader,
		exporter: exporter,
		metrics:  m,
		log:      log,
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	if rt.metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.metrics.Middleware("api", next)
		})
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Get("/healthz", rt.healthz)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/notes", rt.createNote)
		r.Get("/notes", rt.listNotes)
		r.Get("/notes/{noteID}", rt.getNote)
		r.Get("/jobs/{jobID}", rt.getJob)
		r.Get("/stats", rt.getStats)
		r.Get("/reports/notes.xlsx", rt.exportNotes)
	})
	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) createNote(w http.ResponseWriter, r *http.Request) {
	req, audio, err := parseCreateNoteRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	input := ports.CreateNoteInput{
		PatientID: req.PatientID,
		Type:      domain.NoteType(req.Type),
		Content:   req.Content,
		Audio:     audio,
	}

	if input.Type == domain.NoteTypeAudio {
		if audio == nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "multipart field 'audio' is required for AUDIO notes"})
			return
		}
		job, err := rt.enqueuer.EnqueueAudioNote(r.Context(), input, strings.TrimSpace(r.Header.Get(idempotencyKeyHeader)))
		if err != nil {
			rt.writeError(w, r, "enqueue audio note", err)
			return
		}
		if rt.metrics != nil {
			rt.metrics.RecordNoteCreated("api", string(input.Type), "async")
		}
		writeJSON(w, http.StatusAccepted, newJobResponse(job))
		return
	}

	note, err := rt.creator.CreateNote(r.Context(), input)
	if err != nil {
		rt.writeError(w, r, "create note", err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordNoteCreated("api", string(input.Type), "sync")
	}
	writeJSON(w, http.StatusCreated, note)
}

func parseCreateNoteRequest(r *http.Request) (createNoteRequest, *ports.AudioUpload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req createNoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return createNoteRequest{}, nil, errors.New("invalid json body")
		}
		return req, nil, nil
	}

	if err := r.ParseMultipartForm(maxAudioUploadBytes); err != nil {
		return createNoteRequest{}, nil, errors.New("invalid multipart body")
	}
	req := createNoteRequest{
		PatientID: r.FormValue("patient_id"),
		Type:      r.FormValue("type"),
		Content:   r.FormValue("content"),
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return req, nil, nil
		}
		return createNoteRequest{}, nil, errors.New("invalid multipart field 'audio'")
	}
	return req, &ports.AudioUpload{
		Data:        file,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
	}, nil
}

func (rt *Router) getNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "noteID")
	detail, err := rt.reader.GetNote(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (rt *Router) listNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := rt.reader.ListNotes(r.Context())
	if err != nil {
		rt.writeError(w, r, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

func (rt *Router) getJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	job, err := rt.reader.GetJob(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, "get job", err)
		return
	}
	writeJSON(w, http.StatusOK, newJobResponse(job))
}

func (rt *Router) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.reader.Stats(r.Context())
	if err != nil {
		rt.writeError(w, r, "get stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) exportNotes(w http.ResponseWriter, r *http.Request) {
	if rt.exporter == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "report export is not enabled"})
		return
	}

	var buf bytes.Buffer
	if err := rt.exporter.WriteNotesWorkbook(r.Context(), &buf); err != nil {
		rt.writeError(w, r, "export notes report", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="notes.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.log.Error(op+" failed",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, status, errorResponse{Error: domain.UserMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
