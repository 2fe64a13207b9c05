package domain

import "time"

type NoteType string

const (
	NoteTypeText  NoteType = "TEXT"
	NoteTypeAudio NoteType = "AUDIO"
)

type NoteStatus string

// Status is monotonic: DRAFT -> PROCESSING -> FINAL or FAILED.
// The current flow persists notes only once they are FINAL; DRAFT and
// PROCESSING exist for async rollout and for the job record lifecycle.
const (
	NoteStatusDraft      NoteStatus = "DRAFT"
	NoteStatusProcessing NoteStatus = "PROCESSING"
	NoteStatusFinal      NoteStatus = "FINAL"
	NoteStatusFailed     NoteStatus = "FAILED"
)

type EntityCategory string

const (
	EntityDiagnosis  EntityCategory = "DIAGNOSIS"
	EntityMedication EntityCategory = "MEDICATION"
	EntitySymptom    EntityCategory = "SYMPTOM"
	EntityTest       EntityCategory = "TEST"
	EntityProcedure  EntityCategory = "PROCEDURE"
	EntityOther      EntityCategory = "OTHER"
)

type ClinicalNote struct {
	ID         string     `json:"id"`
	PatientID  string     `json:"patient_id"`
	Type       NoteType   `json:"type"`
	Status     NoteStatus `json:"status"`
	Content    string     `json:"content"`
	AudioKey   string     `json:"audio_key,omitempty"`
	Subjective string     `json:"subjective"`
	Objective  *string    `json:"objective"`
	Assessment string     `json:"assessment"`
	Plan       string     `json:"plan"`
	CreatedAt  time.Time  `json:"created_at"`
}

// MedicalEntity is one extracted clinical mention, owned by exactly one
// note. Dosage and Frequency are set only for MEDICATION entities and
// only when the detection service reported a matching attribute.
type MedicalEntity struct {
	ID        string         `json:"id"`
	NoteID    string         `json:"note_id"`
	Text      string         `json:"text"`
	Category  EntityCategory `json:"category"`
	Score     float64        `json:"score"`
	Dosage    *string        `json:"dosage"`
	Frequency *string        `json:"frequency"`
}

// SOAPSections is the composed note body. Objective may legitimately be
// absent; every other section always carries text.
type SOAPSections struct {
	Subjective string  `json:"subjective"`
	Objective  *string `json:"objective"`
	Assessment string  `json:"assessment"`
	Plan       string  `json:"plan"`
}

// DetectedEntity is the raw output of the medical entity detection
// service, before category filtering and attribute selection.
type DetectedEntity struct {
	Text       string
	Category   string
	Score      float64
	Attributes []EntityAttribute
}

type EntityAttribute struct {
	Type  string
	Text  string
	Score float64
}
