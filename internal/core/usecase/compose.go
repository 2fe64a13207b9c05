package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clinscribe/clinical-scribe/internal/core/domain"
	"github.com/clinscribe/clinical-scribe/internal/core/ports"
)

const (
	planNoMedications      = "No specific medications identified."
	assessmentNoDiagnoses  = "No specific diagnoses identified."
	assessmentNotGenerated = "No specific assessment generated."
)

// GenerationObserver receives composition outcomes for instrumentation.
type GenerationObserver interface {
	RecordGeneration(provider, outcome string)
}

// NoteComposer builds the SOAP sections for a note. The plan is computed
// deterministically from the extracted medications; subjective, objective
// and assessment are requested from an ordered chain of text generation
// providers. Compose never fails: when every provider fails or no usable
// JSON comes back, deterministic defaults fill the sections.
type NoteComposer struct {
	providers []ports.TextGenerator
	observer  GenerationObserver
}

func NewNoteComposer(providers []ports.TextGenerator, observer GenerationObserver) *NoteComposer {
	return &NoteComposer{providers: providers, observer: observer}
}

type generatedSections struct {
	Subjective *string `json:"subjective"`
	Objective  *string `json:"objective"`
	Assessment *string `json:"assessment"`
}

func (c *NoteComposer) Compose(ctx context.Context, transcript string, patient *domain.Patient, entities []domain.MedicalEntity) domain.SOAPSections {
	subjectivePlaceholder := "Patient Transcript: " + transcript
	plan := buildPlan(entities)
	diagnoses := joinDiagnoses(entities)

	sections := domain.SOAPSections{
		Subjective: subjectivePlaceholder,
		Objective:  nil,
		Assessment: assessmentNoDiagnoses,
		Plan:       plan,
	}
	if diagnoses != "" {
		sections.Assessment = "Diagnoses: " + diagnoses
	}

	raw, provider, err := c.invokeChain(ctx, buildSOAPPrompt(transcript, patient, diagnoses))
	if err != nil {
		slog.Warn("soap_generation_degraded", "reason", "all providers failed", "error", err)
		c.observe("", "degraded")
		return sections
	}

	span, ok := extractJSONSpan(raw)
	if !ok {
		slog.Warn("soap_generation_degraded", "provider", provider, "reason", "no JSON object in response")
		c.observe(provider, "degraded")
		return sections
	}

	var generated generatedSections
	if err := json.Unmarshal([]byte(span), &generated); err != nil {
		slog.Warn("soap_generation_degraded", "provider", provider, "reason", "response JSON failed to parse", "error", err)
		c.observe(provider, "degraded")
		return sections
	}

	// Each missing key falls back to its own default rather than failing
	// the whole response.
	if generated.Subjective != nil && *generated.Subjective != "" {
		sections.Subjective = *generated.Subjective
	}
	sections.Objective = nil
	if generated.Objective != nil && *generated.Objective != "" {
		sections.Objective = generated.Objective
	}
	if generated.Assessment != nil && *generated.Assessment != "" {
		sections.Assessment = *generated.Assessment
	} else if diagnoses == "" {
		sections.Assessment = assessmentNotGenerated
	}

	c.observe(provider, "generated")
	return sections
}

// invokeChain tries each provider in order and returns the first
// successful response.
func (c *NoteComposer) invokeChain(ctx context.Context, prompt string) (response, provider string, err error) {
	if len(c.providers) == 0 {
		return "", "", errors.New("no text generation providers configured")
	}

	var failures []error
	for _, p := range c.providers {
		text, genErr := p.Generate(ctx, prompt)
		if genErr == nil {
			return text, p.Name(), nil
		}
		slog.Warn("soap_provider_failed", "provider", p.Name(), "error", genErr)
		c.observe(p.Name(), "failed")
		failures = append(failures, fmt.Errorf("%s: %w", p.Name(), genErr))
	}
	return "", "", domain.WrapError(domain.ErrGeneration, "invoke providers", errors.Join(failures...))
}

func (c *NoteComposer) observe(provider, outcome string) {
	if c.observer != nil {
		c.observer.RecordGeneration(provider, outcome)
	}
}

func buildPlan(entities []domain.MedicalEntity) string {
	var medications []string
	for _, e := range entities {
		if e.Category != domain.EntityMedication {
			continue
		}
		parts := []string{e.Text}
		if e.Dosage != nil && *e.Dosage != "" {
			parts = append(parts, *e.Dosage)
		}
		if e.Frequency != nil && *e.Frequency != "" {
			parts = append(parts, *e.Frequency)
		}
		medications = append(medications, strings.Join(parts, " "))
	}
	if len(medications) == 0 {
		return planNoMedications
	}
	return strings.Join(medications, ", ")
}

func joinDiagnoses(entities []domain.MedicalEntity) string {
	var diagnoses []string
	for _, e := range entities {
		if e.Category == domain.EntityDiagnosis {
			diagnoses = append(diagnoses, e.Text)
		}
	}
	return strings.Join(diagnoses, ", ")
}

func buildSOAPPrompt(transcript string, patient *domain.Patient, diagnoses string) string {
	if diagnoses == "" {
		diagnoses = "None identified"
	}

	var b strings.Builder
	b.WriteString(`You are a professional medical scribe. Transform the raw medical transcript below into a structured SOAP note. Keep the tone clinical and concise.

Context - Diagnosed Conditions: `)
	b.WriteString(diagnoses)
	b.WriteString("\n")

	if patient != nil {
		b.WriteString("\nPatient Context:\n")
		fmt.Fprintf(&b, "- Name: %s (%s, born %s)\n", patient.FullName(), patient.Sex, patient.DateOfBirth.Format("2006-01-02"))
		fmt.Fprintf(&b, "- Allergies: %s\n", listOrNone(patient.Allergies))
		fmt.Fprintf(&b, "- Known diagnoses: %s\n", listOrNone(patient.Diagnoses))
		fmt.Fprintf(&b, "- Current medications: %s\n", listOrNone(patient.Medications))
	}

	b.WriteString("\nRaw Transcript:\n\"")
	b.WriteString(transcript)
	b.WriteString(`"

Instructions:
1. Treat the transcript as a single-speaker medical dictation from a clinician.
2. Extract the "subjective" section from the patient symptoms and history described by the clinician.
3. Extract the "assessment" section from the clinician's findings and diagnoses.
4. Check the diagnosed conditions and patient context above for reference.
5. Output MUST be a valid JSON object with exactly the keys "subjective", "objective", "assessment". Do not include "plan".

Output JSON format:
{
  "subjective": "...",
  "objective": "...",
  "assessment": "..."
}
`)
	return b.String()
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none recorded"
	}
	return strings.Join(items, ", ")
}

// extractJSONSpan locates the first syntactically balanced {...} span in
// free-form model output, honoring string literals and escapes so nested
// braces inside values do not truncate the span.
func extractJSONSpan(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
