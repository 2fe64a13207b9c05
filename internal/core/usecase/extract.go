package usecase

import (
	"context"
	"errors"
	"sort"

	"github.com/clinscribe/clinical-scribe/internal/core/domain"
	"github.com/clinscribe/clinical-scribe/internal/core/ports"
)

// Detection service categories retained by the extractor. Everything else
// (anatomy, protected health information, time expressions) is dropped.
const (
	detectedMedication       = "MEDICATION"
	detectedMedicalCondition = "MEDICAL_CONDITION"

	attributeDosage    = "DOSAGE"
	attributeFrequency = "FREQUENCY"
)

type EntityExtractor struct {
	detector ports.EntityDetector
}

func NewEntityExtractor(detector ports.EntityDetector) *EntityExtractor {
	return &EntityExtractor{detector: detector}
}

// Extract detects medical entities in the transcript and maps them into
// the domain model. Only medications and medical conditions survive; a
// medication keeps its highest-confidence dosage and frequency attribute.
func (e *EntityExtractor) Extract(ctx context.Context, transcript string) ([]domain.MedicalEntity, error) {
	if transcript == "" {
		return nil, domain.WrapError(domain.ErrValidation, "extract entities", errors.New("transcript is empty"))
	}

	detected, err := e.detector.Detect(ctx, transcript)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "detect entities", err)
	}

	entities := make([]domain.MedicalEntity, 0, len(detected))
	for _, d := range detected {
		category, ok := mapCategory(d.Category)
		if !ok {
			continue
		}

		text := d.Text
		if text == "" {
			text = "Unknown Entity"
		}

		entity := domain.MedicalEntity{
			Text:     text,
			Category: category,
			Score:    d.Score,
		}
		if category == domain.EntityMedication {
			entity.Dosage = topAttribute(d.Attributes, attributeDosage)
			entity.Frequency = topAttribute(d.Attributes, attributeFrequency)
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

func mapCategory(provider string) (domain.EntityCategory, bool) {
	switch provider {
	case detectedMedicalCondition:
		return domain.EntityDiagnosis, true
	case detectedMedication:
		return domain.EntityMedication, true
	default:
		return "", false
	}
}

// topAttribute returns the text of the highest-scoring attribute of the
// given type. The sort is stable, so equal scores keep their original
// order and the first reported match wins a tie.
func topAttribute(attributes []domain.EntityAttribute, attrType string) *string {
	matches := make([]domain.EntityAttribute, 0, len(attributes))
	for _, a := range attributes {
		if a.Type == attrType {
			matches = append(matches, a)
		}
	}
	if len(matches) == 0 {
		return nil
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if matches[0].Text == "" {
		return nil
	}
	text := matches[0].Text
	return &text
}
