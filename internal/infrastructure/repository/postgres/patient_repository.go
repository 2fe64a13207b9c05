package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/clinscribe/clinical-scribe/internal/core/domain"
)

type PatientRepository struct {
	db *sql.DB
}

func NewPatientRepository(db *sql.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) GetByID(ctx context.Context, id string) (*domain.Patient, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, mrn, first_name, last_name, date_of_birth, sex, allergies, diagnoses, medications
FROM patients
WHERE id = $1
`, id)

	var p domain.Patient
	var allergiesRaw, diagnosesRaw, medicationsRaw []byte
	err := row.Scan(
		&p.ID, &p.MRN, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Sex,
		&allergiesRaw, &diagnosesRaw, &medicationsRaw,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get patient", fmt.Errorf("patient %s", id))
		}
		return nil, fmt.Errorf("scan patient: %w", err)
	}

	if err := json.Unmarshal(allergiesRaw, &p.Allergies); err != nil {
		return nil, fmt.Errorf("unmarshal allergies: %w", err)
	}
	if err := json.Unmarshal(diagnosesRaw, &p.Diagnoses); err != nil {
		return nil, fmt.Errorf("unmarshal diagnoses: %w", err)
	}
	if err := json.Unmarshal(medicationsRaw, &p.Medications); err != nil {
		return nil, fmt.Errorf("unmarshal medications: %w", err)
	}
	return &p, nil
}

func (r *PatientRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM patients`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count patients: %w", err)
	}
	return count, nil
}
