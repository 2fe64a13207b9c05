package domain

import "time"

// Patient is a read-only input to the note pipeline: its history enriches
// the composition prompt and it is never mutated here.
type Patient struct {
	ID          string    `json:"id"`
	MRN         string    `json:"mrn"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Sex         string    `json:"sex"`
	Allergies   []string  `json:"allergies"`
	Diagnoses   []string  `json:"diagnoses"`
	Medications []string  `json:"medications"`
}

func (p *Patient) FullName() string {
	if p == nil {
		return ""
	}
	return p.FirstName + " " + p.LastName
}
