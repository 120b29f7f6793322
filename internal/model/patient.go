package model

import (
	"time"

	"github.com/google/uuid"
)

type Patient struct {
	Base
	ClinicianID    uuid.UUID  `db:"clinician_id" json:"clinician_id"`
	Name           string     `db:"name" json:"name"`
	DateOfBirth    *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Email          string     `db:"email" json:"email,omitempty"`
	Phone          string     `db:"phone" json:"phone,omitempty"`
	Address        string     `db:"address" json:"address,omitempty"`
	MedicalHistory string     `db:"medical_history" json:"medical_history,omitempty"`
}

// Age in whole years at the reference time, or -1 when the date of
// birth is unknown.
func (p *Patient) Age(at time.Time) int {
	if p.DateOfBirth == nil {
		return -1
	}
	dob := *p.DateOfBirth
	age := at.Year() - dob.Year()
	anniversary := dob.AddDate(age, 0, 0)
	if at.Before(anniversary) {
		age--
	}
	return age
}

type CreatePatientRequest struct {
	Name           string     `json:"name" binding:"required"`
	DateOfBirth    *time.Time `json:"date_of_birth" binding:"omitempty,pastdate"`
	Email          string     `json:"email" binding:"omitempty,email"`
	Phone          string     `json:"phone"`
	Address        string     `json:"address"`
	MedicalHistory string     `json:"medical_history"`
}

type PatientFilters struct {
	ClinicianID uuid.UUID
	SearchTerm  string
}
