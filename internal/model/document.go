package model

import (
	"time"

	"github.com/google/uuid"
)

type DocumentType string

const (
	DocumentTypeSOAPNote        DocumentType = "soap_note"
	DocumentTypePatientLetter   DocumentType = "patient_letter"
	DocumentTypeGPLetter        DocumentType = "gp_letter"
	DocumentTypeReferralLetter  DocumentType = "referral_letter"
	DocumentTypeInsuranceLetter DocumentType = "insurance_letter"
)

type DocumentStatus string

const (
	DocumentStatusDraft    DocumentStatus = "draft"
	DocumentStatusApproved DocumentStatus = "approved"
	DocumentStatusSent     DocumentStatus = "sent"
)

// ClinicalDocument is a generated, versioned, approvable text artifact
// tied to a consultation. Approval is one-way; approved content is
// immutable.
type ClinicalDocument struct {
	Base
	ConsultationID uuid.UUID      `db:"consultation_id" json:"consultation_id"`
	DocumentType   DocumentType   `db:"document_type" json:"document_type"`
	Content        string         `db:"content" json:"content"`
	Status         DocumentStatus `db:"status" json:"status"`
	Version        int            `db:"version" json:"version"`
	ApprovedAt     *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	ApprovedBy     *uuid.UUID     `db:"approved_by" json:"approved_by,omitempty"`
}

type UpdateDocumentRequest struct {
	Content string `json:"content" binding:"required"`
}

type SendDocumentRequest struct {
	Recipient string `json:"recipient" binding:"required,email"`
	Subject   string `json:"subject"`
}
