package model

import (
	"time"

	"github.com/google/uuid"
)

type ConsultationStatus string

const (
	ConsultationStatusScheduled  ConsultationStatus = "scheduled"
	ConsultationStatusInProgress ConsultationStatus = "in_progress"
	ConsultationStatusCompleted  ConsultationStatus = "completed"
	ConsultationStatusCancelled  ConsultationStatus = "cancelled"
)

// ProcessingStatus tracks a consultation's progress through the document
// pipeline. Transitions move forward through the chain; failed is
// reachable only from the three active stages, and a fresh audio upload
// re-enters the chain at transcribing.
type ProcessingStatus string

const (
	ProcessingPending             ProcessingStatus = "pending"
	ProcessingTranscribing        ProcessingStatus = "transcribing"
	ProcessingExtracting          ProcessingStatus = "extracting"
	ProcessingGeneratingDocuments ProcessingStatus = "generating_documents"
	ProcessingReadyForReview      ProcessingStatus = "ready_for_review"
	ProcessingApproved            ProcessingStatus = "approved"
	ProcessingFailed              ProcessingStatus = "failed"
)

var processingNext = map[ProcessingStatus]map[ProcessingStatus]bool{
	ProcessingPending:             {ProcessingTranscribing: true},
	ProcessingTranscribing:        {ProcessingExtracting: true},
	ProcessingExtracting:          {ProcessingGeneratingDocuments: true},
	ProcessingGeneratingDocuments: {ProcessingReadyForReview: true},
	// A re-run of document generation steps back from ready_for_review
	// before producing a fresh set of drafts.
	ProcessingReadyForReview: {
		ProcessingApproved:            true,
		ProcessingGeneratingDocuments: true,
	},
	// Uploading new audio restarts a failed pipeline.
	ProcessingFailed: {ProcessingTranscribing: true},
}

var processingFailable = map[ProcessingStatus]bool{
	ProcessingTranscribing:        true,
	ProcessingExtracting:          true,
	ProcessingGeneratingDocuments: true,
}

// CanAdvanceTo reports whether the transition s -> to is legal. Setting
// the same status again is allowed: a retried task re-issues its status
// writes and those are idempotent.
func (s ProcessingStatus) CanAdvanceTo(to ProcessingStatus) bool {
	if s == to {
		return true
	}
	if to == ProcessingFailed {
		return processingFailable[s]
	}
	return processingNext[s][to]
}

// Terminal reports whether the pipeline will make no further writes to a
// consultation in this state without external action: document approval
// advances ready_for_review, a new audio upload restarts failed.
func (s ProcessingStatus) Terminal() bool {
	return s == ProcessingFailed || s == ProcessingReadyForReview || s == ProcessingApproved
}

type Consultation struct {
	Base
	PatientID        uuid.UUID          `db:"patient_id" json:"patient_id"`
	ClinicianID      uuid.UUID          `db:"clinician_id" json:"clinician_id"`
	ConsultationDate time.Time          `db:"consultation_date" json:"consultation_date"`
	ConsultationTime string             `db:"consultation_time" json:"consultation_time"`
	ConsultationType string             `db:"consultation_type" json:"consultation_type"`
	Status           ConsultationStatus `db:"status" json:"status"`
	ProcessingStatus ProcessingStatus   `db:"processing_status" json:"processing_status"`
	RecordingURL     *string            `db:"recording_url" json:"recording_url,omitempty"`
	Notes            string             `db:"notes" json:"notes,omitempty"`
}

type CreateConsultationRequest struct {
	PatientID        uuid.UUID `json:"patient_id" binding:"required"`
	ConsultationDate time.Time `json:"consultation_date" binding:"required"`
	ConsultationTime string    `json:"consultation_time" binding:"required"`
	ConsultationType string    `json:"consultation_type" binding:"required"`
	Notes            string    `json:"notes"`
}

type UpdateConsultationRequest struct {
	ConsultationDate *time.Time          `json:"consultation_date"`
	ConsultationTime *string             `json:"consultation_time"`
	ConsultationType *string             `json:"consultation_type"`
	Status           *ConsultationStatus `json:"status"`
	Notes            *string             `json:"notes"`
}

type ConsultationFilters struct {
	ClinicianID uuid.UUID
	PatientID   uuid.UUID
	Status      ConsultationStatus
}
