package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/consult-api/internal/model"
)

// All repository interfaces in one file
type (
	ConsultationRepository interface {
		Create(ctx context.Context, consultation *model.Consultation) error
		Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error)
		Update(ctx context.Context, consultation *model.Consultation) error
		List(ctx context.Context, filters *model.ConsultationFilters) ([]*model.Consultation, error)
		// UpdateProcessingStatus rejects transitions the state machine
		// forbids and is the only processing_status write path.
		UpdateProcessingStatus(ctx context.Context, id uuid.UUID, status model.ProcessingStatus) error
	}

	TranscriptRepository interface {
		Create(ctx context.Context, transcript *model.Transcript) error
		GetByConsultation(ctx context.Context, consultationID uuid.UUID) (*model.Transcript, error)
		Update(ctx context.Context, transcript *model.Transcript) error
	}

	DocumentRepository interface {
		Create(ctx context.Context, doc *model.ClinicalDocument) error
		Get(ctx context.Context, id uuid.UUID) (*model.ClinicalDocument, error)
		Update(ctx context.Context, doc *model.ClinicalDocument) error
		ListByConsultation(ctx context.Context, consultationID uuid.UUID) ([]*model.ClinicalDocument, error)
		CountUnapproved(ctx context.Context, consultationID uuid.UUID) (int, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, entityType string, entityID uuid.UUID) ([]*model.AuditLog, error)
		DeleteBefore(ctx context.Context, cutoff time.Time) error
	}
)
