package document

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/consult-api/internal/email"
	"github.com/jwalitptl/consult-api/internal/model"
	"github.com/jwalitptl/consult-api/internal/repository"
	"github.com/jwalitptl/consult-api/internal/service/audit"
	apperrors "github.com/jwalitptl/consult-api/pkg/errors"
	"github.com/jwalitptl/consult-api/pkg/logger"
)

type Service struct {
	documents     repository.DocumentRepository
	consultations repository.ConsultationRepository
	mailer        email.Service
	auditor       *audit.Service
	logger        *logger.Logger
}

func NewService(
	documents repository.DocumentRepository,
	consultations repository.ConsultationRepository,
	mailer email.Service,
	auditor *audit.Service,
	logger *logger.Logger,
) *Service {
	return &Service{
		documents:     documents,
		consultations: consultations,
		mailer:        mailer,
		auditor:       auditor,
		logger:        logger,
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.ClinicalDocument, error) {
	return s.documents.Get(ctx, id)
}

func (s *Service) ListByConsultation(ctx context.Context, consultationID uuid.UUID) ([]*model.ClinicalDocument, error) {
	return s.documents.ListByConsultation(ctx, consultationID)
}

// Update edits a draft document's content. Approved content is
// immutable; a content change bumps the version.
func (s *Service) Update(ctx context.Context, actorID, id uuid.UUID, req *model.UpdateDocumentRequest) (*model.ClinicalDocument, error) {
	doc, err := s.documents.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if doc.Status == model.DocumentStatusApproved {
		return nil, apperrors.NewConflict("cannot edit an approved document")
	}

	if req.Content != doc.Content {
		doc.Content = req.Content
		doc.Version++
	}

	if err := s.documents.Update(ctx, doc); err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, actorID, model.AuditActionUpdate, model.AuditEntityDocument, id, &audit.LogOptions{
		Changes: map[string]interface{}{"version": doc.Version},
	})
	return doc, nil
}

// Approve is one-way. When the last unapproved document of the
// consultation is approved, the consultation's processing status
// advances to approved.
func (s *Service) Approve(ctx context.Context, actorID, id uuid.UUID) (*model.ClinicalDocument, error) {
	doc, err := s.documents.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if doc.Status == model.DocumentStatusApproved {
		return nil, apperrors.NewConflict("document is already approved")
	}

	now := time.Now()
	doc.Status = model.DocumentStatusApproved
	doc.ApprovedAt = &now
	doc.ApprovedBy = &actorID
	if err := s.documents.Update(ctx, doc); err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, actorID, model.AuditActionApprove, model.AuditEntityDocument, id, nil)

	remaining, err := s.documents.CountUnapproved(ctx, doc.ConsultationID)
	if err != nil {
		return nil, err
	}
	if remaining == 0 {
		if err := s.consultations.UpdateProcessingStatus(ctx, doc.ConsultationID, model.ProcessingApproved); err != nil {
			return nil, err
		}
		s.logger.Info("All documents approved",
			"consultation_id", doc.ConsultationID.String())
	}

	return doc, nil
}

// Send emails an approved document to its recipient and marks it sent.
func (s *Service) Send(ctx context.Context, actorID, id uuid.UUID, req *model.SendDocumentRequest) (*model.ClinicalDocument, error) {
	doc, err := s.documents.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if doc.Status == model.DocumentStatusDraft {
		return nil, apperrors.NewConflict("cannot send an unapproved document")
	}

	subject := req.Subject
	if subject == "" {
		subject = fmt.Sprintf("Clinical document: %s", doc.DocumentType)
	}

	if err := s.mailer.SendDocument(ctx, req.Recipient, subject, doc.Content); err != nil {
		return nil, err
	}

	doc.Status = model.DocumentStatusSent
	if err := s.documents.Update(ctx, doc); err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, actorID, model.AuditActionSend, model.AuditEntityDocument, id, &audit.LogOptions{
		Changes: map[string]interface{}{"recipient": req.Recipient},
	})
	return doc, nil
}
