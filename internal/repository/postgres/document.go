package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/consult-api/internal/model"
	"github.com/jwalitptl/consult-api/internal/repository"
	apperrors "github.com/jwalitptl/consult-api/pkg/errors"
)

type documentRepository struct {
	BaseRepository
}

func NewDocumentRepository(base BaseRepository) repository.DocumentRepository {
	return &documentRepository{base}
}

// Create commits each document independently. The generation task relies
// on this: a failed letter must not roll back the documents persisted
// before it.
func (r *documentRepository) Create(ctx context.Context, doc *model.ClinicalDocument) error {
	query := `
		INSERT INTO clinical_documents (
			id, consultation_id, document_type, content, status, version,
			approved_at, approved_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		doc.ID,
		doc.ConsultationID,
		doc.DocumentType,
		doc.Content,
		doc.Status,
		doc.Version,
		doc.ApprovedAt,
		doc.ApprovedBy,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create clinical document: %w", err)
	}
	return nil
}

func (r *documentRepository) Get(ctx context.Context, id uuid.UUID) (*model.ClinicalDocument, error) {
	query := `SELECT * FROM clinical_documents WHERE id = $1`

	var doc model.ClinicalDocument
	if err := r.GetDB().GetContext(ctx, &doc, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("clinical document", err)
		}
		return nil, fmt.Errorf("failed to get clinical document: %w", err)
	}
	return &doc, nil
}

func (r *documentRepository) Update(ctx context.Context, doc *model.ClinicalDocument) error {
	doc.UpdatedAt = time.Now()

	query := `
		UPDATE clinical_documents SET
			content = $1,
			status = $2,
			version = $3,
			approved_at = $4,
			approved_by = $5,
			updated_at = $6
		WHERE id = $7
	`
	result, err := r.GetDB().ExecContext(ctx, query,
		doc.Content,
		doc.Status,
		doc.Version,
		doc.ApprovedAt,
		doc.ApprovedBy,
		doc.UpdatedAt,
		doc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update clinical document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("clinical document", nil)
	}
	return nil
}

func (r *documentRepository) ListByConsultation(ctx context.Context, consultationID uuid.UUID) ([]*model.ClinicalDocument, error) {
	query := `
		SELECT * FROM clinical_documents
		WHERE consultation_id = $1
		ORDER BY created_at ASC
	`
	var docs []*model.ClinicalDocument
	if err := r.GetDB().SelectContext(ctx, &docs, query, consultationID); err != nil {
		return nil, fmt.Errorf("failed to list clinical documents: %w", err)
	}
	return docs, nil
}

func (r *documentRepository) CountUnapproved(ctx context.Context, consultationID uuid.UUID) (int, error) {
	// Sent documents were approved first, so only drafts block the
	// consultation's approval.
	query := `
		SELECT COUNT(*) FROM clinical_documents
		WHERE consultation_id = $1 AND status = $2
	`
	var count int
	if err := r.GetDB().GetContext(ctx, &count, query, consultationID, model.DocumentStatusDraft); err != nil {
		return 0, fmt.Errorf("failed to count unapproved documents: %w", err)
	}
	return count, nil
}
