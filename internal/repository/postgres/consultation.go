package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/consult-api/internal/model"
	"github.com/jwalitptl/consult-api/internal/repository"
	apperrors "github.com/jwalitptl/consult-api/pkg/errors"
)

type consultationRepository struct {
	BaseRepository
}

func NewConsultationRepository(base BaseRepository) repository.ConsultationRepository {
	return &consultationRepository{base}
}

func (r *consultationRepository) Create(ctx context.Context, consultation *model.Consultation) error {
	query := `
		INSERT INTO consultations (
			id, patient_id, clinician_id, consultation_date, consultation_time,
			consultation_type, status, processing_status, recording_url, notes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.GetDB().ExecContext(ctx, query,
		consultation.ID,
		consultation.PatientID,
		consultation.ClinicianID,
		consultation.ConsultationDate,
		consultation.ConsultationTime,
		consultation.ConsultationType,
		consultation.Status,
		consultation.ProcessingStatus,
		consultation.RecordingURL,
		consultation.Notes,
		consultation.CreatedAt,
		consultation.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create consultation: %w", err)
	}
	return nil
}

func (r *consultationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Consultation, error) {
	query := `SELECT * FROM consultations WHERE id = $1`

	var consultation model.Consultation
	if err := r.GetDB().GetContext(ctx, &consultation, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("consultation", err)
		}
		return nil, fmt.Errorf("failed to get consultation: %w", err)
	}
	return &consultation, nil
}

func (r *consultationRepository) Update(ctx context.Context, consultation *model.Consultation) error {
	consultation.UpdatedAt = time.Now()

	query := `
		UPDATE consultations SET
			consultation_date = $1,
			consultation_time = $2,
			consultation_type = $3,
			status = $4,
			recording_url = $5,
			notes = $6,
			updated_at = $7
		WHERE id = $8
	`
	result, err := r.GetDB().ExecContext(ctx, query,
		consultation.ConsultationDate,
		consultation.ConsultationTime,
		consultation.ConsultationType,
		consultation.Status,
		consultation.RecordingURL,
		consultation.Notes,
		consultation.UpdatedAt,
		consultation.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update consultation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("consultation", nil)
	}
	return nil
}

func (r *consultationRepository) List(ctx context.Context, filters *model.ConsultationFilters) ([]*model.Consultation, error) {
	query := `SELECT * FROM consultations WHERE 1=1`
	args := []interface{}{}

	if filters != nil {
		if filters.ClinicianID != uuid.Nil {
			query += fmt.Sprintf(" AND clinician_id = $%d", len(args)+1)
			args = append(args, filters.ClinicianID)
		}
		if filters.PatientID != uuid.Nil {
			query += fmt.Sprintf(" AND patient_id = $%d", len(args)+1)
			args = append(args, filters.PatientID)
		}
		if filters.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", len(args)+1)
			args = append(args, filters.Status)
		}
	}

	query += " ORDER BY consultation_date DESC, consultation_time DESC"

	var consultations []*model.Consultation
	if err := r.GetDB().SelectContext(ctx, &consultations, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list consultations: %w", err)
	}
	return consultations, nil
}

// UpdateProcessingStatus performs a guarded read-modify-write so an
// illegal transition surfaces as an error instead of corrupting the
// state machine.
func (r *consultationRepository) UpdateProcessingStatus(ctx context.Context, id uuid.UUID, status model.ProcessingStatus) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var current model.ProcessingStatus
		if err := tx.GetContext(ctx, &current,
			`SELECT processing_status FROM consultations WHERE id = $1 FOR UPDATE`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.NewNotFound("consultation", err)
			}
			return fmt.Errorf("failed to read processing status: %w", err)
		}

		if !current.CanAdvanceTo(status) {
			return apperrors.NewConflict(
				fmt.Sprintf("illegal processing status transition %s -> %s", current, status))
		}

		_, err := tx.ExecContext(ctx,
			`UPDATE consultations SET processing_status = $1, updated_at = $2 WHERE id = $3`,
			status, time.Now(), id)
		if err != nil {
			return fmt.Errorf("failed to update processing status: %w", err)
		}
		return nil
	})
}
